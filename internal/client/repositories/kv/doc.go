// Package kv implements the on-device key/value store backing the local
// replica. Every collection (notes, folders, settings) and every scalar
// (last sync time, session token) is one opaque blob under a fixed key in the
// kv_store table.
//
// Get returns (nil, nil) for a missing key. Set is an upsert and also records
// when the key was last written. All errors are wrapped with the operation
// and the key.
package kv
