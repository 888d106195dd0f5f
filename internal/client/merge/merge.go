// Package merge reconciles a local and a remote replica of one collection.
//
// The policy is last-write-wins per record, keyed by identifier:
//
//   - a local record unknown to the remote is kept;
//   - a local record strictly newer than its remote counterpart replaces it
//     and is counted as a resolved conflict;
//   - equal timestamps with different content keep the remote record and are
//     counted as a conflict (and as a true conflict);
//   - an older local record is dropped in favour of the remote one.
//
// Unparseable timestamps order before every valid timestamp. Collection is a
// pure function: it performs no I/O and never mutates its inputs.
package merge

import (
	"bytes"
	"encoding/json"

	"github.com/dmitrijs2005/notesync/internal/models"
	"golang.org/x/crypto/blake2b"
)

// Record is anything that can be merged: it has a stable key and an
// updated-at timestamp.
type Record interface {
	Key() string
	Stamp() models.Timestamp
}

// Result is the outcome of merging one collection.
type Result[T Record] struct {
	Merged []T
	// Conflicts counts local-wins overwrites plus equal-timestamp content
	// divergences.
	Conflicts int
	// TrueConflicts counts only equal-timestamp content divergences.
	TrueConflicts int
	// LocalWins lists, in output order, the keys whose merged value came from
	// the local side: new local records and local-newer overwrites.
	LocalWins []string
	// Malformed lists keys whose timestamp could not be parsed on either side.
	Malformed []string
}

// Collection merges local into remote. Output order is deterministic: remote
// order first, with local overwrites kept in place, followed by local-only
// records in local order.
func Collection[T Record](local, remote []T) Result[T] {
	var res Result[T]

	merged := make([]T, 0, len(local)+len(remote))
	index := make(map[string]int, len(local)+len(remote))
	inRemote := make(map[string]bool, len(remote))
	fromLocal := make(map[string]bool)
	conflicted := make(map[string]bool)
	malformed := make(map[string]bool)

	noteMalformed := func(r T) {
		if !r.Stamp().Valid() && !malformed[r.Key()] {
			malformed[r.Key()] = true
			res.Malformed = append(res.Malformed, r.Key())
		}
	}

	for _, r := range remote {
		noteMalformed(r)
		inRemote[r.Key()] = true
		if i, ok := index[r.Key()]; ok {
			merged[i] = r
			continue
		}
		index[r.Key()] = len(merged)
		merged = append(merged, r)
	}

	for _, l := range local {
		noteMalformed(l)

		i, ok := index[l.Key()]
		if !ok {
			index[l.Key()] = len(merged)
			merged = append(merged, l)
			fromLocal[l.Key()] = true
			continue
		}

		cur := merged[i]
		switch l.Stamp().Compare(cur.Stamp()) {
		case 1:
			merged[i] = l
			fromLocal[l.Key()] = true
			// a repeated local id is not a conflict with the server
			if inRemote[l.Key()] && !conflicted[l.Key()] {
				conflicted[l.Key()] = true
				res.Conflicts++
			}
		case 0:
			if inRemote[l.Key()] && !conflicted[l.Key()] && !SameContent(l, cur) {
				conflicted[l.Key()] = true
				res.Conflicts++
				res.TrueConflicts++
			}
		}
	}

	for _, r := range merged {
		if fromLocal[r.Key()] {
			res.LocalWins = append(res.LocalWins, r.Key())
		}
	}

	res.Merged = merged
	return res
}

// SameContent reports whether a and b serialize to the same bytes.
func SameContent(a, b any) bool {
	fa, errA := Fingerprint(a)
	fb, errB := Fingerprint(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(fa, fb)
}

// Fingerprint is the BLAKE2b-256 digest of v's JSON encoding.
func Fingerprint(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	sum := blake2b.Sum256(data)
	return sum[:], nil
}
