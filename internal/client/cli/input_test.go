package cli

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rdr(s string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(s))
}

func TestGetSimpleText(t *testing.T) {
	var out bytes.Buffer
	got, err := GetSimpleText(rdr("hello world\n"), "Name?", &out)
	require.NoError(t, err)
	assert.Equal(t, "hello world", got)
	assert.Contains(t, out.String(), "Name?")
}

func TestGetSimpleTextEOF(t *testing.T) {
	var out bytes.Buffer
	got, err := GetSimpleText(rdr("lastline"), "Name?", &out)
	require.NoError(t, err)
	assert.Equal(t, "lastline", got)

	_, err = GetSimpleText(rdr(""), "Name?", &out)
	assert.Error(t, err)
}

func TestGetMultiline(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"double enter", "a\nb\n\n\n", "a\nb"},
		{"eof without newline", "a\nb", "a\nb"},
		{"crlf", "a\r\nb\r\n\r\n", "a\nb"},
		{"empty", "\n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			got, err := GetMultiline(rdr(tt.input), "Content", &out)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetSecret_Terminal(t *testing.T) {
	oldRead, oldTerm := readPassword, isTerminal
	t.Cleanup(func() { readPassword, isTerminal = oldRead, oldTerm })
	isTerminal = func(int) bool { return true }

	readPassword = func(int) ([]byte, error) { return []byte(" tok \n"), nil }
	var out bytes.Buffer
	got, err := GetSecret(rdr(""), "Token", &out)
	require.NoError(t, err)
	assert.Equal(t, "tok", got)

	readPassword = func(int) ([]byte, error) { return nil, errors.New("boom") }
	_, err = GetSecret(rdr(""), "Token", &out)
	assert.Error(t, err)
}

func TestGetSecret_NotTerminalReadsLine(t *testing.T) {
	oldTerm := isTerminal
	t.Cleanup(func() { isTerminal = oldTerm })
	isTerminal = func(int) bool { return false }

	var out bytes.Buffer
	got, err := GetSecret(rdr("piped-token\n"), "Token", &out)
	require.NoError(t, err)
	assert.Equal(t, "piped-token", got)
}
