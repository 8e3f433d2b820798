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

// stubTerminal makes stdin look like a terminal that yields code.
func stubTerminal(t *testing.T, code string, err error) {
	t.Helper()
	oldRead, oldIs := readPassword, isTerminal
	t.Cleanup(func() { readPassword, isTerminal = oldRead, oldIs })
	isTerminal = func(int) bool { return true }
	readPassword = func(int) ([]byte, error) {
		if err != nil {
			return nil, err
		}
		return []byte(code), nil
	}
}

func TestGetSimpleText(t *testing.T) {
	var out bytes.Buffer
	got, err := GetSimpleText(rdr("hello world\n"), "Name?", &out)
	if err != nil || got != "hello world" {
		t.Fatalf("got %q, err=%v", got, err)
	}
	assert.Equal(t, "Name?\n> ", out.String())
}

func TestGetSimpleTextEOF(t *testing.T) {
	var out bytes.Buffer
	got, err := GetSimpleText(rdr("lastline"), "Name?", &out)
	if err != nil || got != "lastline" {
		t.Fatalf("got %q, err=%v", got, err)
	}
}

func TestGetSimpleText_EmptyEOF(t *testing.T) {
	var out bytes.Buffer
	_, err := GetSimpleText(rdr(""), "Name?", &out)
	require.Error(t, err)
}

func TestGetPasscode_Terminal(t *testing.T) {
	stubTerminal(t, " 123456 ", nil)

	var out bytes.Buffer
	got, err := GetPasscode(rdr("ignored\n"), &out)
	require.NoError(t, err)
	assert.Equal(t, "123456", got)
	assert.Equal(t, "Enter passcode: \n", out.String())
}

func TestGetPasscode_TerminalError(t *testing.T) {
	stubTerminal(t, "", errors.New("boom"))

	var out bytes.Buffer
	_, err := GetPasscode(rdr(""), &out)
	require.Error(t, err)
}

func TestGetPasscode_NotATerminal(t *testing.T) {
	old := isTerminal
	t.Cleanup(func() { isTerminal = old })
	isTerminal = func(int) bool { return false }

	var out bytes.Buffer
	got, err := GetPasscode(rdr("654321\n"), &out)
	require.NoError(t, err)
	assert.Equal(t, "654321", got)
}
