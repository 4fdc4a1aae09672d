package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// isolate points every path the CLI touches at temporary directories.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	run, err := os.MkdirTemp("", "wic")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(run) })

	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("WORDINDEX_SOCKET_PATH", filepath.Join(run, "d.sock"))
	t.Setenv("WORDINDEX_PID_PATH", filepath.Join(run, "d.pid"))
	t.Setenv("WORDINDEX_LOG_FILE", filepath.Join(home, "server.log"))
	t.Setenv("WORDINDEX_WATCH_DEBOUNCE", "20ms")
	t.Setenv("NO_COLOR", "1")
	return home
}

// execute runs the CLI with args and returns its combined output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}
