package cmd

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/wordindex/internal/daemon"
	"github.com/Aman-CERP/wordindex/internal/errors"
	"github.com/Aman-CERP/wordindex/internal/indexer"
	"github.com/Aman-CERP/wordindex/internal/store"
)

func writeTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("Tiger lion"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "b.txt"), []byte("tiger owl"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "empty.txt"), nil, 0o644))
	return root
}

func TestSearchCmd_InProcessRoot(t *testing.T) {
	// Given: a tree and no daemon
	isolate(t)
	root := writeTree(t)

	// When: searching with --root
	out, err := execute(t, "search", "tiger", "--root", root)

	// Then: both files are found
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(root, "a.txt"))
	assert.Contains(t, out, filepath.Join(root, "sub", "b.txt"))
}

func TestFilesCmd_InProcessRoot(t *testing.T) {
	isolate(t)
	root := writeTree(t)

	out, err := execute(t, "files", "--root", root)

	require.NoError(t, err)
	assert.Contains(t, out, "+ "+filepath.Join(root, "a.txt")+" (2)")
	assert.Contains(t, out, "Files: 3, non empty: 2, valid: 3, processing: 0, invalid: 0")
}

func TestWordsCmd_JSON(t *testing.T) {
	isolate(t)
	root := writeTree(t)

	out, err := execute(t, "words", "--json", "--root", root)

	require.NoError(t, err)
	var words []string
	require.NoError(t, json.Unmarshal([]byte(out), &words))
	assert.ElementsMatch(t, []string{"tiger", "lion", "owl"}, words)
}

func TestQueryCmd_NoDaemonNoRoots(t *testing.T) {
	isolate(t)

	_, err := execute(t, "stats")

	assert.Equal(t, errors.ErrCodeDaemonUnavailable, errors.GetCode(err))
}

func TestCommands_AgainstDaemon(t *testing.T) {
	// Given: a daemon running on the isolated socket
	isolate(t)
	cfg, err := loadConfig()
	require.NoError(t, err)
	ixCfg, err := indexerConfig(cfg, nil)
	require.NoError(t, err)
	ix, err := indexer.New(ixCfg)
	require.NoError(t, err)
	d, err := daemon.NewDaemon(daemonConfig(cfg), ix, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	require.NoError(t, daemon.NewClient(daemonConfig(cfg)).WaitReady(context.Background(), errors.RetryConfig{
		MaxRetries:   40,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     100 * time.Millisecond,
		Multiplier:   2,
	}))
	root := writeTree(t)

	// When: a root is added and awaited
	out, err := execute(t, "add", "--wait", root)
	require.NoError(t, err)
	assert.Contains(t, out, "Added "+root)

	// Then: queries are served by the daemon
	out, err = execute(t, "search", "owl")
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(root, "sub", "b.txt"))

	out, err = execute(t, "stats", "--json")
	require.NoError(t, err)
	var stats store.Statistics
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 3, stats.Files)

	out, err = execute(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Daemon is running")
	assert.Contains(t, out, root)

	// When: the root is removed
	_, err = execute(t, "remove", root)
	require.NoError(t, err)

	// Then: its files are gone
	require.Eventually(t, func() bool {
		out, err := execute(t, "stats", "--json")
		if err != nil {
			return false
		}
		var st store.Statistics
		return json.Unmarshal([]byte(out), &st) == nil && st.Files == 0
	}, 5*time.Second, 50*time.Millisecond)

	// And: removing it again is rejected
	_, err = execute(t, "remove", root)
	assert.Equal(t, errors.ErrCodeInvalidPath, errors.GetCode(err))
}
