package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/wordindex/internal/config"
)

func TestConfigInit_CreatesUserConfig(t *testing.T) {
	// Given: no user config
	home := isolate(t)
	path := filepath.Join(home, ".config", "wordindex", "config.yaml")

	// When: running config init
	out, err := execute(t, "config", "init")

	// Then: the file exists with defaults
	require.NoError(t, err)
	assert.Contains(t, out, "Created user configuration")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "tokenizer: alphanum")
}

func TestConfigInit_ExistingNeedsForce(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, ".config", "wordindex", "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("tokenizer: code\n"), 0o644))

	// Without --force the file is left alone.
	out, err := execute(t, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")
	data, _ := os.ReadFile(path)
	assert.Equal(t, "tokenizer: code\n", string(data))

	// With --force settings are kept, defaults filled in and a backup made.
	out, err = execute(t, "config", "init", "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "Backup")

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "tokenizer: code")
	assert.Contains(t, string(data), "parser_threads: 3")

	backups, err := config.ListBackups(path)
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}

func TestConfigShow_JSON(t *testing.T) {
	isolate(t)
	t.Setenv("WORDINDEX_PARSER_THREADS", "7")

	out, err := execute(t, "config", "show", "--json")

	require.NoError(t, err)
	var cfg config.Config
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, 7, cfg.ParserThreads)
}

func TestConfigShow_Sources(t *testing.T) {
	isolate(t)

	out, err := execute(t, "config", "show", "--source", "user")
	require.NoError(t, err)
	assert.Contains(t, out, "No user configuration file found")

	out, err = execute(t, "config", "show", "--source", "defaults")
	require.NoError(t, err)
	assert.Contains(t, out, "internal_queue_size: 100")

	_, err = execute(t, "config", "show", "--source", "bogus")
	assert.Error(t, err)
}

func TestConfigPath(t *testing.T) {
	home := isolate(t)

	out, err := execute(t, "config", "path")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "wordindex", "config.yaml")+"\n", out)
}
