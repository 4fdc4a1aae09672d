package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoctorCmd_JSON(t *testing.T) {
	// Given: an isolated home with polling forced
	isolate(t)
	t.Setenv("WORDINDEX_FORCE_POLLING", "true")

	// When: running doctor
	out, err := execute(t, "doctor", "--json")

	// Then: results are reported per check
	require.NoError(t, err)
	var results []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.NotEmpty(t, results)
	names := make([]string, 0, len(results))
	for _, r := range results {
		names = append(names, r["name"].(string))
	}
	assert.Contains(t, names, "data_dir")
	assert.NotContains(t, names, "inotify_watches")
}
