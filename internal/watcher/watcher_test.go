package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOperation_String(t *testing.T) {
	tests := []struct {
		op   Operation
		want string
	}{
		{OpCreate, "CREATE"},
		{OpModify, "MODIFY"},
		{OpDelete, "DELETE"},
		{OpRename, "RENAME"},
		{Operation(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.op.String())
		})
	}
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{name: "defaults", opts: DefaultOptions()},
		{name: "zero values", opts: Options{}},
		{name: "negative debounce", opts: Options{DebounceWindow: -time.Second}, wantErr: true},
		{name: "negative poll interval", opts: Options{PollInterval: -time.Second}, wantErr: true},
		{name: "negative buffer", opts: Options{EventBufferSize: -1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOptions_WithDefaults(t *testing.T) {
	// Given: options with only a custom debounce window and patterns
	opts := Options{
		DebounceWindow: 500 * time.Millisecond,
		IgnorePatterns: []string{"*.tmp"},
	}

	// When: defaults are applied
	got := opts.WithDefaults()

	// Then: custom values survive and zero values are filled
	assert.Equal(t, 500*time.Millisecond, got.DebounceWindow)
	assert.Equal(t, 5*time.Second, got.PollInterval)
	assert.Equal(t, 64, got.EventBufferSize)
	assert.Equal(t, []string{"*.tmp"}, got.IgnorePatterns)
	assert.False(t, got.ForcePolling)
}
