package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitCamelCase(t *testing.T) {
	tests := []struct {
		input  string
		expect []string
	}{
		{"getUserById", []string{"get", "User", "By", "Id"}},
		{"HTTPHandler", []string{"HTTP", "Handler"}},
		{"parseHTTPRequest", []string{"parse", "HTTP", "Request"}},
		{"simple", []string{"simple"}},
		{"ABC", []string{"ABC"}},
		{"", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expect, SplitCamelCase(tt.input))
		})
	}
}

func TestSplitCodeToken_SnakeCase(t *testing.T) {
	assert.Equal(t, []string{"user", "Name", "id"}, SplitCodeToken("user_Name__id"))
	assert.Equal(t, []string{"max", "Retry", "Count"}, SplitCodeToken("maxRetryCount"))
}

func TestSplitCode_LowercasesAndDropsShortParts(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect []string
	}{
		{"camel", "getUserById", []string{"get", "user", "by", "id"}},
		{"single letters dropped", "a_b_value", []string{"value"}},
		{"acronym", "XMLParser", []string{"xml", "parser"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, splitCode(tt.input))
		})
	}
}
