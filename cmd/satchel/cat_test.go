package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTemplateVars(t *testing.T) {
	tests := []struct {
		name     string
		pairs    []string
		expected map[string]interface{}
		wantErr  string
	}{
		{
			name:     "no pairs",
			pairs:    nil,
			expected: nil,
		},
		{
			name:  "single pair",
			pairs: []string{"title=Q3 Review"},
			expected: map[string]interface{}{
				"title": "Q3 Review",
			},
		},
		{
			name:  "value may contain equals",
			pairs: []string{"filter=status=open"},
			expected: map[string]interface{}{
				"filter": "status=open",
			},
		},
		{
			name:  "empty value is allowed",
			pairs: []string{"author="},
			expected: map[string]interface{}{
				"author": "",
			},
		},
		{
			name:    "missing equals",
			pairs:   []string{"title"},
			wantErr: `expected key=value, got "title"`,
		},
		{
			name:    "empty key",
			pairs:   []string{"=value"},
			wantErr: `expected key=value, got "=value"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vars, err := parseTemplateVars(tt.pairs)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, vars)
		})
	}
}
