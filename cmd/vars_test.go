package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVariableOverrides(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		tokens  []string
		want    map[string]string
		wantErr string
	}{
		{
			name:   "empty",
			tokens: nil,
			want:   map[string]string{},
		},
		{
			name:   "space separated",
			tokens: []string{"--bridge_port", "9100"},
			want:   map[string]string{"bridge_port": "9100"},
		},
		{
			name:   "equals form",
			tokens: []string{"--bridge_port=9100"},
			want:   map[string]string{"bridge_port": "9100"},
		},
		{
			name:   "mixed forms",
			tokens: []string{"--host=device.local", "--bridge_port", "9100"},
			want:   map[string]string{"host": "device.local", "bridge_port": "9100"},
		},
		{
			name:   "bare separator skipped",
			tokens: []string{"--", "--bridge_port", "9100"},
			want:   map[string]string{"bridge_port": "9100"},
		},
		{
			name:   "equals value may be empty",
			tokens: []string{"--token="},
			want:   map[string]string{"token": ""},
		},
		{
			name:   "later flag wins",
			tokens: []string{"--port", "1", "--port", "2"},
			want:   map[string]string{"port": "2"},
		},
		{
			name:    "flag without value at end",
			tokens:  []string{"--bridge_port"},
			wantErr: "--bridge_port requires a value",
		},
		{
			name:    "flag followed by flag",
			tokens:  []string{"--bridge_port", "--host", "x"},
			wantErr: "--bridge_port missing value",
		},
		{
			name:    "bare value in flag position",
			tokens:  []string{"9100"},
			wantErr: "unexpected variable token",
		},
		{
			name:    "empty flag name",
			tokens:  []string{"--=9100"},
			wantErr: "name cannot be empty",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := parseVariableOverrides(tt.tokens)

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
