package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProfileClaims(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		claims map[string]interface{}
		want   Profile
	}{
		{
			name: "all-present",
			claims: map[string]interface{}{
				"name":    "Alice Example",
				"email":   "alice@example.com",
				"picture": "https://example.com/alice.png",
			},
			want: Profile{
				Name:    "Alice Example",
				Email:   "alice@example.com",
				Picture: "https://example.com/alice.png",
			},
		},
		{
			name: "missing-claims-default-to-empty",
			claims: map[string]interface{}{
				"name": "Alice Example",
			},
			want: Profile{Name: "Alice Example"},
		},
		{
			name: "non-string-claims-default-to-empty",
			claims: map[string]interface{}{
				"name":    42,
				"email":   true,
				"picture": map[string]interface{}{"url": "x"},
			},
			want: Profile{},
		},
		{
			name:   "nil-claims",
			claims: nil,
			want:   Profile{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, profileClaims(tt.claims))
		})
	}
}
