package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntentChannel(t *testing.T) {
	tests := []struct {
		name     string
		intentID string
		want     string
	}{
		{name: "formats intent channel correctly", intentID: "abc-123", want: "intent:abc-123"},
		{
			name:     "handles UUID format",
			intentID: "550e8400-e29b-41d4-a716-446655440000",
			want:     "intent:550e8400-e29b-41d4-a716-446655440000",
		},
		{name: "handles empty string", intentID: "", want: "intent:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IntentChannel(tt.intentID))
		})
	}
}

func TestTenantChannel(t *testing.T) {
	assert.Equal(t, "tenant:acme", TenantChannel("acme"))
	assert.Equal(t, "tenant:", TenantChannel(""))
}

func TestGlobalChannel(t *testing.T) {
	assert.Equal(t, "global", GlobalChannel)
}
