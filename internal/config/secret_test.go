package config

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecretRedaction(t *testing.T) {
	tests := []struct {
		name   string
		secret Secret
		want   string
	}{
		{name: "non-empty secret", secret: Secret("super-secret-password"), want: "***"},
		{name: "empty secret", secret: Secret(""), want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.secret.String())
			assert.Equal(t, "value: "+tt.want, fmt.Sprintf("value: %s", tt.secret))
			assert.Equal(t, "value: "+tt.want, fmt.Sprintf("value: %v", tt.secret))

			data, err := json.Marshal(tt.secret)
			require.NoError(t, err)
			assert.Equal(t, `"`+tt.want+`"`, string(data))
		})
	}
}

func TestSecretRedactedInAuthConfig(t *testing.T) {
	auth := AuthConfig{
		GoogleClientID:     "client-id",
		GoogleClientSecret: "google-secret",
		SessionSecret:      "session-secret-session-secret-123",
		EncryptionKey:      "encryption-key-encryption-key-12",
	}

	data, err := json.Marshal(auth)
	require.NoError(t, err)

	out := string(data)
	assert.Contains(t, out, "client-id")
	assert.NotContains(t, out, "google-secret")
	assert.NotContains(t, out, "session-secret")
	assert.NotContains(t, out, "encryption-key")

	// The raw value stays usable in code
	assert.Equal(t, "google-secret", string(auth.GoogleClientSecret))
}
