package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSessionSecret = "session-secret-that-is-32-chars!"
	testEncryptionKey = "encryption-key-that-is-32-chars!"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func setTestEnv(t *testing.T) {
	t.Helper()
	t.Setenv("GOOGLE_CLIENT_ID", "client-id.apps.googleusercontent.com")
	t.Setenv("GOOGLE_CLIENT_SECRET", "client-secret")
	t.Setenv("SESSION_SECRET", testSessionSecret)
	t.Setenv("ENCRYPTION_KEY", testEncryptionKey)
}

const minimalConfig = `{
	"version": "v0.0.1-DEV_EDITION",
	"proxy": {"baseURL": "https://yt.example.com", "addr": ":8080"},
	"auth": {
		"googleClientId": {"$env": "GOOGLE_CLIENT_ID"},
		"googleClientSecret": {"$env": "GOOGLE_CLIENT_SECRET"},
		"sessionSecret": {"$env": "SESSION_SECRET"}
	}
}`

func TestLoad_Defaults(t *testing.T) {
	setTestEnv(t)

	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, DefaultName, cfg.Proxy.Name)
	assert.Equal(t, "https://yt.example.com", cfg.Proxy.ClientURL)
	assert.Equal(t, []string{"https://yt.example.com"}, cfg.Proxy.AllowedOrigins)
	assert.Equal(t, "https://yt.example.com/auth/callback", cfg.Auth.GoogleRedirectURI)
	assert.Equal(t, DefaultRefreshSkew, cfg.Auth.RefreshSkew)
	assert.Equal(t, DefaultProviderTimeout, cfg.Auth.ProviderTimeout)
	assert.Equal(t, StorageKindMemory, cfg.Storage.Kind)
	assert.Equal(t, DefaultCredentialsCollection, cfg.Storage.CredentialsCollection)
	assert.Equal(t, DefaultEventsCollection, cfg.Storage.EventsCollection)
	assert.Equal(t, DefaultFirestoreDatabase, cfg.Storage.FirestoreDatabase)
	assert.Equal(t, SessionsKindMemory, cfg.Sessions.Kind)
	assert.Equal(t, DefaultSessionTTL, cfg.Sessions.TTL)
	assert.False(t, cfg.NeedsEncryption())
}

func TestLoad_FullConfig(t *testing.T) {
	setTestEnv(t)

	cfg, err := Load(writeConfig(t, `{
		"version": "v0.0.1-DEV_EDITION-prod",
		"proxy": {
			"baseURL": "https://api.example.com",
			"addr": ":9000",
			"name": "yt",
			"clientURL": "https://app.example.com/dashboard",
			"allowedOrigins": ["https://app.example.com"]
		},
		"auth": {
			"googleClientId": {"$env": "GOOGLE_CLIENT_ID"},
			"googleClientSecret": {"$env": "GOOGLE_CLIENT_SECRET"},
			"googleRedirectUri": "https://api.example.com/custom/callback",
			"refreshSkew": "30s",
			"providerTimeout": "3s",
			"sessionSecret": {"$env": "SESSION_SECRET"},
			"encryptionKey": {"$env": "ENCRYPTION_KEY"}
		},
		"storage": {"kind": "firestore", "gcpProject": "proj"},
		"sessions": {"kind": "redis", "ttl": "8h"}
	}`))
	require.NoError(t, err)

	assert.Equal(t, "https://app.example.com/dashboard", cfg.Proxy.ClientURL)
	assert.Equal(t, "https://api.example.com/custom/callback", cfg.Auth.GoogleRedirectURI)
	assert.Equal(t, 30*time.Second, cfg.Auth.RefreshSkew)
	assert.Equal(t, 3*time.Second, cfg.Auth.ProviderTimeout)
	assert.Equal(t, Secret(testEncryptionKey), cfg.Auth.EncryptionKey)
	assert.Equal(t, StorageKindFirestore, cfg.Storage.Kind)
	assert.Equal(t, "proj", cfg.Storage.GCPProject)
	assert.Equal(t, SessionsKindRedis, cfg.Sessions.Kind)
	assert.Equal(t, 8*time.Hour, cfg.Sessions.TTL)
	assert.True(t, cfg.NeedsEncryption())
}

func TestLoad_Errors(t *testing.T) {
	setTestEnv(t)

	tests := []struct {
		name    string
		config  string
		wantErr string
	}{
		{
			name:    "missing version",
			config:  `{"proxy": {}}`,
			wantErr: "config version is required",
		},
		{
			name:    "unsupported version",
			config:  `{"version": "v2"}`,
			wantErr: "unsupported config version",
		},
		{
			name: "plain text secret",
			config: `{
				"version": "v0.0.1-DEV_EDITION",
				"proxy": {"baseURL": "https://yt.example.com", "addr": ":8080"},
				"auth": {"googleClientSecret": "oops"}
			}`,
			wantErr: "googleClientSecret must use environment variable reference",
		},
		{
			name: "short session secret",
			config: `{
				"version": "v0.0.1-DEV_EDITION",
				"proxy": {"baseURL": "https://yt.example.com", "addr": ":8080"},
				"auth": {
					"googleClientId": "id",
					"googleClientSecret": {"$env": "GOOGLE_CLIENT_SECRET"},
					"sessionSecret": {"$env": "GOOGLE_CLIENT_SECRET"}
				}
			}`,
			wantErr: "sessionSecret must be at least 32 characters",
		},
		{
			name: "redis sessions without encryption key",
			config: `{
				"version": "v0.0.1-DEV_EDITION",
				"proxy": {"baseURL": "https://yt.example.com", "addr": ":8080"},
				"auth": {
					"googleClientId": "id",
					"googleClientSecret": {"$env": "GOOGLE_CLIENT_SECRET"},
					"sessionSecret": {"$env": "SESSION_SECRET"}
				},
				"sessions": {"kind": "redis"}
			}`,
			wantErr: "encryptionKey must be at least 32 characters",
		},
		{
			name: "firestore without project",
			config: `{
				"version": "v0.0.1-DEV_EDITION",
				"proxy": {"baseURL": "https://yt.example.com", "addr": ":8080"},
				"auth": {
					"googleClientId": "id",
					"googleClientSecret": {"$env": "GOOGLE_CLIENT_SECRET"},
					"sessionSecret": {"$env": "SESSION_SECRET"},
					"encryptionKey": {"$env": "ENCRYPTION_KEY"}
				},
				"storage": {"kind": "firestore"}
			}`,
			wantErr: "storage.gcpProject is required",
		},
		{
			name: "unknown sessions kind",
			config: `{
				"version": "v0.0.1-DEV_EDITION",
				"proxy": {"baseURL": "https://yt.example.com", "addr": ":8080"},
				"auth": {
					"googleClientId": "id",
					"googleClientSecret": {"$env": "GOOGLE_CLIENT_SECRET"},
					"sessionSecret": {"$env": "SESSION_SECRET"}
				},
				"sessions": {"kind": "memcached"}
			}`,
			wantErr: "sessions.kind must be 'memory' or 'redis'",
		},
		{
			name: "missing base URL",
			config: `{
				"version": "v0.0.1-DEV_EDITION",
				"proxy": {"addr": ":8080"},
				"auth": {
					"googleClientId": "id",
					"googleClientSecret": {"$env": "GOOGLE_CLIENT_SECRET"},
					"googleRedirectUri": "https://yt.example.com/auth/callback",
					"sessionSecret": {"$env": "SESSION_SECRET"}
				}
			}`,
			wantErr: "proxy.baseURL is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.config))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}
