package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigValue(t *testing.T) {
	t.Setenv("YT_TEST_VALUE", "from-env")
	t.Setenv("YT_TEST_QUOTED", `"quoted"`)

	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr string
	}{
		{name: "plain string", raw: `"plain"`, want: "plain"},
		{name: "env reference", raw: `{"$env": "YT_TEST_VALUE"}`, want: "from-env"},
		{name: "quotes stripped", raw: `{"$env": "YT_TEST_QUOTED"}`, want: "quoted"},
		{name: "unset env var", raw: `{"$env": "YT_TEST_UNSET"}`, wantErr: "environment variable YT_TEST_UNSET not set"},
		{name: "unknown reference", raw: `{"$userToken": "{{token}}"}`, wantErr: "unknown reference type"},
		{name: "number", raw: `42`, wantErr: "must be string or reference object"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseConfigValue(json.RawMessage(tt.raw))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Value())
		})
	}
}

func TestProxyConfigUnmarshal(t *testing.T) {
	t.Setenv("YT_TEST_BASE_URL", "https://yt.example.com/")

	var p ProxyConfig
	err := json.Unmarshal([]byte(`{
		"baseURL": {"$env": "YT_TEST_BASE_URL"},
		"addr": ":9090",
		"name": "front",
		"clientURL": "https://app.example.com",
		"allowedOrigins": ["https://app.example.com", "http://localhost:3000"]
	}`), &p)
	require.NoError(t, err)

	assert.Equal(t, "https://yt.example.com", p.BaseURL, "trailing slash is trimmed")
	assert.Equal(t, ":9090", p.Addr)
	assert.Equal(t, "front", p.Name)
	assert.Equal(t, "https://app.example.com", p.ClientURL)
	assert.Equal(t, []string{"https://app.example.com", "http://localhost:3000"}, p.AllowedOrigins)
}

func TestAuthConfigUnmarshal(t *testing.T) {
	t.Setenv("YT_TEST_CLIENT_SECRET", "client-secret")
	t.Setenv("YT_TEST_SESSION_SECRET", "session-secret")

	t.Run("resolves secrets and durations", func(t *testing.T) {
		var a AuthConfig
		err := json.Unmarshal([]byte(`{
			"googleClientId": "client-id",
			"googleClientSecret": {"$env": "YT_TEST_CLIENT_SECRET"},
			"sessionSecret": {"$env": "YT_TEST_SESSION_SECRET"},
			"scopes": ["openid", "https://www.googleapis.com/auth/youtube.force-ssl"],
			"refreshSkew": "2m",
			"providerTimeout": "5s"
		}`), &a)
		require.NoError(t, err)

		assert.Equal(t, "client-id", a.GoogleClientID)
		assert.Equal(t, Secret("client-secret"), a.GoogleClientSecret)
		assert.Equal(t, Secret("session-secret"), a.SessionSecret)
		assert.Empty(t, a.EncryptionKey)
		assert.Equal(t, 2*time.Minute, a.RefreshSkew)
		assert.Equal(t, 5*time.Second, a.ProviderTimeout)
		assert.Len(t, a.Scopes, 2)
	})

	t.Run("bad duration", func(t *testing.T) {
		var a AuthConfig
		err := json.Unmarshal([]byte(`{"refreshSkew": "soon"}`), &a)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parsing refreshSkew")
	})

	t.Run("missing env var", func(t *testing.T) {
		var a AuthConfig
		err := json.Unmarshal([]byte(`{"encryptionKey": {"$env": "YT_TEST_NOT_SET"}}`), &a)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parsing encryptionKey")
	})
}

func TestStorageAndSessionsUnmarshal(t *testing.T) {
	t.Setenv("YT_TEST_PROJECT", "my-project")

	var s StorageConfig
	require.NoError(t, json.Unmarshal([]byte(`{
		"kind": "firestore",
		"gcpProject": {"$env": "YT_TEST_PROJECT"},
		"firestoreDatabase": "yt",
		"credentialsCollection": "creds",
		"eventsCollection": "events"
	}`), &s))
	assert.Equal(t, StorageKindFirestore, s.Kind)
	assert.Equal(t, "my-project", s.GCPProject)
	assert.Equal(t, "yt", s.FirestoreDatabase)
	assert.Equal(t, "creds", s.CredentialsCollection)
	assert.Equal(t, "events", s.EventsCollection)

	var sess SessionsConfig
	require.NoError(t, json.Unmarshal([]byte(`{"kind": "redis", "ttl": "12h"}`), &sess))
	assert.Equal(t, SessionsKindRedis, sess.Kind)
	assert.Equal(t, 12*time.Hour, sess.TTL)

	err := json.Unmarshal([]byte(`{"ttl": "forever"}`), &sess)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing ttl")
}
