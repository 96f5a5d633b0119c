package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Secret is a string type that redacts itself when printed
type Secret string

// String implements fmt.Stringer to redact the secret
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***"
}

// MarshalJSON implements json.Marshaler to prevent secrets in JSON logs
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("***")
}

// StorageKind selects the credential store backend
type StorageKind string

const (
	StorageKindMemory    StorageKind = "memory"
	StorageKindFirestore StorageKind = "firestore"
)

// SessionsKind selects the session binding backend
type SessionsKind string

const (
	SessionsKindMemory SessionsKind = "memory"
	SessionsKindRedis  SessionsKind = "redis"
)

// Defaults applied by Load when a field is omitted
const (
	DefaultName                  = "yt-front"
	DefaultFirestoreDatabase     = "(default)"
	DefaultCredentialsCollection = "yt_front_credentials"
	DefaultEventsCollection      = "yt_front_events"
	DefaultSessionTTL            = 24 * time.Hour
	DefaultRefreshSkew           = time.Minute
	DefaultProviderTimeout       = 10 * time.Second
	CallbackPath                 = "/auth/callback"
)

// ProxyConfig represents the HTTP front configuration with resolved values
type ProxyConfig struct {
	BaseURL        string   `json:"baseURL"`
	Addr           string   `json:"addr"`
	Name           string   `json:"name"`
	ClientURL      string   `json:"clientURL"`      // Where the browser lands after login
	AllowedOrigins []string `json:"allowedOrigins"` // For CORS validation
}

// AuthConfig represents the Google OAuth configuration with resolved values
type AuthConfig struct {
	GoogleClientID     string        `json:"googleClientId"`
	GoogleClientSecret Secret        `json:"googleClientSecret"`
	GoogleRedirectURI  string        `json:"googleRedirectUri"`
	Scopes             []string      `json:"scopes,omitempty"`
	RefreshSkew        time.Duration `json:"refreshSkew"`
	ProviderTimeout    time.Duration `json:"providerTimeout"`
	SessionSecret      Secret        `json:"sessionSecret"`
	EncryptionKey      Secret        `json:"encryptionKey"`
}

// StorageConfig selects and configures the credential store
type StorageConfig struct {
	Kind                  StorageKind `json:"kind"`
	GCPProject            string      `json:"gcpProject,omitempty"`
	FirestoreDatabase     string      `json:"firestoreDatabase,omitempty"`
	CredentialsCollection string      `json:"credentialsCollection,omitempty"`
	EventsCollection      string      `json:"eventsCollection,omitempty"`
}

// SessionsConfig selects the session binding. Redis connection settings come
// from the environment, see session.RedisConfigFromEnv.
type SessionsConfig struct {
	Kind SessionsKind  `json:"kind"`
	TTL  time.Duration `json:"ttl"`
}

// Config represents the config structure with resolved values.
//
// Environment variable references using {"$env": "VAR_NAME"} syntax are
// resolved at load time. Secrets must be given that way so they never live
// in the config file itself.
type Config struct {
	Version  string         `json:"version"`
	Proxy    ProxyConfig    `json:"proxy"`
	Auth     AuthConfig     `json:"auth"`
	Storage  StorageConfig  `json:"storage"`
	Sessions SessionsConfig `json:"sessions"`
}

// RawConfigValue represents a value that could be a string or an env ref.
// This is only used during parsing, not in the final config
type RawConfigValue struct {
	value string
}

// Value returns the resolved value
func (v *RawConfigValue) Value() string {
	return v.value
}

// ParseConfigValue parses a JSON value that could be a string or reference object
func ParseConfigValue(raw json.RawMessage) (*RawConfigValue, error) {
	// Try plain string first
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return &RawConfigValue{value: str}, nil
	}

	// Try reference object
	var ref map[string]string
	if err := json.Unmarshal(raw, &ref); err != nil {
		return nil, fmt.Errorf("config value must be string or reference object")
	}

	if envVar, ok := ref["$env"]; ok {
		value := os.Getenv(envVar)
		if value == "" {
			return nil, fmt.Errorf("environment variable %s not set", envVar)
		}
		// Strip surrounding quotes if present (only matching pairs)
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}
		return &RawConfigValue{value: value}, nil
	}

	return nil, fmt.Errorf("unknown reference type in config value")
}

// ParseConfigValueSlice parses a slice that may contain references
func ParseConfigValueSlice(raw []json.RawMessage) ([]string, error) {
	values := make([]string, len(raw))
	for i, item := range raw {
		parsed, err := ParseConfigValue(item)
		if err != nil {
			return nil, fmt.Errorf("parsing item %d: %w", i, err)
		}
		values[i] = parsed.value
	}
	return values, nil
}
