package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/dgellow/yt-front/internal/log"
	"github.com/dgellow/yt-front/internal/urlutil"
)

// VersionPrefix every supported config version starts with
const VersionPrefix = "v0.0.1-DEV_EDITION"

// minSecretLength applies to sessionSecret and encryptionKey, both fed to HKDF
const minSecretLength = 32

// secretFields must be given as {"$env": "VAR"} references
var secretFields = []string{"googleClientSecret", "sessionSecret", "encryptionKey"}

// Load loads and processes the config with immediate env var resolution
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		return Config{}, fmt.Errorf("parsing config JSON: %w", err)
	}

	version, ok := rawConfig["version"].(string)
	if !ok {
		return Config{}, fmt.Errorf("config version is required")
	}
	if !strings.HasPrefix(version, VersionPrefix) {
		return Config{}, fmt.Errorf("unsupported config version: %s", version)
	}

	if err := validateRawConfig(rawConfig); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	// The custom UnmarshalJSON methods resolve env vars immediately
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	if err := applyDefaults(&config); err != nil {
		return Config{}, fmt.Errorf("applying defaults: %w", err)
	}

	if err := ValidateConfig(&config); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// validateRawConfig validates the config structure before environment resolution
func validateRawConfig(rawConfig map[string]any) error {
	auth, ok := rawConfig["auth"].(map[string]any)
	if !ok {
		return nil
	}

	for _, name := range secretFields {
		value, exists := auth[name]
		if !exists {
			continue
		}
		// Check if it's a string (bad) or a map (good - env ref)
		if _, isString := value.(string); isString {
			return fmt.Errorf("%s must use environment variable reference for security", name)
		}
		if refMap, isMap := value.(map[string]any); isMap {
			if _, hasEnv := refMap["$env"]; !hasEnv {
				return fmt.Errorf("%s must use {\"$env\": \"VAR_NAME\"} format", name)
			}
		}
	}
	return nil
}

// applyDefaults fills in every optional field Load leaves empty
func applyDefaults(config *Config) error {
	if config.Proxy.Name == "" {
		config.Proxy.Name = DefaultName
	}
	if config.Proxy.ClientURL == "" {
		config.Proxy.ClientURL = config.Proxy.BaseURL
	}
	if len(config.Proxy.AllowedOrigins) == 0 && config.Proxy.ClientURL != "" {
		origin, err := urlutil.Origin(config.Proxy.ClientURL)
		if err != nil {
			return fmt.Errorf("proxy.clientURL: %w", err)
		}
		config.Proxy.AllowedOrigins = []string{origin}
	}

	if config.Auth.GoogleRedirectURI == "" && config.Proxy.BaseURL != "" {
		redirect, err := urlutil.JoinPath(config.Proxy.BaseURL, CallbackPath)
		if err != nil {
			return fmt.Errorf("proxy.baseURL: %w", err)
		}
		config.Auth.GoogleRedirectURI = redirect
	}
	if config.Auth.RefreshSkew == 0 {
		config.Auth.RefreshSkew = DefaultRefreshSkew
	}
	if config.Auth.ProviderTimeout == 0 {
		config.Auth.ProviderTimeout = DefaultProviderTimeout
	}

	if config.Storage.Kind == "" {
		config.Storage.Kind = StorageKindMemory
	}
	if config.Storage.FirestoreDatabase == "" {
		config.Storage.FirestoreDatabase = DefaultFirestoreDatabase
	}
	if config.Storage.CredentialsCollection == "" {
		config.Storage.CredentialsCollection = DefaultCredentialsCollection
	}
	if config.Storage.EventsCollection == "" {
		config.Storage.EventsCollection = DefaultEventsCollection
	}

	if config.Sessions.Kind == "" {
		config.Sessions.Kind = SessionsKindMemory
	}
	if config.Sessions.TTL == 0 {
		config.Sessions.TTL = DefaultSessionTTL
	}
	return nil
}

// NeedsEncryption reports whether tokens leave the process, which requires encryptionKey
func (c *Config) NeedsEncryption() bool {
	return c.Storage.Kind == StorageKindFirestore || c.Sessions.Kind == SessionsKindRedis
}

// ValidateConfig validates the resolved configuration
func ValidateConfig(config *Config) error {
	if config.Proxy.BaseURL == "" {
		return fmt.Errorf("proxy.baseURL is required")
	}
	if config.Proxy.Addr == "" {
		return fmt.Errorf("proxy.addr is required")
	}

	if err := validateAuthConfig(&config.Auth, config.NeedsEncryption()); err != nil {
		return fmt.Errorf("auth config: %w", err)
	}

	switch config.Storage.Kind {
	case StorageKindMemory:
		log.LogWarn("Using in-memory credential storage - credentials are lost on restart")
	case StorageKindFirestore:
		if config.Storage.GCPProject == "" {
			return fmt.Errorf("storage.gcpProject is required when using firestore storage")
		}
	default:
		return fmt.Errorf("storage.kind must be 'memory' or 'firestore', got '%s'", config.Storage.Kind)
	}

	switch config.Sessions.Kind {
	case SessionsKindMemory, SessionsKindRedis:
	default:
		return fmt.Errorf("sessions.kind must be 'memory' or 'redis', got '%s'", config.Sessions.Kind)
	}
	if config.Sessions.TTL < 0 {
		return fmt.Errorf("sessions.ttl cannot be negative")
	}

	return nil
}

func validateAuthConfig(auth *AuthConfig, needsEncryption bool) error {
	if auth.GoogleClientID == "" {
		return fmt.Errorf("googleClientId is required")
	}
	if auth.GoogleClientSecret == "" {
		return fmt.Errorf("googleClientSecret is required")
	}
	if auth.GoogleRedirectURI == "" {
		return fmt.Errorf("googleRedirectUri is required")
	}
	if len(auth.SessionSecret) < minSecretLength {
		return fmt.Errorf("sessionSecret must be at least %d characters (got %d). Generate with: openssl rand -base64 32", minSecretLength, len(auth.SessionSecret))
	}
	if needsEncryption && len(auth.EncryptionKey) < minSecretLength {
		return fmt.Errorf("encryptionKey must be at least %d characters when tokens are stored outside the process (got %d). Generate with: openssl rand -base64 32", minSecretLength, len(auth.EncryptionKey))
	}
	if auth.RefreshSkew < 0 {
		return fmt.Errorf("refreshSkew cannot be negative")
	}
	if auth.ProviderTimeout < 0 {
		return fmt.Errorf("providerTimeout cannot be negative")
	}
	return nil
}
