package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// UnmarshalJSON implements custom unmarshaling for ProxyConfig
func (p *ProxyConfig) UnmarshalJSON(data []byte) error {
	// Use a raw type to parse references
	type rawProxy struct {
		BaseURL        json.RawMessage   `json:"baseURL"`
		Addr           json.RawMessage   `json:"addr"`
		Name           string            `json:"name"`
		ClientURL      json.RawMessage   `json:"clientURL"`
		AllowedOrigins []json.RawMessage `json:"allowedOrigins"`
	}

	var raw rawProxy
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	p.Name = raw.Name

	var err error
	if p.BaseURL, err = parseOptional(raw.BaseURL, "baseURL"); err != nil {
		return err
	}
	if p.Addr, err = parseOptional(raw.Addr, "addr"); err != nil {
		return err
	}
	if p.ClientURL, err = parseOptional(raw.ClientURL, "clientURL"); err != nil {
		return err
	}
	p.BaseURL = strings.TrimSuffix(p.BaseURL, "/")

	if len(raw.AllowedOrigins) > 0 {
		origins, err := ParseConfigValueSlice(raw.AllowedOrigins)
		if err != nil {
			return fmt.Errorf("parsing allowedOrigins: %w", err)
		}
		p.AllowedOrigins = origins
	}

	return nil
}

// UnmarshalJSON implements custom unmarshaling for AuthConfig
func (a *AuthConfig) UnmarshalJSON(data []byte) error {
	type rawAuth struct {
		GoogleClientID     json.RawMessage `json:"googleClientId"`
		GoogleClientSecret json.RawMessage `json:"googleClientSecret"`
		GoogleRedirectURI  json.RawMessage `json:"googleRedirectUri"`
		Scopes             []string        `json:"scopes"`
		RefreshSkew        string          `json:"refreshSkew"`
		ProviderTimeout    string          `json:"providerTimeout"`
		SessionSecret      json.RawMessage `json:"sessionSecret"`
		EncryptionKey      json.RawMessage `json:"encryptionKey,omitempty"`
	}

	var raw rawAuth
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	a.Scopes = raw.Scopes

	var err error
	if a.RefreshSkew, err = parseDuration(raw.RefreshSkew, "refreshSkew"); err != nil {
		return err
	}
	if a.ProviderTimeout, err = parseDuration(raw.ProviderTimeout, "providerTimeout"); err != nil {
		return err
	}

	if a.GoogleClientID, err = parseOptional(raw.GoogleClientID, "googleClientId"); err != nil {
		return err
	}
	if a.GoogleRedirectURI, err = parseOptional(raw.GoogleRedirectURI, "googleRedirectUri"); err != nil {
		return err
	}

	secret, err := parseOptional(raw.GoogleClientSecret, "googleClientSecret")
	if err != nil {
		return err
	}
	a.GoogleClientSecret = Secret(secret)

	secret, err = parseOptional(raw.SessionSecret, "sessionSecret")
	if err != nil {
		return err
	}
	a.SessionSecret = Secret(secret)

	secret, err = parseOptional(raw.EncryptionKey, "encryptionKey")
	if err != nil {
		return err
	}
	a.EncryptionKey = Secret(secret)

	return nil
}

// UnmarshalJSON implements custom unmarshaling for StorageConfig
func (s *StorageConfig) UnmarshalJSON(data []byte) error {
	type rawStorage struct {
		Kind                  StorageKind     `json:"kind"`
		GCPProject            json.RawMessage `json:"gcpProject"`
		FirestoreDatabase     string          `json:"firestoreDatabase"`
		CredentialsCollection string          `json:"credentialsCollection"`
		EventsCollection      string          `json:"eventsCollection"`
	}

	var raw rawStorage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	s.Kind = raw.Kind
	s.FirestoreDatabase = raw.FirestoreDatabase
	s.CredentialsCollection = raw.CredentialsCollection
	s.EventsCollection = raw.EventsCollection

	project, err := parseOptional(raw.GCPProject, "gcpProject")
	if err != nil {
		return err
	}
	s.GCPProject = project

	return nil
}

// UnmarshalJSON implements custom unmarshaling for SessionsConfig
func (s *SessionsConfig) UnmarshalJSON(data []byte) error {
	var raw struct {
		Kind SessionsKind `json:"kind"`
		TTL  string       `json:"ttl"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	s.Kind = raw.Kind
	ttl, err := parseDuration(raw.TTL, "ttl")
	if err != nil {
		return err
	}
	s.TTL = ttl

	return nil
}

func parseOptional(raw json.RawMessage, name string) (string, error) {
	if raw == nil {
		return "", nil
	}
	parsed, err := ParseConfigValue(raw)
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", name, err)
	}
	return parsed.value, nil
}

func parseDuration(value, name string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", name, err)
	}
	return d, nil
}
