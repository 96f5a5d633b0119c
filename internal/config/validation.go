package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"
)

// ValidationResult holds validation errors and warnings
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// ValidationError represents a validation issue
type ValidationError struct {
	Path    string
	Message string
}

// IsValid returns true if there are no errors
func (v *ValidationResult) IsValid() bool {
	return len(v.Errors) == 0
}

func (v *ValidationResult) addError(path, format string, args ...any) {
	v.Errors = append(v.Errors, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (v *ValidationResult) addWarning(path, format string, args ...any) {
	v.Warnings = append(v.Warnings, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
}

var bashStyleRegex = regexp.MustCompile(`\$\{?([A-Z_][A-Z0-9_]*)\}?`)

// ValidateFile validates a config file structure without requiring env vars
func ValidateFile(path string) (*ValidationResult, error) {
	result := &ValidationResult{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		result.addError("", "invalid JSON: %v", err)
		return result, nil
	}

	checkBashStyleSyntax(rawConfig, "", result)

	version, ok := rawConfig["version"].(string)
	if !ok {
		result.addError("version", "version field is required. Hint: Add \"version\": \"%s\"", VersionPrefix)
	} else if !strings.HasPrefix(version, VersionPrefix) {
		result.addError("version", "unsupported version '%s' - use '%s' or '%s-<variant>'", version, VersionPrefix, VersionPrefix)
	}

	validateProxyStructure(rawConfig, result)
	storageKind := validateStorageStructure(rawConfig, result)
	sessionsKind := validateSessionsStructure(rawConfig, result)
	validateAuthStructure(rawConfig, storageKind == string(StorageKindFirestore) || sessionsKind == string(SessionsKindRedis), result)

	return result, nil
}

// validateProxyStructure checks the proxy configuration structure
func validateProxyStructure(rawConfig map[string]any, result *ValidationResult) {
	proxy, ok := rawConfig["proxy"].(map[string]any)
	if !ok {
		result.addError("proxy", "proxy field is required and must be an object")
		return
	}

	if _, ok := proxy["baseURL"]; !ok {
		result.addError("proxy.baseURL", "baseURL is required. Example: \"https://yt.example.com\"")
	}
	if _, ok := proxy["addr"]; !ok {
		result.addError("proxy.addr", "addr is required. Example: \":8080\" or \"0.0.0.0:8080\"")
	}
	if _, ok := proxy["clientURL"]; !ok {
		result.addWarning("proxy.clientURL", "clientURL is not set - the login callback will redirect to baseURL")
	}

	if origins, ok := proxy["allowedOrigins"]; ok {
		list, ok := origins.([]any)
		if !ok {
			result.addError("proxy.allowedOrigins", "allowedOrigins must be an array of origins")
			return
		}
		for i, origin := range list {
			if s, ok := origin.(string); ok && s == "*" {
				result.addError(fmt.Sprintf("proxy.allowedOrigins[%d]", i), "wildcard origin cannot be combined with credentialed requests - list origins explicitly")
			}
		}
	}
}

// validateAuthStructure checks auth configuration structure
func validateAuthStructure(rawConfig map[string]any, needsEncryption bool, result *ValidationResult) {
	auth, ok := rawConfig["auth"].(map[string]any)
	if !ok {
		result.addError("auth", "auth field is required and must be an object")
		return
	}

	if _, ok := auth["googleClientId"]; !ok {
		result.addError("auth.googleClientId", "googleClientId is required. Hint: Use {\"$env\": \"GOOGLE_CLIENT_ID\"}")
	}

	required := map[string]bool{
		"googleClientSecret": true,
		"sessionSecret":      true,
		"encryptionKey":      needsEncryption,
	}
	for _, name := range secretFields {
		path := "auth." + name
		value, exists := auth[name]
		if !exists {
			if required[name] {
				result.addError(path, "%s is required", name)
			}
			continue
		}
		if verr := validateEnvVarReference(value, name, path); verr != nil {
			result.Errors = append(result.Errors, *verr)
		}
	}

	for _, name := range []string{"refreshSkew", "providerTimeout"} {
		validateDurationField(auth, name, "auth."+name, result)
	}

	if scopes, ok := auth["scopes"]; ok {
		list, ok := scopes.([]any)
		if !ok || len(list) == 0 {
			result.addError("auth.scopes", "scopes must be a non-empty array when set")
			return
		}
		hasYouTube := false
		for _, s := range list {
			if str, ok := s.(string); ok && strings.Contains(str, "/auth/youtube") {
				hasYouTube = true
			}
		}
		if !hasYouTube {
			result.addWarning("auth.scopes", "no YouTube scope requested - API calls will be rejected by YouTube")
		}
	}
}

// validateStorageStructure checks the storage section and returns its kind
func validateStorageStructure(rawConfig map[string]any, result *ValidationResult) string {
	storage, ok := rawConfig["storage"].(map[string]any)
	if !ok {
		if _, present := rawConfig["storage"]; present {
			result.addError("storage", "storage must be an object")
		}
		return string(StorageKindMemory)
	}

	kind, _ := storage["kind"].(string)
	switch StorageKind(kind) {
	case "", StorageKindMemory:
		result.addWarning("storage.kind", "memory storage loses all credentials on restart - use \"firestore\" in production")
		return string(StorageKindMemory)
	case StorageKindFirestore:
		if _, ok := storage["gcpProject"]; !ok {
			result.addError("storage.gcpProject", "gcpProject is required when using firestore storage")
		}
	default:
		result.addError("storage.kind", "unknown storage kind '%s' - use \"memory\" or \"firestore\"", kind)
	}
	return kind
}

// validateSessionsStructure checks the sessions section and returns its kind
func validateSessionsStructure(rawConfig map[string]any, result *ValidationResult) string {
	sessions, ok := rawConfig["sessions"].(map[string]any)
	if !ok {
		if _, present := rawConfig["sessions"]; present {
			result.addError("sessions", "sessions must be an object")
		}
		return string(SessionsKindMemory)
	}

	kind, _ := sessions["kind"].(string)
	switch SessionsKind(kind) {
	case "", SessionsKindMemory, SessionsKindRedis:
	default:
		result.addError("sessions.kind", "unknown sessions kind '%s' - use \"memory\" or \"redis\"", kind)
	}

	if ttl := validateDurationField(sessions, "ttl", "sessions.ttl", result); ttl > 0 && ttl < time.Hour {
		result.addWarning("sessions.ttl", "ttl of %s is shorter than a Google access token lifetime - users will log in again often", ttl)
	}
	return kind
}

// validateDurationField checks that field, when present, is a non-negative duration string
func validateDurationField(section map[string]any, field, path string, result *ValidationResult) time.Duration {
	value, ok := section[field]
	if !ok {
		return 0
	}
	str, ok := value.(string)
	if !ok {
		result.addError(path, "%s must be a duration string like \"1m\" or \"24h\"", field)
		return 0
	}
	d, err := time.ParseDuration(str)
	if err != nil {
		result.addError(path, "invalid duration '%s': %v", str, err)
		return 0
	}
	if d < 0 {
		result.addError(path, "%s cannot be negative", field)
		return 0
	}
	return d
}

func validateEnvVarReference(value any, fieldName, path string) *ValidationError {
	switch v := value.(type) {
	case string:
		if matches := bashStyleRegex.FindStringSubmatch(v); len(matches) > 1 {
			return &ValidationError{
				Path:    path,
				Message: fmt.Sprintf("found bash-style syntax '%s' - use {\"$env\": \"%s\"} instead. Hint: JSON syntax prevents accidental shell expansion and ensures security", v, matches[1]),
			}
		}
		return &ValidationError{
			Path:    path,
			Message: fmt.Sprintf("%s must use environment variable reference {\"$env\": \"YOUR_ENV_VAR\"} instead of plain text. Hint: This prevents secrets from being stored in config files", fieldName),
		}
	case map[string]any:
		if _, hasEnv := v["$env"]; !hasEnv {
			return &ValidationError{
				Path:    path,
				Message: fmt.Sprintf("%s must use {\"$env\": \"YOUR_ENV_VAR\"} format", fieldName),
			}
		}
		return nil
	default:
		return &ValidationError{
			Path:    path,
			Message: fmt.Sprintf("%s must be an environment variable reference {\"$env\": \"YOUR_ENV_VAR\"}, not %T", fieldName, value),
		}
	}
}

func checkBashStyleSyntax(value any, path string, result *ValidationResult) {
	switch v := value.(type) {
	case string:
		for _, match := range bashStyleRegex.FindAllString(v, -1) {
			varName := strings.Trim(match, "${}")
			result.addWarning(path, "found bash-style syntax '%s' - use {\"$env\": \"%s\"} instead. Hint: JSON syntax prevents accidental shell expansion in scripts/CI and ensures unambiguous parsing", match, varName)
		}
	case map[string]any:
		if _, hasEnv := v["$env"]; hasEnv {
			return
		}
		for key, val := range v {
			newPath := key
			if path != "" {
				newPath = path + "." + key
			}
			checkBashStyleSyntax(val, newPath, result)
		}
	case []any:
		for i, item := range v {
			checkBashStyleSyntax(item, fmt.Sprintf("%s[%d]", path, i), result)
		}
	}
}
