package config

import (
	"errors"
	"fmt"

	"github.com/joeshaw/envdecode"
)

// Endpoints overrides the Google and YouTube API locations. Empty fields keep
// the production endpoints. Used to run the binary against local fakes.
type Endpoints struct {
	// ENV: GOOGLE_OAUTH_AUTH_URL
	GoogleAuthURL string `env:"GOOGLE_OAUTH_AUTH_URL"`
	// ENV: GOOGLE_OAUTH_TOKEN_URL
	GoogleTokenURL string `env:"GOOGLE_OAUTH_TOKEN_URL"`
	// ENV: GOOGLE_USERINFO_URL
	GoogleUserInfoURL string `env:"GOOGLE_USERINFO_URL"`
	// ENV: GOOGLE_JWKS_URL
	GoogleJWKSURL string `env:"GOOGLE_JWKS_URL"`
	// Base URL of the YouTube Data API, ending in a slash. ENV: YOUTUBE_API_URL
	YouTubeURL string `env:"YOUTUBE_API_URL"`
}

// EndpointsFromEnv reads endpoint overrides from the environment
func EndpointsFromEnv() (Endpoints, error) {
	var e Endpoints
	if err := envdecode.Decode(&e); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Endpoints{}, fmt.Errorf("decoding endpoint overrides: %w", err)
	}
	return e, nil
}
