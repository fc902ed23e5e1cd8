package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	defaultAPIURL = "http://localhost:8080"
	tokenFileName = ".coach_token"
)

// APIURL returns the base URL for the scheduler API.
// It can be overridden with the COACH_API_URL environment variable.
func APIURL() string {
	if v := os.Getenv("COACH_API_URL"); v != "" {
		return strings.TrimRight(v, "/")
	}
	return defaultAPIURL
}

// Token returns the coach token from COACH_TOKEN, falling back to the token
// saved by "coachctl login".
func Token() (string, error) {
	if v := os.Getenv("COACH_TOKEN"); v != "" {
		return v, nil
	}
	data, err := os.ReadFile(TokenPath())
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// SaveToken stores token for later commands.
func SaveToken(token string) error {
	return os.WriteFile(TokenPath(), []byte(token), 0600)
}

// ProcessSecret is the bearer credential for /internal endpoints.
func ProcessSecret() string {
	return os.Getenv("PROCESS_SECRET")
}

// TokenPath is where the coach token is saved. COACH_TOKEN_FILE overrides it.
func TokenPath() string {
	if v := os.Getenv("COACH_TOKEN_FILE"); v != "" {
		return v
	}
	dir, _ := os.UserHomeDir()
	return filepath.Join(dir, tokenFileName)
}
