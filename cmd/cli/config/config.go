package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

const (
	defaultAPIURL = "http://localhost:8080"
	tokenFileName = ".auditctl_token"
)

// ErrNoToken is returned when neither AUDIT_API_TOKEN nor the token file is available.
var ErrNoToken = errors.New("no API token: run `auditctl token --save` or set AUDIT_API_TOKEN")

// APIURL returns the base URL for the audit API.
// It can be overridden with the AUDIT_API_URL environment variable.
func APIURL() string {
	if v := os.Getenv("AUDIT_API_URL"); v != "" {
		return strings.TrimRight(v, "/")
	}
	return defaultAPIURL
}

// ReadToken returns AUDIT_API_TOKEN, falling back to the token file in the home directory.
func ReadToken() (string, error) {
	if v := os.Getenv("AUDIT_API_TOKEN"); v != "" {
		return v, nil
	}
	data, err := os.ReadFile(TokenPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNoToken
		}
		return "", err
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// SaveToken stores the token for later commands, readable only by the owner.
func SaveToken(token string) error {
	return os.WriteFile(TokenPath(), []byte(token), 0600)
}

// TokenPath is the token file location. AUDITCTL_TOKEN_FILE overrides it.
func TokenPath() string {
	if v := os.Getenv("AUDITCTL_TOKEN_FILE"); v != "" {
		return v
	}
	dir, _ := os.UserHomeDir()
	return filepath.Join(dir, tokenFileName)
}
