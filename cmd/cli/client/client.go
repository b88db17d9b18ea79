// Package client calls the audit API on behalf of CLI commands.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/crucial707/asset-audit/cmd/cli/config"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Error   string            `json:"error"`
	Fields  map[string]string `json:"fields"`
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status  int
	Message string
	Fields  map[string]string
	// Data is set on already-scanned conflicts.
	Data json.RawMessage
}

func (e *APIError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return fmt.Sprintf("%s (HTTP %d): %s", e.Message, e.Status, strings.Join(parts, "; "))
}

// Do sends an authenticated request and decodes the envelope's data into out (if non-nil).
// It returns the envelope message on success.
func Do(method, path string, body, out any) (string, error) {
	token, err := config.ReadToken()
	if err != nil {
		return "", err
	}

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return "", err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, config.APIURL()+path, rdr)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return "", fmt.Errorf("decode response (HTTP %d): %w", resp.StatusCode, err)
	}
	if string(env.Data) == "null" {
		env.Data = nil
	}
	if resp.StatusCode >= 300 || !env.Success {
		return "", &APIError{Status: resp.StatusCode, Message: env.Error, Fields: env.Fields, Data: env.Data}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return "", fmt.Errorf("decode data: %w", err)
		}
	}
	return env.Message, nil
}
