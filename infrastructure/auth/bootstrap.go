package auth

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Bootstrap carries credentials delivered out of band, e.g. scanned from a
// QR code on another signed-in device.
type Bootstrap struct {
	Token string            `json:"token"`
	Prefs map[string]string `json:"prefs,omitempty"`
}

const signInPrefix = "/signin/"

// ConsumeSignInPath extracts bootstrap credentials from a deep-link path of
// the form "/signin/<base64-encoded JSON>". It returns the credentials and
// the path the caller should replace the current one with, so the token does
// not linger in history. Paths without the prefix return (nil, path, nil).
func ConsumeSignInPath(path string) (*Bootstrap, string, error) {
	encoded, ok := strings.CutPrefix(path, signInPrefix)
	if !ok || encoded == "" {
		return nil, path, nil
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		// Tolerate URL-safe encoding from QR generators.
		raw, err = base64.URLEncoding.DecodeString(encoded)
		if err != nil {
			return nil, path, fmt.Errorf("malformed sign-in path: %w", err)
		}
	}

	var b Bootstrap
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, path, fmt.Errorf("malformed sign-in payload: %w", err)
	}
	if b.Token == "" {
		return nil, path, fmt.Errorf("sign-in payload carries no token")
	}

	return &b, "/", nil
}

// EncodeSignInPath builds the deep-link path for the given bootstrap
// payload, the inverse of ConsumeSignInPath.
func EncodeSignInPath(b Bootstrap) (string, error) {
	raw, err := json.Marshal(b)
	if err != nil {
		return "", fmt.Errorf("failed to encode sign-in payload: %w", err)
	}
	return signInPrefix + base64.StdEncoding.EncodeToString(raw), nil
}
