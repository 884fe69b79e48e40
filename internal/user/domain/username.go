package domain

import (
	"encoding/base32"
	"strings"
)

const (
	encodedPrefix     = "enc."
	UsernameMinLength = 5
	UsernameMaxLength = 30
)

// Encode returns the stored form of a username: "enc." followed by the
// base32 encoding with "=" padding replaced by ".". Encoded input is
// returned unchanged.
func Encode(username string) string {
	if strings.HasPrefix(username, encodedPrefix) {
		return username
	}
	encoded := base32.StdEncoding.EncodeToString([]byte(username))
	return encodedPrefix + strings.ReplaceAll(encoded, "=", ".")
}

// Decode reverses Encode. Names without the prefix are returned unchanged.
func Decode(username string) (string, error) {
	if !strings.HasPrefix(username, encodedPrefix) {
		return username, nil
	}
	raw := strings.ToUpper(strings.TrimPrefix(username, encodedPrefix))
	raw = strings.ReplaceAll(raw, ".", "=")
	decoded, err := base32.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", ErrInvalidUsername
	}
	return string(decoded), nil
}

// UsernamesMatch compares the decoded forms of two usernames, ignoring case.
// The identity provider lower-cases stored names, which Decode tolerates.
func UsernamesMatch(a, b string) bool {
	return strings.EqualFold(decodeOrRaw(a), decodeOrRaw(b))
}

func decodeOrRaw(username string) string {
	decoded, err := Decode(username)
	if err != nil {
		return username
	}
	return decoded
}

func ValidateUsername(username string) error {
	decoded, err := Decode(username)
	if err != nil {
		return err
	}
	n := len([]rune(decoded))
	if n < UsernameMinLength || n > UsernameMaxLength {
		return ErrInvalidUsername
	}
	return nil
}
