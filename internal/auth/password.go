package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidPasscode = errors.New("invalid passcode")
	ErrEmptyPasscode   = errors.New("passcode must not be empty")
	ErrPasscodeTooLong = errors.New("passcode exceeds maximum length of 72 bytes")
)

// HashPasscode creates a bcrypt hash of the shared passcode. Short numeric
// passcodes are allowed; the rate limiter covers guessing.
func HashPasscode(passcode string, cost int) (string, error) {
	if passcode == "" {
		return "", ErrEmptyPasscode
	}
	// bcrypt has a 72-byte limit
	if len(passcode) > 72 {
		return "", ErrPasscodeTooLong
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(passcode), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPasscode compares a passcode with its hash.
func CheckPasscode(passcode, hash string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(passcode))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidPasscode
		}
		return err
	}
	return nil
}

// ResolvePasscodeHash returns the configured hash, or hashes the plain
// passcode when no hash is configured.
func ResolvePasscodeHash(passcode, hash string, cost int) (string, error) {
	if hash != "" {
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return "", err
		}
		return hash, nil
	}
	return HashPasscode(passcode, cost)
}

// GenerateSessionSecret creates a random 32-byte secret for CSRF tokens.
func GenerateSessionSecret() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
