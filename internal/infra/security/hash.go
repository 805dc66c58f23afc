package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/bmyhack/omms-api/internal/infra/config"
)

// PasswordHasher derives Argon2id hashes using the configured parameters.
// Stored strings are encoded as "salt:hash" with both parts base64-encoded.
type PasswordHasher struct {
	cfg config.Argon2Settings
}

// NewPasswordHasher builds a hasher, filling in safe defaults for any
// unset parameter.
func NewPasswordHasher(cfg config.Argon2Settings) *PasswordHasher {
	if cfg.Memory == 0 {
		cfg.Memory = 64 * 1024
	}
	if cfg.Iterations == 0 {
		cfg.Iterations = 3
	}
	if cfg.Parallelism == 0 {
		cfg.Parallelism = 4
	}
	if cfg.SaltLength == 0 {
		cfg.SaltLength = 16
	}
	if cfg.KeyLength == 0 {
		cfg.KeyLength = 32
	}
	return &PasswordHasher{cfg: cfg}
}

// Hash generates an Argon2id hash for the provided password.
func (h *PasswordHasher) Hash(password string) (string, error) {
	salt := make([]byte, h.cfg.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, h.cfg.Iterations, h.cfg.Memory, h.cfg.Parallelism, h.cfg.KeyLength)
	encodedSalt := base64.StdEncoding.EncodeToString(salt)
	encodedHash := base64.StdEncoding.EncodeToString(hash)

	return fmt.Sprintf("%s:%s", encodedSalt, encodedHash), nil
}

// Verify compares the provided password against a stored Argon2id hash.
func (h *PasswordHasher) Verify(password, encoded string) (bool, error) {
	if password == "" || encoded == "" {
		return false, nil
	}

	parts := strings.Split(encoded, ":")
	if len(parts) != 2 {
		return false, fmt.Errorf("invalid password hash format")
	}

	salt, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return false, fmt.Errorf("decode salt: %w", err)
	}

	storedHash, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return false, fmt.Errorf("decode hash: %w", err)
	}

	computed := argon2.IDKey([]byte(password), salt, h.cfg.Iterations, h.cfg.Memory, h.cfg.Parallelism, uint32(len(storedHash)))

	if subtle.ConstantTimeCompare(computed, storedHash) == 1 {
		return true, nil
	}

	return false, nil
}
