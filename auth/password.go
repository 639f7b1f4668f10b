package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/c360/phonebook/errors"
)

// PasswordHasher hashes and verifies passwords with argon2id.
// Parameters follow the OWASP password storage recommendations.
type PasswordHasher struct {
	memory      uint32 // memory cost in KiB
	iterations  uint32 // time cost
	parallelism uint8
	saltLength  uint32
	keyLength   uint32
}

// NewPasswordHasher creates a hasher with default parameters
func NewPasswordHasher() *PasswordHasher {
	return &PasswordHasher{
		memory:      64 * 1024,
		iterations:  3,
		parallelism: 2,
		saltLength:  16,
		keyLength:   32,
	}
}

// Hash derives an encoded argon2id hash from a password
func (h *PasswordHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", errors.WrapValidation(errors.ErrRequiredField, "PasswordHasher", "Hash",
			"password is required")
	}

	salt := make([]byte, h.saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", errors.WrapFatal(err, "PasswordHasher", "Hash", "salt generation")
	}

	key := argon2.IDKey([]byte(password), salt, h.iterations, h.memory, h.parallelism, h.keyLength)

	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.memory,
		h.iterations,
		h.parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key))

	return encoded, nil
}

// Verify checks a password against an encoded hash in constant time
func (h *PasswordHasher) Verify(password, encodedHash string) (bool, error) {
	params, salt, key, err := decodeHash(encodedHash)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(password), salt,
		params.iterations, params.memory, params.parallelism, params.keyLength)

	return subtle.ConstantTimeCompare(key, computed) == 1, nil
}

// decodeHash splits an encoded argon2id hash into its parameters, salt, and key
func decodeHash(encodedHash string) (*PasswordHasher, []byte, []byte, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return nil, nil, nil, errors.WrapValidation(errors.ErrInvalidInput,
			"PasswordHasher", "Verify", "hash format")
	}
	if parts[1] != "argon2id" {
		return nil, nil, nil, errors.WrapValidation(errors.ErrInvalidInput,
			"PasswordHasher", "Verify", "unsupported algorithm")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, nil, nil, errors.WrapValidation(err, "PasswordHasher", "Verify", "version parse")
	}
	if version != argon2.Version {
		return nil, nil, nil, errors.WrapValidation(errors.ErrInvalidInput,
			"PasswordHasher", "Verify", "incompatible argon2 version")
	}

	params := &PasswordHasher{}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d",
		&params.memory, &params.iterations, &params.parallelism); err != nil {
		return nil, nil, nil, errors.WrapValidation(err, "PasswordHasher", "Verify", "parameter parse")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, nil, errors.WrapValidation(err, "PasswordHasher", "Verify", "salt decode")
	}
	params.saltLength = uint32(len(salt))

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, nil, nil, errors.WrapValidation(err, "PasswordHasher", "Verify", "key decode")
	}
	params.keyLength = uint32(len(key))

	return params, salt, key, nil
}
