// password.go

// Salted keyed-hash password hashing and verification.
package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/blake2b"
)

// Hash algorithms a credential can be stored under.
// An empty algorithm on a stored credential means AlgHMACSHA256.
const (
	AlgHMACSHA256 = "hmac-sha256"
	AlgBLAKE2b256 = "blake2b-256"
	AlgArgon2id   = "argon2id"
)

// saltLen is the raw salt size. Salts are random and never deduplicated.
const saltLen = 6

const (
	argonTime    = uint32(3)
	argonMemory  = uint32(64 * 1024)
	argonThreads = uint8(2)
	argonKeyLen  = uint32(32)
)

// Hasher derives password hashes for new credentials under one algorithm.
// Verification always uses the algorithm recorded on the credential.
type Hasher struct {
	Algorithm string
}

// NewHasher returns a Hasher for alg; empty means AlgHMACSHA256.
func NewHasher(alg string) (*Hasher, error) {
	if alg == "" {
		alg = AlgHMACSHA256
	}
	switch alg {
	case AlgHMACSHA256, AlgBLAKE2b256, AlgArgon2id:
		return &Hasher{Algorithm: alg}, nil
	}
	return nil, fmt.Errorf("unsupported password hash algorithm %q", alg)
}

// GenerateSalt returns 6 random bytes and their base64 encoding.
func GenerateSalt() ([]byte, string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, "", fmt.Errorf("generating salt: %w", err)
	}
	return salt, base64.StdEncoding.EncodeToString(salt), nil
}

// Hash returns the base64 keyed hash of password under salt.
// Deterministic for a fixed (password, salt, algorithm).
func (h *Hasher) Hash(password string, salt []byte) (string, error) {
	sum, err := keyedHash(h.Algorithm, []byte(password), salt)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sum), nil
}

// HashNew generates a fresh salt and hashes password with it.
// Returns the base64 hash and salt ready to store.
func (h *Hasher) HashNew(password string) (hash, salt string, err error) {
	raw, salt, err := GenerateSalt()
	if err != nil {
		return "", "", err
	}
	hash, err = h.Hash(password, raw)
	if err != nil {
		return "", "", err
	}
	return hash, salt, nil
}

// VerifyPassword recomputes the hash of password with the stored salt and
// algorithm and compares it in constant time. Malformed input never verifies.
func VerifyPassword(password, storedHash, storedSalt, alg string) bool {
	salt, err := base64.StdEncoding.DecodeString(storedSalt)
	if err != nil {
		return false
	}
	want, err := base64.StdEncoding.DecodeString(storedHash)
	if err != nil || len(want) == 0 {
		return false
	}
	got, err := keyedHash(alg, []byte(password), salt)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(got, want) == 1
}

// Fixed credential checked when the email is unknown, so a miss costs the
// same as a wrong password. Never matches a real password.
var (
	dummySalt = base64.StdEncoding.EncodeToString([]byte("dummy!"))
	dummyHash = base64.StdEncoding.EncodeToString(make([]byte, sha256.Size))
)

// verifyDummy burns one verification under alg and discards the result.
func verifyDummy(password, alg string) {
	VerifyPassword(password, dummyHash, dummySalt, alg)
}

func keyedHash(alg string, password, salt []byte) ([]byte, error) {
	switch alg {
	case "", AlgHMACSHA256:
		mac := hmac.New(sha256.New, salt)
		mac.Write(password)
		return mac.Sum(nil), nil
	case AlgBLAKE2b256:
		d, err := blake2b.New256(salt)
		if err != nil {
			return nil, fmt.Errorf("blake2b: %w", err)
		}
		d.Write(password)
		return d.Sum(nil), nil
	case AlgArgon2id:
		return argon2.IDKey(password, salt, argonTime, argonMemory, argonThreads, argonKeyLen), nil
	}
	return nil, fmt.Errorf("unsupported password hash algorithm %q", alg)
}
