// password_test.go

// unit tests for Hasher, GenerateSalt, and VerifyPassword.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"testing"
)

var allAlgorithms = []string{AlgHMACSHA256, AlgBLAKE2b256, AlgArgon2id}

// --- GenerateSalt ---

func TestGenerateSalt(t *testing.T) {
	t.Run("six raw bytes, base64 encoded", func(t *testing.T) {
		raw, enc, err := GenerateSalt()
		if err != nil {
			t.Fatalf("GenerateSalt returned error: %v", err)
		}
		if len(raw) != 6 {
			t.Errorf("raw length: expected 6, got %d", len(raw))
		}
		if enc != base64.StdEncoding.EncodeToString(raw) {
			t.Errorf("encoding mismatch: %q", enc)
		}
	})

	t.Run("successive salts differ", func(t *testing.T) {
		_, a, _ := GenerateSalt()
		_, b, _ := GenerateSalt()
		if a == b {
			t.Error("two salts should differ")
		}
	})
}

// --- NewHasher ---

func TestNewHasher(t *testing.T) {
	t.Run("empty defaults to hmac-sha256", func(t *testing.T) {
		h, err := NewHasher("")
		if err != nil {
			t.Fatalf("NewHasher: %v", err)
		}
		if h.Algorithm != AlgHMACSHA256 {
			t.Errorf("expected %q, got %q", AlgHMACSHA256, h.Algorithm)
		}
	})

	t.Run("unknown algorithm rejected", func(t *testing.T) {
		if _, err := NewHasher("md5"); err == nil {
			t.Error("expected error for md5")
		}
	})
}

// --- Hash ---

func TestHash(t *testing.T) {
	salt := []byte{1, 2, 3, 4, 5, 6}

	t.Run("hmac-sha256 is the salt-keyed HMAC of the password", func(t *testing.T) {
		h, _ := NewHasher(AlgHMACSHA256)
		got, err := h.Hash("Pa55word!", salt)
		if err != nil {
			t.Fatalf("Hash: %v", err)
		}
		mac := hmac.New(sha256.New, salt)
		mac.Write([]byte("Pa55word!"))
		want := base64.StdEncoding.EncodeToString(mac.Sum(nil))
		if got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	})

	for _, alg := range allAlgorithms {
		t.Run(alg+" is deterministic", func(t *testing.T) {
			h, _ := NewHasher(alg)
			a, _ := h.Hash("same", salt)
			b, _ := h.Hash("same", salt)
			if a != b {
				t.Errorf("hash changed between calls: %q vs %q", a, b)
			}
		})

		t.Run(alg+" differs for different passwords", func(t *testing.T) {
			h, _ := NewHasher(alg)
			a, _ := h.Hash("password-one", salt)
			b, _ := h.Hash("password-two", salt)
			if a == b {
				t.Error("different passwords produced the same hash")
			}
		})

		t.Run(alg+" differs for different salts", func(t *testing.T) {
			h, _ := NewHasher(alg)
			a, _ := h.Hash("same", salt)
			b, _ := h.Hash("same", []byte{6, 5, 4, 3, 2, 1})
			if a == b {
				t.Error("different salts produced the same hash")
			}
		})
	}
}

// --- VerifyPassword ---

func TestVerifyPassword(t *testing.T) {
	for _, alg := range allAlgorithms {
		t.Run(alg+" round trip", func(t *testing.T) {
			h, _ := NewHasher(alg)
			hash, salt, err := h.HashNew("correcthorsebatterystaple")
			if err != nil {
				t.Fatalf("HashNew: %v", err)
			}
			if !VerifyPassword("correcthorsebatterystaple", hash, salt, alg) {
				t.Error("correct password should verify")
			}
			if VerifyPassword("wrongpassword", hash, salt, alg) {
				t.Error("wrong password should not verify")
			}
		})
	}

	t.Run("empty stored algorithm means hmac-sha256", func(t *testing.T) {
		h, _ := NewHasher(AlgHMACSHA256)
		hash, salt, _ := h.HashNew("legacy")
		if !VerifyPassword("legacy", hash, salt, "") {
			t.Error("legacy credential should verify with empty algorithm")
		}
	})

	t.Run("algorithm mismatch does not verify", func(t *testing.T) {
		h, _ := NewHasher(AlgBLAKE2b256)
		hash, salt, _ := h.HashNew("pw")
		if VerifyPassword("pw", hash, salt, AlgHMACSHA256) {
			t.Error("blake2b hash should not verify as hmac")
		}
	})

	t.Run("malformed inputs do not verify", func(t *testing.T) {
		h, _ := NewHasher("")
		hash, salt, _ := h.HashNew("pw")
		cases := map[string][3]string{
			"bad hash base64": {"!!!", salt, ""},
			"bad salt base64": {hash, "%%%", ""},
			"empty hash":      {"", salt, ""},
			"unknown alg":     {hash, salt, "sha1"},
		}
		for name, c := range cases {
			if VerifyPassword("pw", c[0], c[1], c[2]) {
				t.Errorf("%s: should not verify", name)
			}
		}
	})

	t.Run("dummy credential never verifies", func(t *testing.T) {
		for _, alg := range allAlgorithms {
			if VerifyPassword("", dummyHash, dummySalt, alg) {
				t.Errorf("%s: dummy credential verified", alg)
			}
		}
	})
}
