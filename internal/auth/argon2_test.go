package auth

import (
	"strings"
	"testing"
)

func TestHashSecret_PHCFormat(t *testing.T) {
	t.Parallel()

	hash, err := HashSecret("sk_live_abc123_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b")
	if err != nil {
		t.Fatalf("HashSecret failed: %v", err)
	}

	parts := strings.Split(hash, "$")
	if len(parts) != 6 {
		t.Fatalf("hash should have 6 parts, got %d: %s", len(parts), hash)
	}
	if parts[1] != "argon2id" || parts[2] != "v=19" || parts[3] != "m=65536,t=3,p=4" {
		t.Errorf("unexpected parameters in %s", hash)
	}
}

func TestHashSecret_SaltedAndVerifiable(t *testing.T) {
	t.Parallel()

	const secret = "same-secret"

	h1, err := HashSecret(secret)
	if err != nil {
		t.Fatalf("HashSecret failed: %v", err)
	}
	h2, err := HashSecret(secret)
	if err != nil {
		t.Fatalf("HashSecret failed: %v", err)
	}
	if h1 == h2 {
		t.Error("hashes of the same secret should differ by salt")
	}

	for _, h := range []string{h1, h2} {
		ok, err := VerifySecret(secret, h)
		if err != nil || !ok {
			t.Errorf("VerifySecret = %v, %v; want true", ok, err)
		}
	}

	ok, err := VerifySecret("other-secret", h1)
	if err != nil || ok {
		t.Errorf("VerifySecret wrong secret = %v, %v; want false", ok, err)
	}
}

func TestVerifySecret_BadHashes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		hash string
		want error
	}{
		{"empty", "", ErrInvalidHash},
		{"bcrypt", "$2a$10$abcdefghijklmnopqrstuv", ErrInvalidHash},
		{"wrong algorithm", "$argon2i$v=19$m=65536,t=3,p=4$c2FsdA$aGFzaA", ErrInvalidHash},
		{"wrong version", "$argon2id$v=16$m=65536,t=3,p=4$c2FsdA$aGFzaA", ErrIncompatibleVersion},
		{"bad params", "$argon2id$v=19$m=x$c2FsdA$aGFzaA", ErrInvalidHash},
		{"bad salt", "$argon2id$v=19$m=65536,t=3,p=4$!!!$aGFzaA", ErrInvalidHash},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := VerifySecret("x", tt.hash); err != tt.want {
				t.Errorf("VerifySecret error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNeedsRehash(t *testing.T) {
	t.Parallel()

	cheap := HashParams{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16}
	weak, err := HashSecretWith("secret", cheap)
	if err != nil {
		t.Fatalf("HashSecretWith failed: %v", err)
	}
	if ok, err := VerifySecret("secret", weak); err != nil || !ok {
		t.Fatalf("VerifySecret cheap hash = %v, %v", ok, err)
	}

	tests := []struct {
		name   string
		hash   string
		params HashParams
		want   bool
	}{
		{"weaker than default", weak, DefaultHashParams, true},
		{"matches its own params", weak, cheap, false},
		{"garbage", "not-a-hash", cheap, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := NeedsRehash(tt.hash, tt.params); got != tt.want {
				t.Errorf("NeedsRehash = %v, want %v", got, tt.want)
			}
		})
	}
}
