package auth

import (
	"strings"
	"testing"
)

func TestGenerateServiceKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		env        string
		wantPrefix string
	}{
		{EnvLive, "sk_live_"},
		{EnvTest, "sk_test_"},
		{"staging", "sk_live_"},
		{"", "sk_live_"},
	}

	for _, tt := range tests {
		key, err := GenerateServiceKey(tt.env)
		if err != nil {
			t.Fatalf("GenerateServiceKey(%q) failed: %v", tt.env, err)
		}
		if !strings.HasPrefix(key.Plaintext, tt.wantPrefix) {
			t.Errorf("GenerateServiceKey(%q) = %s, want prefix %s", tt.env, key.Plaintext, tt.wantPrefix)
		}

		parsed, err := ParseServiceKey(key.Plaintext)
		if err != nil {
			t.Fatalf("generated key does not parse: %v", err)
		}
		if parsed.Prefix != key.Prefix || len(parsed.Secret) != KeySecretLen {
			t.Errorf("parsed %+v does not match generated prefix %s", parsed, key.Prefix)
		}

		ok, err := VerifySecret(key.Plaintext, key.Hash)
		if err != nil || !ok {
			t.Errorf("hash does not verify: %v %v", ok, err)
		}
	}
}

func TestGenerateServiceKey_Unique(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		key, err := GenerateServiceKey(EnvTest)
		if err != nil {
			t.Fatalf("GenerateServiceKey failed: %v", err)
		}
		if seen[key.Plaintext] {
			t.Fatalf("duplicate key generated: %s", key.Plaintext)
		}
		seen[key.Plaintext] = true
	}
}

func TestParseServiceKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		key        string
		wantEnv    string
		wantPrefix string
		wantErr    error
	}{
		{"valid live", "sk_live_abc123_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b", "live", "abc123", nil},
		{"valid test", "sk_test_def456_0123456789abcdef0123456789abcdef", "test", "def456", nil},
		{"public key prefix", "pk_live_abc123_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b", "", "", ErrInvalidKeyFormat},
		{"unknown env", "sk_prod_abc123_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b", "", "", ErrInvalidKeyFormat},
		{"short secret", "sk_live_abc123_4f8d", "", "", ErrInvalidKeyFormat},
		{"uppercase hex", "sk_live_ABC123_4F8D2E1B9C7A5F3D2E1B9C7A5F3D2E1B", "", "", ErrInvalidKeyFormat},
		{"empty", "", "", "", ErrInvalidKeyFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			parsed, err := ParseServiceKey(tt.key)
			if tt.wantErr != nil {
				if err != tt.wantErr {
					t.Errorf("ParseServiceKey(%q) error = %v, want %v", tt.key, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseServiceKey(%q) unexpected error: %v", tt.key, err)
			}
			if parsed.Env != tt.wantEnv || parsed.Prefix != tt.wantPrefix {
				t.Errorf("parsed = %+v, want env %s prefix %s", parsed, tt.wantEnv, tt.wantPrefix)
			}
		})
	}
}
