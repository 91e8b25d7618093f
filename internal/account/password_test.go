package account

import (
	"strings"
	"testing"
)

func TestHashPassword_Format(t *testing.T) {
	hash, err := HashPassword("swing-easy")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	key, salt, ok := strings.Cut(hash, ".")
	if !ok {
		t.Fatalf("hash %q has no separator", hash)
	}
	if len(key) != keyBytes*2 {
		t.Errorf("key hex length = %d, want %d", len(key), keyBytes*2)
	}
	if len(salt) != saltBytes*2 {
		t.Errorf("salt hex length = %d, want %d", len(salt), saltBytes*2)
	}
}

func TestHashPassword_SaltsDiffer(t *testing.T) {
	a, _ := HashPassword("same")
	b, _ := HashPassword("same")
	if a == b {
		t.Error("two hashes of the same password are identical")
	}
}

func TestComparePassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	tests := []struct {
		name     string
		supplied string
		stored   string
		want     bool
	}{
		{"match", "correct horse", hash, true},
		{"wrong password", "battery staple", hash, false},
		{"no separator", "correct horse", "deadbeef", false},
		{"bad hex", "correct horse", "zz.salt", false},
		{"short key", "correct horse", "abcd.salt", false},
		{"empty salt", "correct horse", strings.Split(hash, ".")[0] + ".", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComparePassword(tt.supplied, tt.stored); got != tt.want {
				t.Errorf("ComparePassword() = %v, want %v", got, tt.want)
			}
		})
	}
}
