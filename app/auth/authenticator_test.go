package auth

import (
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	return string(hash)
}

func envLookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		expected []string
	}{
		{
			name:     "empty",
			env:      map[string]string{},
			expected: nil,
		},
		{
			name: "unnumbered and numbered",
			env: map[string]string{
				"BASIC_AUTH_USERNAME":       "admin",
				"BASIC_AUTH_PASSWORD_HASH":  "h0",
				"BASIC_AUTH_USERNAME1":      "alice",
				"BASIC_AUTH_PASSWORD_HASH1": "h1",
				"BASIC_AUTH_USERNAME2":      "bob",
				"BASIC_AUTH_PASSWORD_HASH2": "h2",
			},
			expected: []string{"admin", "alice", "bob"},
		},
		{
			name: "index one is optional",
			env: map[string]string{
				"BASIC_AUTH_USERNAME2":      "bob",
				"BASIC_AUTH_PASSWORD_HASH2": "h2",
				"BASIC_AUTH_USERNAME3":      "carol",
				"BASIC_AUTH_PASSWORD_HASH3": "h3",
			},
			expected: []string{"bob", "carol"},
		},
		{
			name: "stops at first gap",
			env: map[string]string{
				"BASIC_AUTH_USERNAME2":      "bob",
				"BASIC_AUTH_PASSWORD_HASH2": "h2",
				"BASIC_AUTH_USERNAME4":      "dave",
				"BASIC_AUTH_PASSWORD_HASH4": "h4",
			},
			expected: []string{"bob"},
		},
		{
			name: "incomplete pair ends scan",
			env: map[string]string{
				"BASIC_AUTH_USERNAME1":      "alice",
				"BASIC_AUTH_PASSWORD_HASH1": "h1",
				"BASIC_AUTH_USERNAME2":      "bob",
				"BASIC_AUTH_USERNAME3":      "carol",
				"BASIC_AUTH_PASSWORD_HASH3": "h3",
			},
			expected: []string{"alice"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := FromEnv(envLookup(tt.env))
			if len(users) != len(tt.expected) {
				t.Fatalf("Expected %d users, got %d: %+v", len(tt.expected), len(users), users)
			}
			for i, name := range tt.expected {
				if users[i].Username != name {
					t.Errorf("Expected user %d to be %q, got %q", i, name, users[i].Username)
				}
			}
		})
	}
}

func TestFromFile(t *testing.T) {
	dir := t.TempDir()

	valid := filepath.Join(dir, "users.yml")
	content := "users:\n  - username: alice\n    password_hash: h1\n  - username: bob\n    password_hash: h2\n"
	if err := os.WriteFile(valid, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	users, err := FromFile(valid)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(users) != 2 || users[1].Username != "bob" || users[1].PasswordHash != "h2" {
		t.Errorf("Unexpected users: %+v", users)
	}

	incomplete := filepath.Join(dir, "bad.yml")
	if err := os.WriteFile(incomplete, []byte("users:\n  - username: alice\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := FromFile(incomplete); err == nil {
		t.Error("Expected error for entry without password_hash")
	}

	if _, err := FromFile(filepath.Join(dir, "missing.yml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("BASIC_AUTH_USERNAME", "admin")
	t.Setenv("BASIC_AUTH_PASSWORD_HASH", mustHash(t, "secret"))

	path := filepath.Join(t.TempDir(), "users.yml")
	content := "users:\n  - username: alice\n    password_hash: '" + mustHash(t, "wonderland") + "'\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	a, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if a.Len() != 2 {
		t.Fatalf("Expected 2 users, got %d", a.Len())
	}
	if !a.Check("admin", "secret") || !a.Check("alice", "wonderland") {
		t.Error("Expected both users to authenticate")
	}
}

func TestAuthenticator_Check(t *testing.T) {
	a := NewAuthenticator([]User{
		{Username: "alice", PasswordHash: mustHash(t, "wonderland")},
		{Username: "alice", PasswordHash: mustHash(t, "other")},
		{Username: "broken", PasswordHash: "not-a-bcrypt-hash"},
	})

	if a.Len() != 2 {
		t.Errorf("Expected duplicates to collapse, got %d users", a.Len())
	}

	tests := []struct {
		username string
		password string
		expected bool
	}{
		{"alice", "wonderland", true},
		{"alice", "other", false},
		{"alice", "", false},
		{"bob", "wonderland", false},
		{"broken", "anything", false},
	}

	for _, tt := range tests {
		if got := a.Check(tt.username, tt.password); got != tt.expected {
			t.Errorf("Check(%q, %q) = %v, expected %v", tt.username, tt.password, got, tt.expected)
		}
	}
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatal(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte("hunter2")) != nil {
		t.Error("Expected hash to verify")
	}

	if _, err := HashPassword(""); err != ErrEmptyPassword {
		t.Errorf("Expected ErrEmptyPassword, got %v", err)
	}
}
