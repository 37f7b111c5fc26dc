package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

const (
	envUsername     = "BASIC_AUTH_USERNAME"
	envPasswordHash = "BASIC_AUTH_PASSWORD_HASH"
)

var ErrEmptyPassword = errors.New("password is empty")

type User struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
}

type usersFile struct {
	Users []User `yaml:"users"`
}

// Authenticator checks Basic auth credentials against bcrypt hashes.
type Authenticator struct {
	users map[string]string
}

func NewAuthenticator(users []User) *Authenticator {
	a := &Authenticator{users: make(map[string]string, len(users))}
	for _, u := range users {
		if _, ok := a.users[u.Username]; ok {
			slog.Warn("Duplicate user, keeping first definition", "username", u.Username)
			continue
		}
		a.users[u.Username] = u.PasswordHash
	}
	return a
}

// Load collects users from the environment and, when path is set, from a
// YAML users file.
func Load(path string) (*Authenticator, error) {
	users := FromEnv(os.LookupEnv)

	if path != "" {
		fileUsers, err := FromFile(path)
		if err != nil {
			return nil, err
		}
		users = append(users, fileUsers...)
	}

	return NewAuthenticator(users), nil
}

// FromEnv reads the unnumbered credential pair and then numbered pairs
// starting at 1. Scanning stops at the first incomplete pair after index 1.
func FromEnv(lookup func(string) (string, bool)) []User {
	var users []User

	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	if u, h := get(envUsername), get(envPasswordHash); u != "" && h != "" {
		users = append(users, User{Username: u, PasswordHash: h})
	}

	for i := 1; ; i++ {
		suffix := strconv.Itoa(i)
		u, h := get(envUsername+suffix), get(envPasswordHash+suffix)

		if u == "" || h == "" {
			if u != "" || h != "" {
				slog.Warn("Incomplete credential pair in environment", "index", i)
			}
			if i == 1 {
				continue
			}
			break
		}

		users = append(users, User{Username: u, PasswordHash: h})
	}

	return users
}

func FromFile(path string) ([]User, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read users file: %w", err)
	}

	var file usersFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse users file %s: %w", path, err)
	}

	users := make([]User, 0, len(file.Users))
	for i, u := range file.Users {
		if u.Username == "" || u.PasswordHash == "" {
			return nil, fmt.Errorf("users file %s: entry %d needs username and password_hash", path, i)
		}
		users = append(users, u)
	}

	return users, nil
}

func (a *Authenticator) Len() int {
	return len(a.users)
}

func (a *Authenticator) Check(username, password string) bool {
	hash, ok := a.users[username]
	if !ok {
		slog.Info("No matching credentials found", "username", username)
		return false
	}

	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(hash), nil
}
