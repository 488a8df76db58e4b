// Package auth checks handshake credentials against a yaml user table.
package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type fileUser struct {
	ID           int64  `yaml:"id"`
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
	// Password is accepted for local setups and hashed at load time.
	Password string `yaml:"password"`
}

type file struct {
	AllowRegistration bool       `yaml:"allow_registration"`
	Users             []fileUser `yaml:"users"`
}

type user struct {
	id   int64
	hash []byte
}

// Users is the credential table. Safe for concurrent use.
type Users struct {
	mu       sync.RWMutex
	byName   map[string]user
	register bool
	nextID   int64
	cost     int
}

func NewUsers(allowRegistration bool) *Users {
	return &Users{byName: map[string]user{}, register: allowRegistration, nextID: 1, cost: bcrypt.DefaultCost}
}

// LoadUsers reads a users file. Usernames are case-insensitive.
func LoadUsers(path string) (*Users, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("users.yaml: %w", err)
	}
	u := NewUsers(f.AllowRegistration)
	for i, fu := range f.Users {
		name := normalize(fu.Username)
		if name == "" {
			return nil, fmt.Errorf("users.yaml: entry %d has no username", i)
		}
		if _, dup := u.byName[name]; dup {
			return nil, fmt.Errorf("users.yaml: duplicate username %q", fu.Username)
		}
		hash := []byte(fu.PasswordHash)
		if len(hash) == 0 {
			if fu.Password == "" {
				return nil, fmt.Errorf("users.yaml: %q has no password", fu.Username)
			}
			hash, err = bcrypt.GenerateFromPassword([]byte(fu.Password), u.cost)
			if err != nil {
				return nil, fmt.Errorf("users.yaml: hash %q: %w", fu.Username, err)
			}
		}
		id := fu.ID
		if id <= 0 {
			id = u.nextID
		}
		if id >= u.nextID {
			u.nextID = id + 1
		}
		u.byName[name] = user{id: id, hash: hash}
	}
	return u, nil
}

// Add registers a user with a plaintext password and returns its id.
func (u *Users) Add(username, password string) (int64, error) {
	name := normalize(username)
	if name == "" || password == "" {
		return 0, ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), u.cost)
	if err != nil {
		return 0, err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if existing, ok := u.byName[name]; ok {
		return existing.id, fmt.Errorf("user %q exists", username)
	}
	id := u.nextID
	u.nextID++
	u.byName[name] = user{id: id, hash: hash}
	return id, nil
}

// Authenticate returns the user id for valid credentials. With registration enabled an
// unknown username is created on first use.
func (u *Users) Authenticate(username, password string) (int64, error) {
	name := normalize(username)
	if name == "" || password == "" {
		return 0, ErrInvalidCredentials
	}
	u.mu.RLock()
	entry, ok := u.byName[name]
	register := u.register
	u.mu.RUnlock()

	if !ok {
		if !register {
			return 0, ErrInvalidCredentials
		}
		id, err := u.Add(username, password)
		if err == nil {
			return id, nil
		}
		// Lost a race with another registration of the same name.
		u.mu.RLock()
		entry, ok = u.byName[name]
		u.mu.RUnlock()
		if !ok {
			return 0, err
		}
	}
	if err := bcrypt.CompareHashAndPassword(entry.hash, []byte(password)); err != nil {
		return 0, ErrInvalidCredentials
	}
	return entry.id, nil
}

func (u *Users) Len() int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return len(u.byName)
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
