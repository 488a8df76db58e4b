package auth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func writeUsers(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write users: %v", err)
	}
	return path
}

func TestLoadUsers_HashedAndPlain(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	path := writeUsers(t, `
users:
  - id: 7
    username: Alice
    password_hash: "`+string(hash)+`"
  - username: bob
    password: hunter2
`)
	u, err := LoadUsers(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if u.Len() != 2 {
		t.Fatalf("len = %d", u.Len())
	}

	id, err := u.Authenticate("alice", "s3cret")
	if err != nil || id != 7 {
		t.Fatalf("alice: id=%d err=%v", id, err)
	}
	id, err = u.Authenticate(" BOB ", "hunter2")
	if err != nil || id != 8 {
		t.Fatalf("bob: id=%d err=%v", id, err)
	}
	if _, err := u.Authenticate("alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password err = %v", err)
	}
	if _, err := u.Authenticate("carol", "x"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user err = %v", err)
	}
}

func TestLoadUsers_Rejects(t *testing.T) {
	cases := map[string]string{
		"duplicate":   "users:\n  - {username: a, password: x}\n  - {username: A, password: y}\n",
		"no password": "users:\n  - {username: a}\n",
		"no name":     "users:\n  - {password: x}\n",
		"bad yaml":    "users: [",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadUsers(writeUsers(t, body)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestAuthenticate_Registration(t *testing.T) {
	u := NewUsers(true)
	u.cost = bcrypt.MinCost

	id, err := u.Authenticate("dave", "pw")
	if err != nil || id == 0 {
		t.Fatalf("register: id=%d err=%v", id, err)
	}
	again, err := u.Authenticate("Dave", "pw")
	if err != nil || again != id {
		t.Fatalf("second login: id=%d err=%v", again, err)
	}
	if _, err := u.Authenticate("dave", "other"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("registered user with wrong password: %v", err)
	}
	if _, err := u.Authenticate("", "pw"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("empty username: %v", err)
	}
}
