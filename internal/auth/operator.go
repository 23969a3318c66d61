package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrPasswordLength = errors.New("password must be 8-72 chars")
	ErrRevoked        = errors.New("token revoked")
)

// Operator is the single account allowed to trigger runs.
type Operator struct {
	Username     string
	PasswordHash string // bcrypt
}

// Verify checks both fields; a missing hash never matches.
func (o Operator) Verify(username, password string) bool {
	if o.PasswordHash == "" || username == "" {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(o.Username), []byte(username)) == 1
	passOK := bcrypt.CompareHashAndPassword([]byte(o.PasswordHash), []byte(password)) == nil
	return userOK && passOK
}

func HashPassword(password string) (string, error) {
	if len(password) < 8 || len(password) > 72 {
		return "", ErrPasswordLength
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Revocations remembers logged-out token ids until they would have expired.
type Revocations struct {
	mu  sync.Mutex
	ids map[string]time.Time
}

func NewRevocations() *Revocations {
	return &Revocations{ids: make(map[string]time.Time)}
}

func (r *Revocations) Revoke(id string, until time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for k, exp := range r.ids {
		if exp.Before(now) {
			delete(r.ids, k)
		}
	}
	r.ids[id] = until
}

func (r *Revocations) Revoked(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	exp, ok := r.ids[id]
	return ok && exp.After(time.Now())
}
