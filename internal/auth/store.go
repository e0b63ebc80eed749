package auth

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// User is a registered account. The password hash never leaves the store.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	CreatedAt   time.Time `json:"createdAt"`

	passwordHash []byte
}

// MemoryStore keeps users in memory. Accounts do not survive a restart.
type MemoryStore struct {
	users map[string]User
	cost  int
	mu    sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]User),
		cost:  bcrypt.DefaultCost,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a user. Emails are unique, compared case-insensitively.
func (s *MemoryStore) Register(email, displayName, password string) (User, error) {
	if password == "" {
		return User{}, ErrMissingPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return User{}, ErrFailedAuth
	}

	key := normalizeEmail(email)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[key]; exists {
		return User{}, ErrUserExists
	}
	u := User{
		ID:           uuid.NewString(),
		Email:        key,
		DisplayName:  strings.TrimSpace(displayName),
		CreatedAt:    time.Now().UTC(),
		passwordHash: hash,
	}
	s.users[key] = u
	return u, nil
}

// Authenticate checks the password of the user registered under email.
func (s *MemoryStore) Authenticate(email, password string) (User, error) {
	if password == "" {
		return User{}, ErrMissingPassword
	}
	s.mu.RLock()
	u, ok := s.users[normalizeEmail(email)]
	s.mu.RUnlock()
	if !ok {
		return User{}, ErrUnregisteredUser
	}
	if err := bcrypt.CompareHashAndPassword(u.passwordHash, []byte(password)); err != nil {
		return User{}, ErrIncorrectPassword
	}
	return u, nil
}

func (s *MemoryStore) Find(email string) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[normalizeEmail(email)]
	return u, ok
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}
