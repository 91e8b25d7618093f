package account

import (
	"net/mail"
	"strings"

	"github.com/clmpro/clmsetup/internal/logging"
	"go.uber.org/zap"
)

// MinPasswordLength is the shortest password accepted at registration.
const MinPasswordLength = 6

// Service implements registration and credential checks over a MemStore.
// Session handling lives in the server.
type Service struct {
	store *MemStore
	hash  func(string) (string, error)
}

// NewService creates a service over store.
func NewService(store *MemStore) *Service {
	return &Service{store: store, hash: HashPassword}
}

// Store returns the underlying store.
func (s *Service) Store() *MemStore {
	return s.store
}

// Register validates creds and creates the user.
func (s *Service) Register(creds RegisterCredentials) (*User, error) {
	creds.Username = strings.TrimSpace(creds.Username)
	creds.Email = strings.TrimSpace(creds.Email)
	creds.FullName = strings.TrimSpace(creds.FullName)

	if err := ValidateRegistration(creds); err != nil {
		return nil, err
	}

	hash, err := s.hash(creds.Password)
	if err != nil {
		return nil, NewInternalError("failed to hash password", err)
	}

	u, err := s.store.CreateUser(creds, hash)
	if err != nil {
		return nil, err
	}
	logging.Info("User registered", zap.Int64("user_id", u.ID), zap.String("username", u.Username))
	return u, nil
}

// Authenticate checks username and password. Unknown users and wrong
// passwords produce the same error.
func (s *Service) Authenticate(creds LoginCredentials) (*User, error) {
	u, hash, ok := s.store.passwordHash(strings.TrimSpace(creds.Username))
	if !ok || !ComparePassword(creds.Password, hash) {
		logging.Debug("Login rejected", zap.String("username", creds.Username))
		return nil, NewAuthError(MsgInvalidCredentials)
	}
	return u, nil
}

// ValidateRegistration checks the required registration fields.
func ValidateRegistration(creds RegisterCredentials) error {
	if strings.TrimSpace(creds.Username) == "" {
		return NewValidationError("username", "Username is required")
	}
	if len(creds.Password) < MinPasswordLength {
		return NewValidationError("password", "Password must be at least 6 characters")
	}
	if strings.TrimSpace(creds.FullName) == "" {
		return NewValidationError("fullName", "Full name is required")
	}
	if strings.TrimSpace(creds.Email) == "" {
		return NewValidationError("email", "Email is required")
	}
	if _, err := mail.ParseAddress(creds.Email); err != nil {
		return NewValidationError("email", "Please enter a valid email address")
	}
	return nil
}

// ValidateLogin checks that both login fields are present.
func ValidateLogin(creds LoginCredentials) error {
	if strings.TrimSpace(creds.Username) == "" {
		return NewValidationError("username", "Username is required")
	}
	if creds.Password == "" {
		return NewValidationError("password", "Password is required")
	}
	return nil
}
