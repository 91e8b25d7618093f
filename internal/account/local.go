package account

import (
	"context"
	"sync"
)

// Local is a single-session Authenticator running directly on a Service.
type Local struct {
	svc *Service

	mu     sync.Mutex
	userID int64
}

// NewLocal creates an in-process authenticator.
func NewLocal(svc *Service) *Local {
	return &Local{svc: svc}
}

// CurrentUser returns the signed in user or nil.
func (l *Local) CurrentUser(_ context.Context) (*User, error) {
	l.mu.Lock()
	id := l.userID
	l.mu.Unlock()

	if id == 0 {
		return nil, nil
	}
	u, err := l.svc.Store().User(id)
	if IsNotFoundError(err) {
		return nil, nil
	}
	return u, err
}

// Login checks the credentials and opens the session.
func (l *Local) Login(_ context.Context, creds LoginCredentials) (*User, error) {
	if err := ValidateLogin(creds); err != nil {
		return nil, err
	}
	u, err := l.svc.Authenticate(creds)
	if err != nil {
		return nil, err
	}
	l.setUser(u.ID)
	return u, nil
}

// Register creates the account and opens the session.
func (l *Local) Register(_ context.Context, creds RegisterCredentials) (*User, error) {
	u, err := l.svc.Register(creds)
	if err != nil {
		return nil, err
	}
	l.setUser(u.ID)
	return u, nil
}

// Logout closes the session.
func (l *Local) Logout(_ context.Context) error {
	l.setUser(0)
	return nil
}

// PersistStep stores step for userID, which must be the session user.
func (l *Local) PersistStep(ctx context.Context, userID int64, step int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	id := l.userID
	l.mu.Unlock()
	if id == 0 || id != userID {
		return NewAuthError(MsgNotAuthenticated)
	}
	_, err := l.svc.Store().UpdateUserStep(userID, step)
	return err
}

func (l *Local) setUser(id int64) {
	l.mu.Lock()
	l.userID = id
	l.mu.Unlock()
}

var _ Authenticator = (*Local)(nil)
