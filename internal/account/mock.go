package account

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Demo account returned by Mock.
const (
	DemoUserID   int64 = 1
	DemoUsername       = "demo_user"
	DemoFullName       = "Demo User"
	DemoEmail          = "demo@example.com"
)

// StepStore persists wizard progress for the offline mock login.
type StepStore interface {
	LoadStep(username string) (int, bool)
	SaveStep(username string, step int) error
}

// Mock is the offline authenticator: any credentials sign in as the demo
// user. Progress is resumed from and written to a StepStore when one is set.
type Mock struct {
	mu    sync.Mutex
	user  *User
	steps StepStore
	now   func() time.Time
}

// NewMock creates a mock authenticator. steps may be nil.
func NewMock(steps StepStore) *Mock {
	return &Mock{steps: steps, now: time.Now}
}

func (m *Mock) demoUser(username, fullName, email string) *User {
	if strings.TrimSpace(username) == "" {
		username = DemoUsername
	}
	if strings.TrimSpace(fullName) == "" {
		fullName = DemoFullName
	}
	if strings.TrimSpace(email) == "" {
		email = DemoEmail
	}
	now := m.now()
	u := &User{
		ID:             DemoUserID,
		Username:       username,
		FullName:       fullName,
		Email:          email,
		TrialActive:    true,
		TrialStartDate: now,
		TrialEndDate:   now.Add(TrialPeriod),
	}
	if m.steps != nil {
		if step, ok := m.steps.LoadStep(username); ok {
			u.CurrentStep = step
		}
	}
	return u
}

// CurrentUser returns the signed in demo user or nil.
func (m *Mock) CurrentUser(_ context.Context) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return nil, nil
	}
	out := *m.user
	return &out, nil
}

// Login accepts any credentials. An empty full name falls back to
// DemoFullName.
func (m *Mock) Login(_ context.Context, creds LoginCredentials) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = m.demoUser(creds.Username, creds.FullName, "")
	out := *m.user
	return &out, nil
}

// Register accepts any credentials and keeps the supplied name and email.
func (m *Mock) Register(_ context.Context, creds RegisterCredentials) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = m.demoUser(creds.Username, creds.FullName, creds.Email)
	out := *m.user
	return &out, nil
}

// Logout clears the session.
func (m *Mock) Logout(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = nil
	return nil
}

// PersistStep records step for the signed in user.
func (m *Mock) PersistStep(ctx context.Context, userID int64, step int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	if m.user == nil || m.user.ID != userID {
		m.mu.Unlock()
		return NewAuthError(MsgNotAuthenticated)
	}
	m.user.CurrentStep = step
	username := m.user.Username
	m.mu.Unlock()

	if m.steps == nil {
		return nil
	}
	if err := m.steps.SaveStep(username, step); err != nil {
		return NewInternalError("failed to save progress", err)
	}
	return nil
}

var _ Authenticator = (*Mock)(nil)
