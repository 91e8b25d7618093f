package account

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// MemStore keeps users and devices in process memory. Ids start at 1 and
// are never reused. Returned values are copies.
type MemStore struct {
	mu           sync.RWMutex
	users        map[int64]*User
	devices      map[int64]*Device
	nextUserID   int64
	nextDeviceID int64
	now          func() time.Time
}

// NewMemStore creates an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		users:        make(map[int64]*User),
		devices:      make(map[int64]*Device),
		nextUserID:   1,
		nextDeviceID: 1,
		now:          time.Now,
	}
}

// CreateUser stores a new user with a fresh trial. passwordHash must already
// be hashed.
func (s *MemStore) CreateUser(creds RegisterCredentials, passwordHash string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findLocked(func(u *User) bool { return u.Username == creds.Username }) != nil {
		return nil, NewConflictError("username", MsgUsernameTaken)
	}
	if creds.Email != "" && s.findLocked(func(u *User) bool { return strings.EqualFold(u.Email, creds.Email) }) != nil {
		return nil, NewConflictError("email", MsgEmailTaken)
	}

	now := s.now()
	u := &User{
		ID:             s.nextUserID,
		Username:       creds.Username,
		FullName:       creds.FullName,
		Email:          creds.Email,
		ReceiveUpdates: creds.ReceiveUpdates,
		CurrentStep:    0,
		TrialActive:    true,
		TrialStartDate: now,
		TrialEndDate:   now.Add(TrialPeriod),
		passwordHash:   passwordHash,
	}
	s.nextUserID++
	s.users[u.ID] = u

	out := *u
	return &out, nil
}

// User returns the user with id.
func (s *MemStore) User(id int64) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, NewNotFoundError(MsgUserNotFound)
	}
	out := *u
	return &out, nil
}

// UserByUsername returns the user with username.
func (s *MemStore) UserByUsername(username string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u := s.findLocked(func(u *User) bool { return u.Username == username })
	if u == nil {
		return nil, NewNotFoundError(MsgUserNotFound)
	}
	out := *u
	return &out, nil
}

// UserByEmail returns the user with email, compared case-insensitively.
func (s *MemStore) UserByEmail(email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u := s.findLocked(func(u *User) bool { return strings.EqualFold(u.Email, email) })
	if u == nil {
		return nil, NewNotFoundError(MsgUserNotFound)
	}
	out := *u
	return &out, nil
}

// UpdateUserStep records the wizard step a user reached.
func (s *MemStore) UpdateUserStep(id int64, step int) (*User, error) {
	return s.updateUser(id, func(u *User) { u.CurrentStep = step })
}

// UpdateUserSubscription records whether the user added a payment method.
func (s *MemStore) UpdateUserSubscription(id int64, paymentAdded bool) (*User, error) {
	return s.updateUser(id, func(u *User) { u.PaymentAdded = paymentAdded })
}

func (s *MemStore) updateUser(id int64, fn func(*User)) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, NewNotFoundError(MsgUserNotFound)
	}
	fn(u)
	out := *u
	return &out, nil
}

// CreateDevice registers a device for userID. New devices are neither
// connected nor calibrated.
func (s *MemStore) CreateDevice(userID int64, nd NewDevice) (*Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return nil, NewNotFoundError(MsgUserNotFound)
	}
	d := &Device{
		ID:              s.nextDeviceID,
		UserID:          userID,
		Name:            nd.Name,
		SerialNumber:    nd.SerialNumber,
		FirmwareVersion: nd.FirmwareVersion,
	}
	s.nextDeviceID++
	s.devices[d.ID] = d

	out := *d
	return &out, nil
}

// Device returns the device with id.
func (s *MemStore) Device(id int64) (*Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.devices[id]
	if !ok {
		return nil, NewNotFoundError(MsgDeviceNotFound)
	}
	out := *d
	return &out, nil
}

// DevicesByUser lists a user's devices ordered by id.
func (s *MemStore) DevicesByUser(userID int64) []Device {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Device, 0)
	for _, d := range s.devices {
		if d.UserID == userID {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// UpdateDevice merges upd into the device owned by userID. A device owned by
// somebody else is reported as not found.
func (s *MemStore) UpdateDevice(userID, id int64, upd DeviceUpdate) (*Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.devices[id]
	if !ok || d.UserID != userID {
		return nil, NewNotFoundError(MsgDeviceNotFound)
	}
	upd.apply(d)
	out := *d
	return &out, nil
}

// Counts returns the number of stored users and devices.
func (s *MemStore) Counts() (users, devices int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), len(s.devices)
}

func (s *MemStore) findLocked(match func(*User) bool) *User {
	for _, u := range s.users {
		if match(u) {
			return u
		}
	}
	return nil
}

func (s *MemStore) passwordHash(username string) (*User, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u := s.findLocked(func(u *User) bool { return u.Username == username })
	if u == nil {
		return nil, "", false
	}
	out := *u
	return &out, u.passwordHash, true
}
