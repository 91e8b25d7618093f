package account

import (
	"context"
	"time"
)

// TrialPeriod is the length of the free trial granted on registration.
const TrialPeriod = 30 * 24 * time.Hour

// User is the authenticated session user.
type User struct {
	ID             int64     `json:"id"`
	Username       string    `json:"username"`
	FullName       string    `json:"fullName"`
	Email          string    `json:"email"`
	CurrentStep    int       `json:"currentStep"`
	PaymentAdded   bool      `json:"paymentAdded"`
	TrialActive    bool      `json:"trialActive"`
	TrialStartDate time.Time `json:"trialStartDate"`
	TrialEndDate   time.Time `json:"trialEndDate"`
	ReceiveUpdates bool      `json:"receiveUpdates"`

	passwordHash string
}

// TrialDaysLeft returns the whole days remaining in the trial at now.
func (u *User) TrialDaysLeft(now time.Time) int {
	if !u.TrialActive || now.After(u.TrialEndDate) {
		return 0
	}
	return int(u.TrialEndDate.Sub(now).Hours() / 24)
}

// Device is a launch monitor registered to a user.
type Device struct {
	ID              int64  `json:"id"`
	UserID          int64  `json:"userId"`
	Name            string `json:"name"`
	SerialNumber    string `json:"serialNumber"`
	Connected       bool   `json:"connected"`
	Calibrated      bool   `json:"calibrated"`
	FirmwareVersion string `json:"firmwareVersion,omitempty"`
}

// NewDevice holds the fields supplied when registering a device.
type NewDevice struct {
	Name            string `json:"name"`
	SerialNumber    string `json:"serialNumber"`
	FirmwareVersion string `json:"firmwareVersion,omitempty"`
}

// DeviceUpdate is a partial device update; nil fields are left unchanged.
type DeviceUpdate struct {
	Name            *string `json:"name,omitempty"`
	SerialNumber    *string `json:"serialNumber,omitempty"`
	Connected       *bool   `json:"connected,omitempty"`
	Calibrated      *bool   `json:"calibrated,omitempty"`
	FirmwareVersion *string `json:"firmwareVersion,omitempty"`
}

func (u DeviceUpdate) apply(d *Device) {
	if u.Name != nil {
		d.Name = *u.Name
	}
	if u.SerialNumber != nil {
		d.SerialNumber = *u.SerialNumber
	}
	if u.Connected != nil {
		d.Connected = *u.Connected
	}
	if u.Calibrated != nil {
		d.Calibrated = *u.Calibrated
	}
	if u.FirmwareVersion != nil {
		d.FirmwareVersion = *u.FirmwareVersion
	}
}

// LoginCredentials are submitted by the login form.
type LoginCredentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	// FullName names the offline demo user; servers ignore it.
	FullName string `json:"fullName,omitempty"`
}

// RegisterCredentials are submitted by the registration form.
type RegisterCredentials struct {
	Username       string `json:"username"`
	Password       string `json:"password"`
	FullName       string `json:"fullName"`
	Email          string `json:"email"`
	ReceiveUpdates bool   `json:"receiveUpdates"`
}

// Authenticator is the session collaborator consumed by the wizard.
//
// CurrentUser returns (nil, nil) when nobody is signed in. PersistStep is
// best effort; the wizard logs and ignores its errors.
type Authenticator interface {
	CurrentUser(ctx context.Context) (*User, error)
	Login(ctx context.Context, creds LoginCredentials) (*User, error)
	Register(ctx context.Context, creds RegisterCredentials) (*User, error)
	Logout(ctx context.Context) error
	PersistStep(ctx context.Context, userID int64, step int) error
}
