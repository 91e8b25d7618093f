package account

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

func validRegistration() RegisterCredentials {
	return RegisterCredentials{
		Username: "ace",
		Password: "fairway1",
		FullName: "Ace Player",
		Email:    "ace@example.com",
	}
}

func TestService_RegisterAndAuthenticate(t *testing.T) {
	svc := NewService(NewMemStore())

	u, err := svc.Register(validRegistration())
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if u.CurrentStep != 0 {
		t.Errorf("CurrentStep = %d, want 0", u.CurrentStep)
	}

	got, err := svc.Authenticate(LoginCredentials{Username: "ace", Password: "fairway1"})
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("Authenticate() ID = %d, want %d", got.ID, u.ID)
	}
}

func TestService_AuthenticateFailures(t *testing.T) {
	svc := NewService(NewMemStore())
	if _, err := svc.Register(validRegistration()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	for _, creds := range []LoginCredentials{
		{Username: "ace", Password: "wrong"},
		{Username: "ghost", Password: "fairway1"},
	} {
		_, err := svc.Authenticate(creds)
		if !IsAuthError(err) {
			t.Errorf("Authenticate(%q) error = %v, want auth error", creds.Username, err)
		}
		if UserMessage(err) != MsgInvalidCredentials {
			t.Errorf("UserMessage() = %q", UserMessage(err))
		}
	}
}

func TestService_RegisterDuplicate(t *testing.T) {
	svc := NewService(NewMemStore())
	if _, err := svc.Register(validRegistration()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	_, err := svc.Register(validRegistration())
	if UserMessage(err) != MsgUsernameTaken {
		t.Errorf("duplicate register error = %v", err)
	}

	var accErr *Error
	if !errors.As(err, &accErr) || accErr.HTTPStatus() != http.StatusBadRequest {
		t.Errorf("duplicate register should map to 400, got %v", err)
	}
}

func TestValidateRegistration(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*RegisterCredentials)
		wantField string
	}{
		{"valid", func(*RegisterCredentials) {}, ""},
		{"missing username", func(c *RegisterCredentials) { c.Username = " " }, "username"},
		{"short password", func(c *RegisterCredentials) { c.Password = "123" }, "password"},
		{"missing name", func(c *RegisterCredentials) { c.FullName = "" }, "fullName"},
		{"missing email", func(c *RegisterCredentials) { c.Email = "" }, "email"},
		{"bad email", func(c *RegisterCredentials) { c.Email = "not-an-email" }, "email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creds := validRegistration()
			tt.mutate(&creds)
			err := ValidateRegistration(creds)

			if tt.wantField == "" {
				if err != nil {
					t.Errorf("ValidateRegistration() error = %v", err)
				}
				return
			}
			var accErr *Error
			if !errors.As(err, &accErr) {
				t.Fatalf("error = %v, want *Error", err)
			}
			if accErr.Type != ErrTypeValidation || accErr.Field != tt.wantField {
				t.Errorf("error = %+v, want validation on %s", accErr, tt.wantField)
			}
		})
	}
}

func TestLocal_Session(t *testing.T) {
	ctx := context.Background()
	auth := NewLocal(NewService(NewMemStore()))

	if u, err := auth.CurrentUser(ctx); u != nil || err != nil {
		t.Errorf("CurrentUser() before login = %v, %v", u, err)
	}

	u, err := auth.Register(ctx, validRegistration())
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := auth.PersistStep(ctx, u.ID, 4); err != nil {
		t.Fatalf("PersistStep() error = %v", err)
	}
	if err := auth.Logout(ctx); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if err := auth.PersistStep(ctx, u.ID, 5); !IsAuthError(err) {
		t.Errorf("PersistStep() after logout error = %v", err)
	}

	again, err := auth.Login(ctx, LoginCredentials{Username: "ace", Password: "fairway1"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if again.CurrentStep != 4 {
		t.Errorf("resumed CurrentStep = %d, want 4", again.CurrentStep)
	}

	if _, err := auth.Login(ctx, LoginCredentials{Username: "ace"}); !IsValidationError(err) {
		t.Errorf("Login() without password error = %v", err)
	}
}

func TestErrorType_String(t *testing.T) {
	tests := []struct {
		et   ErrorType
		want string
	}{
		{ErrTypeValidation, "Validation Error"},
		{ErrTypeAuth, "Authentication Error"},
		{ErrTypeConflict, "Conflict"},
		{ErrTypeNotFound, "Not Found"},
		{ErrTypeInternal, "Internal Error"},
		{ErrorType(42), "ErrorType(42)"},
	}
	for _, tt := range tests {
		if got := tt.et.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := NewInternalError("failed to save progress", cause)
	if !errors.Is(err, cause) {
		t.Error("errors.Is() did not find cause")
	}
	if err.HTTPStatus() != http.StatusInternalServerError {
		t.Errorf("HTTPStatus() = %d", err.HTTPStatus())
	}
	if NewAuthError("x").HTTPStatus() != http.StatusUnauthorized {
		t.Error("auth error should map to 401")
	}
}
