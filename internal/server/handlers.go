package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/clmpro/clmsetup/internal/account"
	"github.com/clmpro/clmsetup/internal/logging"
	"github.com/clmpro/clmsetup/internal/version"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// StepUpdate is the body of PUT /api/user/step.
type StepUpdate struct {
	CurrentStep *int `json:"currentStep"`
}

// SubscriptionUpdate is the body of PUT /api/user/subscription.
type SubscriptionUpdate struct {
	PaymentAdded *bool `json:"paymentAdded"`
}

// Health is returned by GET /health.
type Health struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Users   int    `json:"users"`
	Devices int    `json:"devices"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Debug("Failed to encode response", zap.Error(err))
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

// writeError answers with the status matching an account error.
func writeError(w http.ResponseWriter, err error) {
	var accErr *account.Error
	if errors.As(err, &accErr) {
		if accErr.Type == account.ErrTypeInternal {
			logging.Error("Request failed", zap.Error(err))
		}
		writeMessage(w, accErr.HTTPStatus(), accErr.Message)
		return
	}
	logging.Error("Request failed", zap.Error(err))
	writeMessage(w, http.StatusInternalServerError, err.Error())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	return true
}

func (s *Server) startSession(w http.ResponseWriter, userID int64) error {
	value, err := s.sessions.Create(userID)
	if err != nil {
		return fmt.Errorf("failed to encode session cookie: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   int(s.cfg.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var creds account.RegisterCredentials
	if !decodeJSON(w, r, &creds) {
		return
	}

	user, err := s.svc.Register(creds)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.startSession(w, user.ID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds account.LoginCredentials
	if !decodeJSON(w, r, &creds) {
		return
	}

	user, err := s.svc.Authenticate(creds)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.startSession(w, user.ID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookie); err == nil {
		s.sessions.Destroy(c.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userFrom(r))
}

func (s *Server) handleUpdateStep(w http.ResponseWriter, r *http.Request) {
	var body StepUpdate
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.CurrentStep == nil || *body.CurrentStep < 0 || *body.CurrentStep > s.lastStep {
		writeMessage(w, http.StatusBadRequest, fmt.Sprintf("currentStep must be between 0 and %d", s.lastStep))
		return
	}

	user, err := s.store.UpdateUserStep(userFrom(r).ID, *body.CurrentStep)
	if err != nil {
		writeError(w, err)
		return
	}
	s.hub.Publish(user.ID, Event{Type: EventUserStep, Data: user})
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleUpdateSubscription(w http.ResponseWriter, r *http.Request) {
	var body SubscriptionUpdate
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.PaymentAdded == nil {
		writeMessage(w, http.StatusBadRequest, "paymentAdded is required")
		return
	}

	user, err := s.store.UpdateUserSubscription(userFrom(r).ID, *body.PaymentAdded)
	if err != nil {
		writeError(w, err)
		return
	}
	s.hub.Publish(user.ID, Event{Type: EventUserSubscription, Data: user})
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var nd account.NewDevice
	if !decodeJSON(w, r, &nd) {
		return
	}
	if nd.Name == "" {
		writeMessage(w, http.StatusBadRequest, "Device name is required")
		return
	}

	device, err := s.store.CreateDevice(userFrom(r).ID, nd)
	if err != nil {
		writeError(w, err)
		return
	}
	s.hub.Publish(device.UserID, Event{Type: EventDeviceCreated, Data: device})
	writeJSON(w, http.StatusCreated, device)
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.DevicesByUser(userFrom(r).ID))
}

func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, account.MsgDeviceNotFound)
		return
	}

	var upd account.DeviceUpdate
	if !decodeJSON(w, r, &upd) {
		return
	}

	device, err := s.store.UpdateDevice(userFrom(r).ID, id, upd)
	if err != nil {
		writeError(w, err)
		return
	}
	s.hub.Publish(device.UserID, Event{Type: EventDeviceUpdated, Data: device})
	writeJSON(w, http.StatusOK, device)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	users, devices := s.store.Counts()
	writeJSON(w, http.StatusOK, Health{
		Status:  "ok",
		Version: version.Version,
		Users:   users,
		Devices: devices,
	})
}
