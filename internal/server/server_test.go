package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/clmpro/clmsetup/internal/account"
	"github.com/clmpro/clmsetup/internal/logging"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func testConfig(t *testing.T, environ map[string]string) *Config {
	t.Helper()
	if environ == nil {
		environ = map[string]string{}
	}
	environ["CLMSETUP_ADVERTISE"] = "false"
	cfg, err := ParseConfig(environ)
	require.NoError(t, err)
	return cfg
}

type testEnv struct {
	srv    *Server
	ts     *httptest.Server
	client *http.Client
}

func newTestEnv(t *testing.T, environ map[string]string) *testEnv {
	t.Helper()
	srv, err := New(testConfig(t, environ))
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &testEnv{srv: srv, ts: ts, client: &http.Client{Jar: jar}}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, e.ts.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func registration(username, email string) account.RegisterCredentials {
	return account.RegisterCredentials{
		Username: username,
		Password: "fairway1",
		FullName: "Test Golfer",
		Email:    email,
	}
}

func TestRegisterLoginLogout(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.do(t, http.MethodGet, "/api/user", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body = env.do(t, http.MethodPost, "/api/register", registration("ace", "ace@example.com"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "ace", body["username"])
	assert.EqualValues(t, 0, body["currentStep"])
	assert.Equal(t, true, body["trialActive"])
	assert.NotContains(t, body, "password")
	assert.NotContains(t, body, "passwordHash")

	resp, body = env.do(t, http.MethodGet, "/api/user", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ace@example.com", body["email"])

	resp, _ = env.do(t, http.MethodPost, "/api/logout", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/user", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body = env.do(t, http.MethodPost, "/api/login", account.LoginCredentials{Username: "ace", Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, account.MsgInvalidCredentials, body["message"])

	resp, body = env.do(t, http.MethodPost, "/api/login", account.LoginCredentials{Username: "ace", Password: "fairway1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ace", body["username"])

	resp, _ = env.do(t, http.MethodGet, "/api/user", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRegisterConflicts(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, _ := env.do(t, http.MethodPost, "/api/register", registration("ace", "ace@example.com"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	tests := []struct {
		name    string
		creds   account.RegisterCredentials
		wantMsg string
	}{
		{"username", registration("ace", "other@example.com"), account.MsgUsernameTaken},
		{"email", registration("eagle", "ace@example.com"), account.MsgEmailTaken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.do(t, http.MethodPost, "/api/register", tt.creds)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tt.wantMsg, body["message"])
		})
	}
}

func TestMalformedJSON(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.do(t, http.MethodPost, "/api/register", "{not json")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid JSON body", body["message"])
}

func TestUserStepAndSubscription(t *testing.T) {
	env := newTestEnv(t, nil)
	resp, _ := env.do(t, http.MethodPost, "/api/register", registration("ace", "ace@example.com"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := env.do(t, http.MethodPut, "/api/user/step", map[string]int{"currentStep": 5})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 5, body["currentStep"])

	for _, step := range []int{-1, 8, 99} {
		resp, _ = env.do(t, http.MethodPut, "/api/user/step", map[string]int{"currentStep": step})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "step %d", step)
	}

	resp, body = env.do(t, http.MethodPut, "/api/user/step", map[string]int{"currentStep": 7})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 7, body["currentStep"])

	resp, body = env.do(t, http.MethodGet, "/api/user", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 7, body["currentStep"])

	resp, _ = env.do(t, http.MethodPut, "/api/user/step", map[string]int{"currentStep": 5})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPut, "/api/user/step", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = env.do(t, http.MethodPut, "/api/user/subscription", map[string]bool{"paymentAdded": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["paymentAdded"])
	assert.EqualValues(t, 5, body["currentStep"])
}

func TestDevices(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, _ := env.do(t, http.MethodGet, "/api/devices", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/register", registration("ace", "ace@example.com"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := env.do(t, http.MethodPost, "/api/devices", account.NewDevice{Name: "Bay 1", SerialNumber: "CLM-0001"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, false, body["connected"])
	assert.Equal(t, false, body["calibrated"])
	id := int(body["id"].(float64))

	resp, _ = env.do(t, http.MethodPost, "/api/devices", account.NewDevice{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = env.do(t, http.MethodPut, "/api/devices/"+itoa(id), map[string]bool{"connected": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["connected"])
	assert.Equal(t, "Bay 1", body["name"])

	resp, body = env.do(t, http.MethodPut, "/api/devices/999", map[string]bool{"calibrated": true})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, account.MsgDeviceNotFound, body["message"])

	resp, _ = env.do(t, http.MethodPut, "/api/devices/abc", map[string]bool{"calibrated": true})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, env.ts.URL+"/api/devices", nil)
	listResp, err := env.client.Do(req)
	require.NoError(t, err)
	defer listResp.Body.Close()
	var devices []account.Device
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&devices))
	require.Len(t, devices, 1)
	assert.True(t, devices[0].Connected)
}

func TestDevices_OtherUsersDeviceNotFound(t *testing.T) {
	env := newTestEnv(t, nil)
	resp, _ := env.do(t, http.MethodPost, "/api/register", registration("ace", "ace@example.com"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, body := env.do(t, http.MethodPost, "/api/devices", account.NewDevice{Name: "Bay 1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := int(body["id"].(float64))

	jar, _ := cookiejar.New(nil)
	env.client = &http.Client{Jar: jar}
	resp, _ = env.do(t, http.MethodPost, "/api/register", registration("birdie", "birdie@example.com"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body = env.do(t, http.MethodPut, "/api/devices/"+itoa(id), map[string]bool{"connected": true})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, account.MsgDeviceNotFound, body["message"])
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, nil)

	req, _ := http.NewRequest(http.MethodOptions, env.ts.URL+"/api/login", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
}

func TestAuthRateLimit(t *testing.T) {
	env := newTestEnv(t, map[string]string{"CLMSETUP_AUTH_RPS": "0.001", "CLMSETUP_AUTH_BURST": "2"})

	creds := account.LoginCredentials{Username: "ghost", Password: "whatever"}
	for i := 0; i < 2; i++ {
		resp, _ := env.do(t, http.MethodPost, "/api/login", creds)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
	resp, _ := env.do(t, http.MethodPost, "/api/login", creds)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))

	// Non-auth endpoints are not limited
	resp, _ = env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, http.MethodPost, "/api/register", registration("ace", "ace@example.com"))

	resp, body := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 1, body["users"])
}

func TestUnknownAPIRoute(t *testing.T) {
	env := newTestEnv(t, nil)
	resp, body := env.do(t, http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Not Found", body["message"])
}

func TestRecoveryMiddleware(t *testing.T) {
	h := RecoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/user", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Internal Server Error")
}

func TestLoggingMiddleware(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logging.SetLogger(zap.New(core))
	t.Cleanup(func() { logging.SetLogger(nil) })

	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusUnauthorized, strings.Repeat("x", 200))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/user", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/index.html", nil))

	entries := logs.All()
	require.Len(t, entries, 1, "only /api requests are logged")
	msg := entries[0].Message
	assert.True(t, strings.HasPrefix(msg, "GET /api/user 401 in "), msg)
	assert.Contains(t, msg, " :: ")
	assert.LessOrEqual(t, len([]rune(msg)), 80)
	assert.True(t, strings.HasSuffix(msg, "…"))
}

func TestStaticFallback(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>setup</html>"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0644))

	env := newTestEnv(t, map[string]string{"CLMSETUP_STATIC_DIR": dir})

	for path, want := range map[string]string{
		"/app.js":           "console.log(1)",
		"/onboarding":       "<html>setup</html>",
		"/onboarding/step2": "<html>setup</html>",
	} {
		resp, err := http.Get(env.ts.URL + path)
		require.NoError(t, err)
		buf := new(bytes.Buffer)
		_, _ = buf.ReadFrom(resp.Body)
		resp.Body.Close()
		assert.Equal(t, want, buf.String(), path)
	}
}

func TestEventsStream(t *testing.T) {
	env := newTestEnv(t, nil)
	resp, _ := env.do(t, http.MethodPost, "/api/register", registration("ace", "ace@example.com"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	header := http.Header{}
	for _, c := range env.client.Jar.Cookies(mustURL(t, env.ts.URL)) {
		header.Add("Cookie", c.String())
	}
	wsURL := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return env.srv.Hub().Subscribers(1) == 1 }, time.Second, 10*time.Millisecond)

	resp, _ = env.do(t, http.MethodPut, "/api/user/step", map[string]int{"currentStep": 3})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev struct {
		Type string       `json:"type"`
		Data account.User `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, EventUserStep, ev.Type)
	assert.Equal(t, 3, ev.Data.CurrentStep)
}

func TestEventsStream_RequiresSession(t *testing.T) {
	env := newTestEnv(t, nil)
	wsURL := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/api/events"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
