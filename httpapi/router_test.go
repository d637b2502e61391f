package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workhub/authcore"
	"github.com/workhub/authcore/password"
	"github.com/workhub/authcore/store/memory"
	"github.com/workhub/authcore/totp"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const unauthorizedBody = `{"error":"unauthorized"}`

func testConfig() authcore.Config {
	cfg := authcore.DefaultConfig()
	cfg.JWT.AccessSecret = bytes.Repeat([]byte("a"), 32)
	cfg.JWT.RefreshSecret = bytes.Repeat([]byte("r"), 32)
	cfg.Vault.MasterKey = bytes.Repeat([]byte("k"), 32)
	cfg.Vault.KDFMemoryKB = 1024
	cfg.Vault.KDFThreads = 1
	cfg.Password.Cost = 4
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEngine(t *testing.T, users authcore.UserStore) *authcore.Engine {
	t.Helper()
	store := memory.New()
	if users == nil {
		users = store
	}
	engine, err := authcore.New().
		WithConfig(testConfig()).
		WithUserStore(users).
		WithRefreshTokenStore(store).
		WithResetTokenStore(store).
		WithLogger(quietLogger()).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	return engine
}

func newTestRouter(t *testing.T, opts Options) (*gin.Engine, *authcore.Engine) {
	t.Helper()
	engine := newEngine(t, nil)
	opts.Logger = quietLogger()
	return NewRouter(engine, opts), engine
}

func do(t *testing.T, r http.Handler, method, path string, body any, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		raw, ok := body.(string)
		if !ok {
			b, err := json.Marshal(body)
			require.NoError(t, err)
			raw = string(b)
		}
		reader = bytes.NewBufferString(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dst), w.Body.String())
}

// decodeStep reads a {"<step>":true,"mfaToken":"..."} body and requires
// exactly one step flag.
func decodeStep(t *testing.T, w *httptest.ResponseRecorder) authcore.LoginResult {
	t.Helper()
	var body map[string]any
	decode(t, w, &body)
	require.Len(t, body, 2, w.Body.String())

	var res authcore.LoginResult
	for key, value := range body {
		if key == "mfaToken" {
			token, ok := value.(string)
			require.True(t, ok, "mfaToken must be a string")
			res.MFAToken = token
			continue
		}
		require.Equal(t, true, value, "step flag %q", key)
		res.Step = authcore.LoginStep(key)
	}
	require.NotEmpty(t, res.MFAToken)
	require.NotEmpty(t, res.Step)
	return res
}

func TestFullAuthFlow(t *testing.T) {
	r, _ := newTestRouter(t, Options{})

	w := do(t, r, http.MethodPost, "/auth/login", gin.H{"email": "admin@example.com", "password": "correct-horse"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	login := decodeStep(t, w)
	assert.Equal(t, authcore.StepMFASetupRequired, login.Step)

	// MFA token from the Authorization header.
	w = do(t, r, http.MethodPost, "/auth/mfa/setup", nil, login.MFAToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var setup struct {
		Secret     string `json:"secret"`
		OTPAuthURL string `json:"otpauthUrl"`
	}
	decode(t, w, &setup)
	require.NotEmpty(t, setup.Secret)
	assert.Contains(t, setup.OTPAuthURL, "otpauth://totp/")

	code, err := totp.Generate(setup.Secret, time.Now())
	require.NoError(t, err)
	w = do(t, r, http.MethodPost, "/auth/mfa/verify", gin.H{"mfaToken": login.MFAToken, "code": code}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var session struct {
		AccessToken  string         `json:"accessToken"`
		RefreshToken string         `json:"refreshToken"`
		User         map[string]any `json:"user"`
	}
	decode(t, w, &session)
	assert.Equal(t, "ADMIN", session.User["rol"])
	assert.Equal(t, true, session.User["mfaEnabled"])
	assert.NotContains(t, w.Body.String(), "passwordHash")

	w = do(t, r, http.MethodGet, "/auth/me", nil, session.AccessToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"email":"admin@example.com"`)

	w = do(t, r, http.MethodPost, "/auth/refresh", gin.H{"refreshToken": session.RefreshToken}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var pair authcore.TokenPair
	decode(t, w, &pair)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotContains(t, w.Body.String(), "UserID")

	w = do(t, r, http.MethodPost, "/auth/refresh", gin.H{"refreshToken": session.RefreshToken}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, unauthorizedBody, w.Body.String())

	w = do(t, r, http.MethodPost, "/auth/logout", gin.H{"refreshToken": pair.RefreshToken}, pair.AccessToken)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, r, http.MethodPost, "/auth/refresh", gin.H{"refreshToken": pair.RefreshToken}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// MFA already enrolled.
	w = do(t, r, http.MethodPost, "/auth/login", gin.H{"email": "admin@example.com", "password": "correct-horse"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	login = decodeStep(t, w)
	assert.Equal(t, authcore.StepMFARequired, login.Step)
	w = do(t, r, http.MethodPost, "/auth/mfa/setup", gin.H{"mfaToken": login.MFAToken}, "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAuthenticationFailuresShareOneBody(t *testing.T) {
	r, _ := newTestRouter(t, Options{})

	w := do(t, r, http.MethodPost, "/auth/login", gin.H{"email": "admin@example.com", "password": "correct-horse"}, "")
	require.Equal(t, http.StatusOK, w.Code)

	responses := []*httptest.ResponseRecorder{
		do(t, r, http.MethodPost, "/auth/login", gin.H{"email": "admin@example.com", "password": "wrong-horse"}, ""),
		do(t, r, http.MethodPost, "/auth/login", gin.H{"email": "ghost@example.com", "password": "correct-horse"}, ""),
		do(t, r, http.MethodPost, "/auth/mfa/verify", gin.H{"mfaToken": "garbage", "code": "123456"}, ""),
		do(t, r, http.MethodPost, "/auth/refresh", gin.H{"refreshToken": "garbage"}, ""),
		do(t, r, http.MethodGet, "/auth/me", nil, "garbage"),
		do(t, r, http.MethodPost, "/auth/reset-password", gin.H{"token": "deadbeef", "newPassword": "long-enough"}, ""),
	}
	for i, w := range responses {
		assert.Equal(t, http.StatusUnauthorized, w.Code, "response %d", i)
		assert.Equal(t, unauthorizedBody, w.Body.String(), "response %d", i)
	}
}

func TestBadRequests(t *testing.T) {
	r, _ := newTestRouter(t, Options{})

	w := do(t, r, http.MethodPost, "/auth/login", "{not json", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/auth/login", gin.H{"email": "a@example.com"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Bootstrap rejects a password outside the policy.
	w = do(t, r, http.MethodPost, "/auth/login", gin.H{"email": "a@example.com", "password": "short"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "password policy")
}

func TestForgotPasswordAlwaysOK(t *testing.T) {
	r, _ := newTestRouter(t, Options{})

	w := do(t, r, http.MethodPost, "/auth/login", gin.H{"email": "admin@example.com", "password": "correct-horse"}, "")
	require.Equal(t, http.StatusOK, w.Code)

	known := do(t, r, http.MethodPost, "/auth/forgot-password", gin.H{"email": "admin@example.com"}, "")
	unknown := do(t, r, http.MethodPost, "/auth/forgot-password", gin.H{"email": "ghost@example.com"}, "")

	assert.Equal(t, http.StatusOK, known.Code)
	assert.Equal(t, http.StatusOK, unknown.Code)
	assert.Equal(t, known.Body.String(), unknown.Body.String())
	assert.NotContains(t, known.Body.String(), "token")
}

func TestLoginRateLimit(t *testing.T) {
	limiter, err := authcore.NewMemoryRateLimiter(2, time.Minute, "")
	require.NoError(t, err)
	r, engine := newTestRouter(t, Options{LoginLimiter: limiter})

	for i := 0; i < 2; i++ {
		w := do(t, r, http.MethodPost, "/auth/login", gin.H{"email": "x@example.com", "password": "correct-horse"}, "")
		assert.NotEqual(t, http.StatusTooManyRequests, w.Code)
	}
	w := do(t, r, http.MethodPost, "/auth/login", gin.H{"email": "x@example.com", "password": "correct-horse"}, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), `"retryAfter"`)
	assert.Equal(t, uint64(1), engine.MetricsSnapshot().Counters[authcore.MetricRateLimitHit])

	// Other routes only spend the general budget.
	w = do(t, r, http.MethodPost, "/auth/forgot-password", gin.H{"email": "x@example.com"}, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

type brokenUsers struct {
	authcore.UserStore
}

func (brokenUsers) GetUserByEmail(context.Context, string) (*authcore.User, error) {
	return nil, errors.New("connection reset")
}

func TestInternalErrorsAreOpaque(t *testing.T) {
	engine := newEngine(t, brokenUsers{UserStore: memory.New()})
	r := NewRouter(engine, Options{Logger: quietLogger()})

	w := do(t, r, http.MethodPost, "/auth/login", gin.H{"email": "a@example.com", "password": "correct-horse"}, "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, `{"error":"internal error"}`, w.Body.String())

	// Forgot password hides the outage too.
	w = do(t, r, http.MethodPost, "/auth/forgot-password", gin.H{"email": "a@example.com"}, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthzAndMetricsMount(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("authcore_up 1\n"))
	})
	r, _ := newTestRouter(t, Options{MetricsHandler: metrics})

	w := do(t, r, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = do(t, r, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "authcore_up 1\n", w.Body.String())
}

func TestCORSAllowList(t *testing.T) {
	r, _ := newTestRouter(t, Options{AllowedOrigins: []string{"https://app.example.com"}})

	for origin, allowed := range map[string]bool{
		"https://app.example.com":  true,
		"https://evil.example.com": false,
	} {
		req := httptest.NewRequest(http.MethodOptions, "/auth/login", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if allowed {
			assert.Equal(t, origin, w.Header().Get("Access-Control-Allow-Origin"))
		} else {
			assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
		}
	}
}

func TestLoginStepResponseShape(t *testing.T) {
	store := memory.New()
	engine := newEngine(t, store)
	r := NewRouter(engine, Options{Logger: quietLogger()})

	w := do(t, r, http.MethodPost, "/auth/login", gin.H{"email": "admin@x.com", "password": "Secret1!"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body map[string]any
	decode(t, w, &body)
	assert.Equal(t, true, body["mfaSetupRequired"])
	assert.NotEmpty(t, body["mfaToken"])
	assert.NotContains(t, body, "step")

	hash, err := hashForTest("issued-by-admin")
	require.NoError(t, err)
	store.PutUser(authcore.User{
		ID:               "emp-1",
		Email:            "emp@x.com",
		Role:             authcore.RoleEmployee,
		PasswordHash:     hash,
		PasswordTemporal: true,
	})

	w = do(t, r, http.MethodPost, "/auth/login", gin.H{"email": "emp@x.com", "password": "issued-by-admin"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	login := decodeStep(t, w)
	assert.Equal(t, authcore.StepPasswordChangeRequired, login.Step)

	w = do(t, r, http.MethodPost, "/auth/change-password", gin.H{"mfaToken": login.MFAToken, "newPassword": "chosen-by-employee"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	next := decodeStep(t, w)
	assert.Equal(t, authcore.StepMFASetupRequired, next.Step)
	assert.Equal(t, login.MFAToken, next.MFAToken)
}

func hashForTest(pw string) (string, error) {
	hasher, err := password.New(4)
	if err != nil {
		return "", err
	}
	return hasher.Hash(pw)
}
