// AngelaMos | 2026
// handler_test.go

package auth

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/templates/account-service/internal/middleware"
)

type envelope struct {
	StatusCode int             `json:"statusCode"`
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Code       string          `json:"code"`
	Data       json.RawMessage `json:"data"`
}

type api struct {
	t      *testing.T
	f      *fixture
	router chi.Router
}

func newAPI(t *testing.T) *api {
	t.Helper()
	f := newFixture(t)

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		NewHandler(f.service, 1<<20).RegisterRoutes(
			r,
			middleware.Authenticator(f.service, f.sessions.CookieName()),
		)
	})

	return &api{t: t, f: f, router: r}
}

func (a *api) do(req *http.Request, cookies ...*http.Cookie) (*httptest.ResponseRecorder, envelope) {
	a.t.Helper()
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	var env envelope
	require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	assert.Equal(a.t, rec.Code, env.StatusCode)
	return rec, env
}

func (a *api) call(method, path string, body any, cookies ...*http.Cookie) (*httptest.ResponseRecorder, envelope) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return a.do(req, cookies...)
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "token" {
			return c
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

func TestAccountLifecycle(t *testing.T) {
	a := newAPI(t)

	rec, env := a.call(http.MethodPost, "/api/v1/auth/register", map[string]string{
		"email":    "ada@example.com",
		"username": "ada",
		"password": "s3cret!",
		"role":     "member",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, env.Success)
	assert.Equal(t, "User registered successfully. Email verification link sent to your email", env.Message)
	assert.Contains(t, string(env.Data), `"username":"ada"`)
	assert.NotContains(t, rec.Body.String(), "password")
	assert.NotContains(t, rec.Body.String(), "argon2")

	rec, env = a.call(http.MethodPost, "/api/v1/auth/verify-email/not-the-token", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)

	raw := rawFromLink(t, a.f.mailer.last(t).Data.Link, verifyPrefix)
	rec, _ = a.call(http.MethodPost, "/api/v1/auth/verify-email/"+raw, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env = a.call(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    "ada@example.com",
		"password": "s3cret!",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Welcome back ada", env.Message)
	assert.Contains(t, string(env.Data), `"isEmailVerified":true`)
	cookie := sessionCookie(t, rec)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)

	rec, env = a.call(http.MethodGet, "/api/v1/auth/get-user", nil, cookie)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "User fetched successfully", env.Message)

	rec, env = a.call(http.MethodGet, "/api/v1/auth/logout", nil, cookie)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Logged out successfully", env.Message)
	cleared := sessionCookie(t, rec)
	assert.Empty(t, cleared.Value)
	assert.Negative(t, cleared.MaxAge)

	rec, env = a.call(http.MethodGet, "/api/v1/auth/get-user", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "SESSION_INVALID", env.Code)
}

func TestRegisterValidation(t *testing.T) {
	a := newAPI(t)

	tests := []struct {
		name string
		body map[string]string
	}{
		{"bad email", map[string]string{"email": "nope", "username": "ada", "password": "s3cret!"}},
		{"short username", map[string]string{"email": "ada@example.com", "username": "ad", "password": "s3cret!"}},
		{"short username after trim", map[string]string{"email": "ada@example.com", "username": "  ad  ", "password": "s3cret!"}},
		{"short password", map[string]string{"email": "ada@example.com", "username": "ada", "password": "abc"}},
		{"long password", map[string]string{"email": "ada@example.com", "username": "ada", "password": "abcdefghijklm"}},
		{"unknown role", map[string]string{"email": "ada@example.com", "username": "ada", "password": "s3cret!", "role": "owner"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := a.call(http.MethodPost, "/api/v1/auth/register", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.False(t, env.Success)
		})
	}

	assert.Empty(t, a.f.repo.users)
}

func TestRegisterDefaultsRole(t *testing.T) {
	a := newAPI(t)

	rec, env := a.call(http.MethodPost, "/api/v1/auth/register", map[string]string{
		"email":    "ada@example.com",
		"username": "ada",
		"password": "s3cret!",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, string(env.Data), `"role":"member"`)
}

func TestRegisterAcceptsPunctuatedUsername(t *testing.T) {
	a := newAPI(t)

	rec, env := a.call(http.MethodPost, "/api/v1/auth/register", map[string]string{
		"email":    "john@example.com",
		"username": "John_Doe",
		"password": "s3cret!",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, string(env.Data), `"username":"john_doe"`)
}

func TestMalformedBody(t *testing.T) {
	a := newAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader("{"))
	rec, env := a.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid request body", env.Message)
}

func TestForgotPasswordSameResponse(t *testing.T) {
	a := newAPI(t)
	a.f.register(t, "ada@example.com", "ada", "s3cret!")

	_, known := a.call(http.MethodPost, "/api/v1/auth/forgot-password", map[string]string{
		"email": "ada@example.com",
	})
	_, unknown := a.call(http.MethodPost, "/api/v1/auth/forgot-password", map[string]string{
		"email": "nobody@example.com",
	})

	assert.Equal(t, http.StatusOK, known.StatusCode)
	assert.Equal(t, known, unknown)
}

func TestChangePassword(t *testing.T) {
	a := newAPI(t)
	a.f.register(t, "ada@example.com", "ada", "s3cret!")
	require.NoError(t, a.f.service.ForgotPassword(t.Context(), "ada@example.com"))
	raw := rawFromLink(t, a.f.mailer.last(t).Data.Link, resetPrefix)

	rec, env := a.call(http.MethodPost, "/api/v1/auth/change-password/"+raw, map[string]string{
		"password": "n3wpass",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Password changed successfully", env.Message)

	rec, _ = a.call(http.MethodPost, "/api/v1/auth/change-password/"+raw, map[string]string{
		"password": "again1",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func multipartBody(t *testing.T, fullname string, avatar []byte, contentType string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if fullname != "" {
		require.NoError(t, w.WriteField("fullname", fullname))
	}
	if avatar != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="avatar"; filename="me.png"`)
		h.Set("Content-Type", contentType)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(avatar)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestUpdateProfile_Handler(t *testing.T) {
	a := newAPI(t)
	a.f.register(t, "ada@example.com", "ada", "s3cret!")

	rec, _ := a.call(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    "ada@example.com",
		"password": "s3cret!",
	})
	cookie := sessionCookie(t, rec)

	t.Run("name and avatar", func(t *testing.T) {
		body, ct := multipartBody(t, "Ada Lovelace", []byte("\x89PNG\r\n\x1a\nfake"), "image/png")
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/update-profile", body)
		req.Header.Set("Content-Type", ct)

		rec, env := a.do(req, cookie)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "Profile updated successfully", env.Message)
		assert.Contains(t, string(env.Data), `"fullName":"Ada Lovelace"`)
		assert.Contains(t, string(env.Data), a.f.uploader.url)
	})

	t.Run("spooled file keeps every byte", func(t *testing.T) {
		avatar := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0xAB}, 2048)...)
		body, ct := multipartBody(t, "", avatar, "image/png")
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/update-profile", body)
		req.Header.Set("Content-Type", ct)

		rec, _ := a.do(req, cookie)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, avatar, a.f.uploader.body)
	})

	t.Run("html labelled as png rejected", func(t *testing.T) {
		before := a.f.uploader.uploads
		body, ct := multipartBody(t, "", []byte("<html><script>alert(1)</script></html>"), "image/png")
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/update-profile", body)
		req.Header.Set("Content-Type", ct)

		rec, env := a.do(req, cookie)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "avatar must be an image", env.Message)
		assert.Equal(t, before, a.f.uploader.uploads)
	})

	t.Run("non-image rejected", func(t *testing.T) {
		body, ct := multipartBody(t, "", []byte("hello"), "text/plain")
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/update-profile", body)
		req.Header.Set("Content-Type", ct)

		rec, _ := a.do(req, cookie)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("requires session", func(t *testing.T) {
		body, ct := multipartBody(t, "Nobody", nil, "")
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/update-profile", body)
		req.Header.Set("Content-Type", ct)

		rec, _ := a.do(req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
