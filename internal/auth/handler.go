// AngelaMos | 2026
// handler.go

package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/templates/account-service/internal/core"
	"github.com/carterperez-dev/templates/account-service/internal/middleware"
	"github.com/carterperez-dev/templates/account-service/internal/user"
)

const (
	multipartOverhead = 1 << 20
	// sniffLen is the prefix http.DetectContentType considers.
	sniffLen = 512
)

type Handler struct {
	service       *Service
	validator     *validator.Validate
	maxUploadSize int64
}

func NewHandler(service *Service, maxUploadSize int64) *Handler {
	return &Handler{
		service:       service,
		validator:     validator.New(validator.WithRequiredStructEnabled()),
		maxUploadSize: maxUploadSize,
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/verify-email/{token}", h.VerifyEmail)
		r.Post("/login", h.Login)
		r.Post("/forgot-password", h.ForgotPassword)
		r.Post("/change-password/{token}", h.ChangePassword)

		r.Group(func(r chi.Router) {
			r.Use(authenticator)
			r.Get("/logout", h.Logout)
			r.Get("/get-user", h.GetUser)
			r.Post("/update-profile", h.UpdateProfile)
		})
	})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		core.BadRequest(w, "invalid request body")
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return false
	}

	return true
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	req.Username = strings.TrimSpace(req.Username)
	req.Role = strings.TrimSpace(req.Role)
	if req.Role == "" {
		req.Role = user.RoleMember
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	u, err := h.service.Register(r.Context(), req)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.Created(
		w,
		UserEnvelope{User: user.ToUserResponse(u)},
		"User registered successfully. Email verification link sent to your email",
	)
}

func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	if err := h.service.VerifyEmail(r.Context(), token); err != nil {
		core.JSONError(w, err)
		return
	}

	core.OK(w, nil, "Email verified successfully")
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.service.Login(r.Context(), req)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	http.SetCookie(w, h.service.sessions.Cookie(res.Token))
	core.OK(
		w,
		UserEnvelope{User: user.ToUserResponse(res.User)},
		"Welcome back "+res.User.Username,
	)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		core.JSONError(w, core.SessionInvalidError())
		return
	}

	if err := h.service.Logout(r.Context(), userID); err != nil {
		core.JSONError(w, err)
		return
	}

	http.SetCookie(w, h.service.sessions.ClearCookie())
	core.OK(w, nil, "Logged out successfully")
}

func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.ForgotPassword(r.Context(), req.Email); err != nil {
		core.JSONError(w, err)
		return
	}

	core.OK(w, nil, "If an account exists for that email, a password reset link has been sent")
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	token := chi.URLParam(r, "token")
	if err := h.service.ResetPassword(r.Context(), token, req.Password); err != nil {
		core.JSONError(w, err)
		return
	}

	core.OK(w, nil, "Password changed successfully")
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		core.JSONError(w, core.SessionInvalidError())
		return
	}

	u, err := h.service.GetUser(r.Context(), userID)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.OK(w, UserEnvelope{User: user.ToUserResponse(u)}, "User fetched successfully")
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		core.JSONError(w, core.SessionInvalidError())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		core.BadRequest(w, "invalid multipart form")
		return
	}
	//nolint:errcheck // temp parts cleanup
	defer r.MultipartForm.RemoveAll()

	var in UpdateProfileInput
	if values, ok := r.MultipartForm.Value["fullname"]; ok && len(values) > 0 {
		name := values[0]
		if len(name) > 100 {
			core.BadRequest(w, "fullname must be at most 100 characters long")
			return
		}
		in.FullName = &name
	}

	file, header, err := r.FormFile("avatar")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		core.BadRequest(w, "invalid avatar upload")
		return
	default:
		defer file.Close() //nolint:errcheck

		path, err := h.spoolAvatar(file, header)
		if err != nil {
			core.JSONError(w, err)
			return
		}
		//nolint:errcheck // the uploader normally removes it first
		defer os.Remove(path)
		in.AvatarPath = path
	}

	u, err := h.service.UpdateProfile(r.Context(), userID, in)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.OK(w, UserEnvelope{User: user.ToUserResponse(u)}, "Profile updated successfully")
}

// spoolAvatar copies the uploaded part to a temp file the uploader can read
// and remove.
func (h *Handler) spoolAvatar(
	file multipart.File,
	header *multipart.FileHeader,
) (string, error) {
	if header.Size > h.maxUploadSize {
		return "", core.ValidationError(
			fmt.Sprintf("avatar must be at most %d bytes", h.maxUploadSize),
		)
	}

	// The part's declared Content-Type is client supplied; only the sniffed
	// bytes decide.
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", core.ValidationError("invalid avatar upload")
	}
	head = head[:n]
	if !strings.HasPrefix(http.DetectContentType(head), "image/") {
		return "", core.ValidationError("avatar must be an image")
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	tmp, err := os.CreateTemp("", "avatar-*"+ext)
	if err != nil {
		return "", fmt.Errorf("spool avatar: %w", err)
	}

	body := io.MultiReader(bytes.NewReader(head), file)
	if _, err := io.Copy(tmp, io.LimitReader(body, h.maxUploadSize)); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("spool avatar: %w", err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("spool avatar: %w", err)
	}

	return tmp.Name(), nil
}
