// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/templates/account-service/internal/core"
	"github.com/carterperez-dev/templates/account-service/internal/mail"
	"github.com/carterperez-dev/templates/account-service/internal/storage"
	"github.com/carterperez-dev/templates/account-service/internal/user"
)

type ServiceConfig struct {
	BaseURL      string
	AvatarFolder string
}

type Service struct {
	users    user.Repository
	creds    *Credentials
	minter   *TokenMinter
	sessions *SessionIssuer
	mailer   mail.Mailer
	uploader storage.Uploader
	metrics  *Metrics
	logger   *slog.Logger
	cfg      ServiceConfig
	now      func() time.Time
}

func NewService(
	users user.Repository,
	creds *Credentials,
	minter *TokenMinter,
	sessions *SessionIssuer,
	mailer mail.Mailer,
	uploader storage.Uploader,
	metrics *Metrics,
	logger *slog.Logger,
	cfg ServiceConfig,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Service{
		users:    users,
		creds:    creds,
		minter:   minter,
		sessions: sessions,
		mailer:   mailer,
		uploader: uploader,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (u *user.User, err error) {
	ctx, span := core.StartSpan(ctx, "auth.Register")
	defer span.End()
	defer func() { s.finish(ctx, "register", err) }()

	if !user.IsValidRole(req.Role) {
		return nil, core.ValidationError("role is invalid")
	}

	email := normalize(req.Email)
	username := normalize(req.Username)

	if err := s.ensureAvailable(ctx, email, username); err != nil {
		return nil, err
	}

	u = &user.User{
		ID:        uuid.New().String(),
		Email:     email,
		Username:  username,
		FullName:  strings.TrimSpace(req.FullName),
		AvatarURL: user.DefaultAvatarURL,
		Role:      req.Role,
	}

	if err := s.creds.SetPassword(u, req.Password); err != nil {
		return nil, err
	}

	token, err := s.minter.MintOpaque()
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	u.SetEmailVerification(token.Pair())

	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return nil, core.DuplicateError("user")
		}
		return nil, fmt.Errorf("register: %w", err)
	}

	err = s.send(ctx, mail.Message{
		To:       u.Email,
		Subject:  "Verify your email",
		Template: mail.TemplateVerifyEmail,
		Data: mail.Data{
			Username: u.Username,
			Link:     s.cfg.BaseURL + "/api/v1/auth/verify-email/" + token.Raw,
		},
	}, "failed to send verification email")
	if err != nil {
		return nil, err
	}

	return u, nil
}

func (s *Service) ensureAvailable(ctx context.Context, email, username string) error {
	_, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return core.DuplicateError("email")
	case !errors.Is(err, core.ErrNotFound):
		return fmt.Errorf("register: %w", err)
	}

	_, err = s.users.FindByUsername(ctx, username)
	switch {
	case err == nil:
		return core.DuplicateError("username")
	case !errors.Is(err, core.ErrNotFound):
		return fmt.Errorf("register: %w", err)
	}

	return nil
}

func (s *Service) VerifyEmail(ctx context.Context, raw string) (err error) {
	ctx, span := core.StartSpan(ctx, "auth.VerifyEmail")
	defer span.End()
	defer func() { s.finish(ctx, "verify_email", err) }()

	if raw == "" {
		return core.ValidationError("token is required")
	}

	u, err := s.users.FindByVerificationTokenHash(ctx, s.minter.HashOpaque(raw))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.TokenInvalidError()
		}
		return fmt.Errorf("verify email: %w", err)
	}

	pair, ok := u.EmailVerification()
	if !ok || pair.IsExpired(s.now()) {
		return core.TokenExpiredError()
	}

	u.IsEmailVerified = true
	u.ClearEmailVerification()

	if err := s.users.Save(ctx, u); err != nil {
		return fmt.Errorf("verify email: %w", err)
	}

	return nil
}

type LoginResult struct {
	User  *user.User
	Token string
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (res *LoginResult, err error) {
	ctx, span := core.StartSpan(ctx, "auth.Login")
	defer span.End()
	defer func() { s.finish(ctx, "login", err) }()

	u, err := s.users.FindByEmail(ctx, normalize(req.Email))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, core.NotFoundError("user")
		}
		return nil, fmt.Errorf("login: %w", err)
	}

	if !s.creds.VerifyPassword(u, req.Password) {
		return nil, core.UnauthorizedError("invalid credentials")
	}

	token, rotated, err := s.sessions.Issue(ctx, u)
	if err != nil {
		return nil, core.NewAppError(
			err,
			"error logging in user",
			http.StatusUnauthorized,
			"UNAUTHORIZED",
		)
	}
	s.metrics.recordSession(rotated)
	span.SetAttributes(attribute.Bool("session.rotated", rotated))

	return &LoginResult{User: u, Token: token}, nil
}

func (s *Service) Logout(ctx context.Context, userID string) (err error) {
	ctx, span := core.StartSpan(ctx, "auth.Logout")
	defer span.End()
	defer func() { s.finish(ctx, "logout", err) }()

	u, err := s.findUser(ctx, userID)
	if err != nil {
		return err
	}

	return s.sessions.Revoke(ctx, u)
}

// ForgotPassword answers the same way whether or not the email belongs to an
// account.
func (s *Service) ForgotPassword(ctx context.Context, email string) (err error) {
	ctx, span := core.StartSpan(ctx, "auth.ForgotPassword")
	defer span.End()
	defer func() { s.finish(ctx, "forgot_password", err) }()

	u, err := s.users.FindByEmail(ctx, normalize(email))
	if errors.Is(err, core.ErrNotFound) {
		s.logger.DebugContext(ctx, "password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return fmt.Errorf("forgot password: %w", err)
	}

	token, err := s.minter.MintOpaque()
	if err != nil {
		return fmt.Errorf("forgot password: %w", err)
	}
	u.SetForgotPassword(token.Pair())

	if err := s.users.Save(ctx, u); err != nil {
		return fmt.Errorf("forgot password: %w", err)
	}

	return s.send(ctx, mail.Message{
		To:       u.Email,
		Subject:  "Reset your password",
		Template: mail.TemplateResetPassword,
		Data: mail.Data{
			Username: u.Username,
			Link:     s.cfg.BaseURL + "/api/v1/auth/change-password/" + token.Raw,
		},
	}, "failed to send password reset email")
}

// ResetPassword consumes a reset token. Every session of the user ends with it.
func (s *Service) ResetPassword(ctx context.Context, raw, password string) (err error) {
	ctx, span := core.StartSpan(ctx, "auth.ResetPassword")
	defer span.End()
	defer func() { s.finish(ctx, "reset_password", err) }()

	if raw == "" {
		return core.ValidationError("token is required")
	}

	u, err := s.users.FindByResetTokenHash(ctx, s.minter.HashOpaque(raw))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.NewAppError(
				core.ErrNotFound,
				"invalid or expired token",
				http.StatusNotFound,
				"NOT_FOUND",
			)
		}
		return fmt.Errorf("reset password: %w", err)
	}

	pair, ok := u.ForgotPassword()
	if !ok || pair.IsExpired(s.now()) {
		return core.TokenExpiredError()
	}

	if err := s.creds.SetPassword(u, password); err != nil {
		return err
	}
	u.ClearForgotPassword()

	if err := s.sessions.Revoke(ctx, u); err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	return nil
}

func (s *Service) GetUser(ctx context.Context, userID string) (*user.User, error) {
	ctx, span := core.StartSpan(ctx, "auth.GetUser")
	defer span.End()

	return s.findUser(ctx, userID)
}

func (s *Service) UpdateProfile(
	ctx context.Context,
	userID string,
	in UpdateProfileInput,
) (u *user.User, err error) {
	ctx, span := core.StartSpan(ctx, "auth.UpdateProfile")
	defer span.End()
	defer func() { s.finish(ctx, "update_profile", err) }()

	u, err = s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if in.FullName != nil {
		u.FullName = strings.TrimSpace(*in.FullName)
	}

	if in.AvatarPath != "" {
		url, err := s.uploader.Upload(ctx, in.AvatarPath, s.cfg.AvatarFolder)
		if err != nil {
			core.LogError(s.logger, "avatar upload failed", err)
			return nil, core.NewAppError(
				fmt.Errorf("%w: %w", core.ErrUpstream, err),
				"failed to upload avatar",
				http.StatusBadGateway,
				"UPSTREAM_ERROR",
			)
		}
		u.AvatarURL = url
	}

	if err := s.users.Save(ctx, u); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	return u, nil
}

// VerifySession resolves a session cookie value to a user id for the
// identity middleware.
func (s *Service) VerifySession(ctx context.Context, token string) (string, error) {
	return s.sessions.Resolve(ctx, token)
}

func (s *Service) findUser(ctx context.Context, userID string) (*user.User, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, core.NotFoundError("user")
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

func (s *Service) send(ctx context.Context, msg mail.Message, failure string) error {
	if err := s.mailer.Send(ctx, msg); err != nil {
		core.LogError(s.logger, "mail delivery failed", err)
		return core.NewAppError(
			fmt.Errorf("%w: %w", core.ErrUpstream, err),
			failure,
			http.StatusBadGateway,
			"UPSTREAM_ERROR",
		)
	}
	return nil
}

func (s *Service) finish(ctx context.Context, operation string, err error) {
	s.metrics.record(operation, err)
	if err != nil {
		core.SetSpanError(ctx, err)
	}
}
