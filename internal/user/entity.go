// AngelaMos | 2026
// entity.go

package user

import (
	"time"
)

const (
	RoleAdmin        = "admin"
	RoleProjectAdmin = "project_admin"
	RoleMember       = "member"
)

var AvailableRoles = []string{RoleAdmin, RoleProjectAdmin, RoleMember}

const DefaultAvatarURL = "https://placehold.co/600x400"

// User is the persisted account record. Token columns come in
// (value, expiry) pairs that are only ever written through the pair
// accessors below so both halves are set or cleared together.
type User struct {
	ID              string `db:"id"`
	Email           string `db:"email"`
	Username        string `db:"username"`
	FullName        string `db:"full_name"`
	AvatarURL       string `db:"avatar_url"`
	PasswordHash    string `db:"password_hash"`
	IsEmailVerified bool   `db:"is_email_verified"`
	Role            string `db:"role"`

	EmailVerificationToken  *string    `db:"email_verification_token"`
	EmailVerificationExpiry *time.Time `db:"email_verification_expiry"`
	ForgotPasswordToken     *string    `db:"forgot_password_token"`
	ForgotPasswordExpiry    *time.Time `db:"forgot_password_expiry"`
	RefreshToken            *string    `db:"refresh_token"`
	RefreshTokenExpiry      *time.Time `db:"refresh_token_expiry"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type TokenPair struct {
	Value     string
	ExpiresAt time.Time
}

func (p TokenPair) IsExpired(now time.Time) bool {
	return p.ExpiresAt.Before(now)
}

func IsValidRole(role string) bool {
	for _, r := range AvailableRoles {
		if r == role {
			return true
		}
	}
	return false
}

func (u *User) EmailVerification() (TokenPair, bool) {
	return pair(u.EmailVerificationToken, u.EmailVerificationExpiry)
}

func (u *User) SetEmailVerification(p TokenPair) {
	u.EmailVerificationToken, u.EmailVerificationExpiry = unpair(p)
}

func (u *User) ClearEmailVerification() {
	u.EmailVerificationToken, u.EmailVerificationExpiry = nil, nil
}

func (u *User) ForgotPassword() (TokenPair, bool) {
	return pair(u.ForgotPasswordToken, u.ForgotPasswordExpiry)
}

func (u *User) SetForgotPassword(p TokenPair) {
	u.ForgotPasswordToken, u.ForgotPasswordExpiry = unpair(p)
}

func (u *User) ClearForgotPassword() {
	u.ForgotPasswordToken, u.ForgotPasswordExpiry = nil, nil
}

func (u *User) Session() (TokenPair, bool) {
	return pair(u.RefreshToken, u.RefreshTokenExpiry)
}

func (u *User) SetSession(p TokenPair) {
	u.RefreshToken, u.RefreshTokenExpiry = unpair(p)
}

func (u *User) ClearSession() {
	u.RefreshToken, u.RefreshTokenExpiry = nil, nil
}

func pair(value *string, expiry *time.Time) (TokenPair, bool) {
	if value == nil || *value == "" || expiry == nil {
		return TokenPair{}, false
	}
	return TokenPair{Value: *value, ExpiresAt: *expiry}, true
}

func unpair(p TokenPair) (*string, *time.Time) {
	value := p.Value
	expiry := p.ExpiresAt
	return &value, &expiry
}
