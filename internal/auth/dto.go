// AngelaMos | 2026
// dto.go

package auth

import (
	"github.com/carterperez-dev/templates/account-service/internal/user"
)

type RegisterRequest struct {
	Email    string `json:"email"    validate:"required,email,max=255"`
	Username string `json:"username" validate:"required,min=3,max=15"`
	Password string `json:"password" validate:"required,min=6,max=12"`
	Role     string `json:"role"     validate:"required,oneof=admin project_admin member"`
	FullName string `json:"fullname" validate:"omitempty,max=100"`
}

type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=12"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
}

type ResetPasswordRequest struct {
	Password string `json:"password" validate:"required,min=6,max=12"`
}

// UpdateProfileInput is built from the multipart form. A nil FullName leaves
// the name unchanged; an empty AvatarPath leaves the avatar unchanged.
type UpdateProfileInput struct {
	FullName   *string
	AvatarPath string
}

type UserEnvelope struct {
	User user.UserResponse `json:"user"`
}
