package dto

import (
	"time"

	"github.com/venuebook/backend/internal/permission"
)

type SubUserLoginRequest struct {
	Username   string `json:"username" binding:"required,min=3,max=50"`
	Password   string `json:"password" binding:"required"`
	DeviceName string `json:"device_name" binding:"omitempty,max=100"`
}

type SubUserLoginResponse struct {
	AccessToken        string                `json:"access_token"`
	ExpiresIn          int                   `json:"expires_in"`
	SubUserID          uint                  `json:"sub_user_id"`
	VenueID            uint                  `json:"venue_id"`
	Role               permission.Role       `json:"role"`
	Permissions        permission.Permission `json:"permissions"`
	MustChangePassword bool                  `json:"must_change_password"`
}

type CreateFirstAdminRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Password string `json:"password" binding:"required,min=8,max=100,password"`
}

type CreateSubUserRequest struct {
	Username    string                 `json:"username" binding:"required,min=3,max=50"`
	Password    string                 `json:"password" binding:"required,min=8,max=100,password"`
	Role        permission.Role        `json:"role" binding:"required"`
	Permissions *permission.Permission `json:"permissions"` // nil = role defaults
}

type UpdateSubUserPermissionsRequest struct {
	Role        *permission.Role       `json:"role"`
	Permissions *permission.Permission `json:"permissions"`
}

type ResetSubUserPasswordRequest struct {
	NewPassword string `json:"new_password" binding:"required,min=8,max=100,password"`
}

type SubUserChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8,max=100,password"`
}

type SubUserResponse struct {
	ID                 uint                  `json:"id"`
	VenueID            uint                  `json:"venue_id"`
	Username           string                `json:"username"`
	Role               permission.Role       `json:"role"`
	Permissions        permission.Permission `json:"permissions"`
	Active             bool                  `json:"active"`
	FounderAdmin       bool                  `json:"founder_admin"`
	MustChangePassword bool                  `json:"must_change_password"`
	LastLogin          *time.Time            `json:"last_login,omitempty"`
	CreatedAt          time.Time             `json:"created_at"`
}
