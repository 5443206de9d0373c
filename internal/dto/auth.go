package dto

import "time"

type LoginRequest struct {
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required"`
	DeviceName string `json:"device_name" binding:"omitempty,max=100"`
	DeviceType string `json:"device_type" binding:"omitempty,max=50"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required,min=32"`
	DeviceName   string `json:"device_name" binding:"omitempty,max=100"`
	DeviceType   string `json:"device_type" binding:"omitempty,max=50"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type ValidateTokenRequest struct {
	Token              string `json:"token" binding:"required"`
	IncludeUserDetails bool   `json:"include_user_details"`
}

type UserResponse struct {
	ID            uint      `json:"id"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone,omitempty"`
	EmailVerified bool      `json:"email_verified"`
	PhoneVerified bool      `json:"phone_verified"`
	VenueID       *uint     `json:"venue_id,omitempty"`
	LastLogin     time.Time `json:"last_login"`
	CreatedAt     time.Time `json:"created_at"`
}

type TokenPairResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int          `json:"expires_in"` // Access token expiry in seconds
	UserType     string       `json:"user_type"`
	User         UserResponse `json:"user"`
}

type ValidateTokenResponse struct {
	Valid       bool          `json:"valid"`
	UserID      uint          `json:"user_id,omitempty"`
	Email       string        `json:"email,omitempty"`
	Roles       []string      `json:"roles,omitempty"`
	VenueID     *uint         `json:"venue_id,omitempty"`
	ExpiresAt   time.Time     `json:"expires_at,omitempty"`
	User        *UserResponse `json:"user,omitempty"`
	FailureCode string        `json:"failure_code,omitempty"`
}

type SessionResponse struct {
	ID         uint      `json:"id"`
	DeviceName string    `json:"device_name,omitempty"`
	DeviceType string    `json:"device_type,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	IPAddress  string    `json:"ip_address,omitempty"`
	Active     bool      `json:"active"`
	ExpiresAt  time.Time `json:"expires_at"`
	CreatedAt  time.Time `json:"created_at"`
}
