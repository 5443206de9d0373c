package dto

type ChangePasswordRequest struct {
	CurrentPassword  string `json:"current_password" binding:"required"`
	NewPassword      string `json:"new_password" binding:"required,min=8,max=100,password"`
	ConfirmPassword  string `json:"confirm_password" binding:"required"`
	LogoutAllDevices bool   `json:"logout_all_devices"`
}

type RevokeSessionRequest struct {
	SessionID uint `json:"session_id" binding:"required"`
}

type DeactivateAccountRequest struct {
	Password string `json:"password" binding:"required"`
}
