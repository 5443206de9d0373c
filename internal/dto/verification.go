package dto

// VerificationMethod selects the delivery channel for a code.
type VerificationMethod string

const (
	MethodEmail VerificationMethod = "Email"
	MethodPhone VerificationMethod = "Phone"
)

func (m VerificationMethod) Valid() bool {
	return m == MethodEmail || m == MethodPhone
}

// VerificationPurpose selects which code slot a request targets.
type VerificationPurpose string

const (
	PurposeAccountVerification VerificationPurpose = "AccountVerification"
	PurposePasswordReset       VerificationPurpose = "PasswordReset"
)

func (p VerificationPurpose) Valid() bool {
	return p == PurposeAccountVerification || p == PurposePasswordReset
}

type SendVerificationCodeRequest struct {
	Method  VerificationMethod  `json:"method" binding:"required"`
	Purpose VerificationPurpose `json:"purpose" binding:"required"`
}

type VerifyAccountRequest struct {
	Code   string             `json:"code" binding:"required,len=6,numeric"`
	Method VerificationMethod `json:"method" binding:"required"`
}

type ForgotPasswordRequest struct {
	Email  string             `json:"email" binding:"required,email"`
	Method VerificationMethod `json:"method" binding:"required"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Code        string `json:"code" binding:"required,len=6,numeric"`
	NewPassword string `json:"new_password" binding:"required,min=8,max=100,password"`
}
