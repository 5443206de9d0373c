package dto

import (
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func TestPasswordRule(t *testing.T) {
	if err := RegisterValidators(); err != nil {
		t.Fatalf("RegisterValidators() error = %v", err)
	}
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		t.Fatal("gin validator engine is not *validator.Validate")
	}

	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"letters and digits", "Passw0rd", false},
		{"digits embedded", "venue2026pass", false},
		{"letters only", "passwordonly", true},
		{"digits only", "12345678", true},
		{"unicode letters count", "pässwörd1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Var(tt.password, "password")
			if (err != nil) != tt.wantErr {
				t.Errorf("password %q: error = %v, wantErr %v", tt.password, err, tt.wantErr)
			}
		})
	}
}

func TestVerificationEnums(t *testing.T) {
	if !MethodEmail.Valid() || !MethodPhone.Valid() {
		t.Error("known methods must validate")
	}
	if VerificationMethod("Pigeon").Valid() {
		t.Error("unknown method must not validate")
	}
	if !PurposeAccountVerification.Valid() || !PurposePasswordReset.Valid() {
		t.Error("known purposes must validate")
	}
	if VerificationPurpose("Marketing").Valid() {
		t.Error("unknown purpose must not validate")
	}
}
