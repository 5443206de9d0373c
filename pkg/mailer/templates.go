package mailer

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

const verificationBody = `Hi {{ .Name | trim }},

Your verification code is {{ .Code }}.

It expires in {{ .TTLMinutes }} minutes. If you did not request this code,
you can safely ignore this email.
`

const passwordResetBody = `Hi {{ .Name | trim | default "there" }},

Your password reset code is {{ .Code }}.

It expires in {{ .TTLMinutes }} minutes and can be used once. If you did not
request a reset, no action is needed.
`

var (
	verificationTmpl  = template.Must(template.New("verification").Funcs(sprig.FuncMap()).Parse(verificationBody))
	passwordResetTmpl = template.Must(template.New("password_reset").Funcs(sprig.FuncMap()).Parse(passwordResetBody))
)

// TemplateData feeds the code-delivery email bodies.
type TemplateData struct {
	Name       string
	Code       string
	TTLMinutes int
}

// RenderVerificationBody renders the account-verification email body.
func RenderVerificationBody(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := verificationTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render verification template: %w", err)
	}
	return buf.String(), nil
}

// RenderPasswordResetBody renders the password-reset email body.
func RenderPasswordResetBody(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := passwordResetTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render password reset template: %w", err)
	}
	return buf.String(), nil
}
