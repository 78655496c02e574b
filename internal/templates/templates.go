// Package templates renders the transactional emails sent by the engine.
package templates

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

// Message is a rendered email.
type Message struct {
	Subject string
	HTML    string
}

var pages = template.Must(template.New("mail").Parse(`
{{define "otp"}}<p>Your sign-in code is <strong>{{.Code}}</strong>.</p>
<p>It expires in {{.Minutes}} minutes. If you did not request it, ignore this email.</p>{{end}}
{{define "email_change"}}<p>Your email change code is <strong>{{.Code}}</strong>.</p>
<p>It expires in {{.Minutes}} minutes.</p>{{end}}
{{define "email_changed"}}<p>The email address on your account was changed to {{.NewEmail}}.</p>
<p>If you did not make this change, contact support immediately.</p>{{end}}
{{define "deletion_scheduled"}}<p>Your account is scheduled for deletion on {{.Date}}.</p>
<p>Changed your mind? <a href="{{.CancelURL}}">Keep my account</a>. The link is valid until then.</p>{{end}}
{{define "deletion_final"}}<p>Your account and its data have now been permanently deleted.</p>{{end}}
{{define "password_reset"}}<p><a href="{{.ResetURL}}">Reset your password</a>. The link expires in one hour.</p>
<p>If you did not request this, ignore this email.</p>{{end}}
`))

func render(name, subject string, data any) (Message, error) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		return Message{}, fmt.Errorf("templates: render %s: %w", name, err)
	}
	return Message{Subject: subject, HTML: buf.String()}, nil
}

func minutes(ttl time.Duration) int {
	m := int(ttl / time.Minute)
	if m < 1 {
		m = 1
	}
	return m
}

// OTPCode is the sign-in code email.
func OTPCode(code string, ttl time.Duration) (Message, error) {
	return render("otp", "Your sign-in code", struct {
		Code    string
		Minutes int
	}{code, minutes(ttl)})
}

// EmailChangeCode is sent to both the old and the new address during an email change.
func EmailChangeCode(code string, ttl time.Duration) (Message, error) {
	return render("email_change", "Confirm your email change", struct {
		Code    string
		Minutes int
	}{code, minutes(ttl)})
}

// EmailChanged notifies the previous address.
func EmailChanged(newEmail string) (Message, error) {
	return render("email_changed", "Your email address was changed", struct {
		NewEmail string
	}{newEmail})
}

// DeletionScheduled carries the cancellation link.
func DeletionScheduled(date time.Time, cancelURL string) (Message, error) {
	return render("deletion_scheduled", "Your account is scheduled for deletion", struct {
		Date      string
		CancelURL string
	}{date.UTC().Format("January 2, 2006"), cancelURL})
}

// DeletionFinal is the last email an account receives.
func DeletionFinal() (Message, error) {
	return render("deletion_final", "Your account has been deleted", nil)
}

// PasswordReset carries the reset link.
func PasswordReset(resetURL string) (Message, error) {
	return render("password_reset", "Reset your password", struct {
		ResetURL string
	}{resetURL})
}
