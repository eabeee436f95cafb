package auth

import (
	"net/mail"
	"strings"
	"unicode/utf8"
)

// KindValidation marks form errors caught before any store call.
const KindValidation Kind = "validation"

// Registration is the submitted sign-up form.
type Registration struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
}

// ValidateRegistration checks the sign-up form and returns the first problem.
func ValidateRegistration(r Registration) *Error {
	switch {
	case strings.TrimSpace(r.Name) == "":
		return &Error{Kind: KindValidation, Message: "Por favor ingresa tu nombre."}
	case strings.TrimSpace(r.Email) == "":
		return &Error{Kind: KindValidation, Message: "Por favor ingresa tu correo electrónico."}
	case !validEmail(r.Email):
		return &Error{Kind: KindInvalidEmail, Message: Message(KindInvalidEmail)}
	case utf8.RuneCountInString(r.Password) < MinPasswordLength:
		return &Error{Kind: KindWeakPassword, Message: "La contraseña debe tener al menos 8 caracteres."}
	case r.Password != r.ConfirmPassword:
		return &Error{Kind: KindValidation, Message: "Las contraseñas no coinciden."}
	}
	return nil
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(strings.TrimSpace(s))
	return err == nil && addr.Name == "" && strings.Contains(addr.Address, "@")
}
