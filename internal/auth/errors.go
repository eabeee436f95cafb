package auth

import (
	"errors"
	"strings"

	"finora/internal/identity"
)

// Kind classifies authentication failures shown to users.
type Kind string

const (
	KindInvalidCredentials Kind = "invalid_credentials"
	KindEmailNotConfirmed  Kind = "email_not_confirmed"
	KindAlreadyRegistered  Kind = "already_registered"
	KindInvalidEmail       Kind = "invalid_email"
	KindWeakPassword       Kind = "weak_password"
	KindNetwork            Kind = "network"
	KindOther              Kind = "other"
)

// MinPasswordLength is enforced before contacting the session store.
const MinPasswordLength = 8

var messages = map[Kind]string{
	KindInvalidCredentials: "Credenciales incorrectas. Verifica tu email y contraseña.",
	KindEmailNotConfirmed:  "Por favor confirma tu email antes de iniciar sesión.",
	KindAlreadyRegistered:  "Este correo ya está registrado. ¿Quieres iniciar sesión?",
	KindInvalidEmail:       "Por favor ingresa un correo electrónico válido.",
	KindWeakPassword:       "La contraseña es muy débil. Usa al menos 8 caracteres con letras y números.",
	KindNetwork:            "Error de conexión. Intenta de nuevo.",
}

// Error is an authentication failure ready to be rendered.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// Message returns the user-facing text for kind. KindOther has none; the
// underlying message is passed through instead.
func Message(kind Kind) string {
	return messages[kind]
}

// codeKinds maps the store's structured error codes.
var codeKinds = map[string]Kind{
	"invalid_credentials":   KindInvalidCredentials,
	"email_not_confirmed":   KindEmailNotConfirmed,
	"user_already_exists":   KindAlreadyRegistered,
	"email_exists":          KindAlreadyRegistered,
	"email_address_invalid": KindInvalidEmail,
	"validation_failed":     KindInvalidEmail,
	"weak_password":         KindWeakPassword,
}

// messageKinds is the fallback for stores without error codes, matched
// case-insensitively in order.
var messageKinds = []struct {
	substr string
	kind   Kind
}{
	{"invalid login credentials", KindInvalidCredentials},
	{"email not confirmed", KindEmailNotConfirmed},
	{"already registered", KindAlreadyRegistered},
	{"invalid email", KindInvalidEmail},
	{"unable to validate email", KindInvalidEmail},
	{"password should be", KindWeakPassword},
	{"weak password", KindWeakPassword},
}

// Classify turns a session store failure into an *Error. A nil err yields nil.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var aerr *Error
	if errors.As(err, &aerr) {
		return aerr
	}

	if errors.Is(err, identity.ErrNetwork) {
		return newError(KindNetwork, err, "")
	}

	var ierr *identity.Error
	if errors.As(err, &ierr) {
		if kind, ok := codeKinds[ierr.Code]; ok {
			return newError(kind, err, ierr.Message)
		}
		if kind, ok := classifyMessage(ierr.Message); ok {
			return newError(kind, err, ierr.Message)
		}
		if ierr.Status >= 500 {
			return newError(KindNetwork, err, "")
		}
		return newError(KindOther, err, ierr.Message)
	}

	if kind, ok := classifyMessage(err.Error()); ok {
		return newError(kind, err, "")
	}
	return newError(KindOther, err, err.Error())
}

func classifyMessage(msg string) (Kind, bool) {
	lower := strings.ToLower(msg)
	for _, m := range messageKinds {
		if strings.Contains(lower, m.substr) {
			return m.kind, true
		}
	}
	return "", false
}

func newError(kind Kind, err error, passthrough string) *Error {
	msg := Message(kind)
	if msg == "" {
		msg = passthrough
	}
	if msg == "" {
		msg = "Ocurrió un error inesperado."
	}
	return &Error{Kind: kind, Message: msg, Err: err}
}
