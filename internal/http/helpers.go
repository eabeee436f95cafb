package http

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"finora/internal/core"
	"finora/internal/log"
	"finora/internal/storage"
)

const dashboardPath = "/dashboard"

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// safeRedirect returns target when it is a same-origin path, fallback
// otherwise. "//host" and "/\host" are rejected because browsers treat them
// as protocol-relative URLs.
func safeRedirect(target, fallback string) string {
	target = strings.TrimSpace(target)
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return fallback
	}
	u, err := url.Parse(target)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return fallback
	}
	return target
}

// pathID returns the {id} path value when it is a UUID. Anything else
// cannot name a row and is answered with 404.
func pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		NotFoundError("No encontrado").Write(w)
		return "", false
	}
	return id.String(), true
}

// validationMessages are the user-facing texts for domain validation errors.
var validationMessages = []struct {
	err error
	msg string
}{
	{core.ErrInvalidAmount, "El monto debe ser un número mayor a cero."},
	{core.ErrInvalidDate, "Fecha inválida, usa el formato AAAA-MM-DD."},
	{core.ErrInvalidType, "El tipo debe ser income o expense."},
	{core.ErrInvalidStatus, "Estado inválido."},
	{core.ErrInvalidFrequency, "La frecuencia debe ser monthly o yearly."},
	{core.ErrEmptyName, "El nombre es obligatorio."},
	{core.ErrTextTooLong, "El texto es demasiado largo (máximo 200 caracteres)."},
	{core.ErrPaidExceedsTotal, "El monto pagado supera el total."},
	{core.ErrOverpayment, "El pago supera el saldo pendiente."},
	{core.ErrAlreadyCancelled, "La suscripción ya está cancelada."},
	{core.ErrSubscriptionClosed, "La suscripción no está activa."},
	{storage.ErrCategoryNotFound, "La categoría no existe."},
}

// errorStatus maps a service error to an HTTP status and message.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, "No encontrado"
	case errors.Is(err, storage.ErrConflict):
		return http.StatusConflict, "El registro cambió, intenta de nuevo."
	}
	for _, v := range validationMessages {
		if errors.Is(err, v.err) {
			return http.StatusUnprocessableEntity, v.msg
		}
	}
	return http.StatusInternalServerError, "Error interno del servidor"
}

// writeError answers with the status err maps to. Server errors are logged
// with the operation that failed.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		log.FromContext(r.Context()).Error("Request failed",
			log.FieldOperation, op,
			log.FieldPath, r.URL.Path,
			log.FieldErrorType, log.ErrorTypeDatabase,
			log.FieldError, err)
	}
	ErrorResponse(status, msg).Write(w)
}

// validationError answers 422 with the message for err.
func validationError(w http.ResponseWriter, err error) {
	_, msg := errorStatus(err)
	UnprocessableEntityError(msg).Write(w)
}
