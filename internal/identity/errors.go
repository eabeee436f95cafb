package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var (
	// ErrNetwork wraps transport failures talking to the session store.
	ErrNetwork = errors.New("identity: session store unreachable")
	// ErrNoServiceRoleKey is returned by admin calls on a public client.
	ErrNoServiceRoleKey = errors.New("identity: service role key not configured")
)

// Error is a structured failure reported by the session store. Code is the
// machine-readable error code when the store provides one.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("identity: %s (%d %s)", e.Message, e.Status, e.Code)
	}
	return fmt.Sprintf("identity: %s (%d)", e.Message, e.Status)
}

// IsClientError reports whether the store rejected the request itself, as
// opposed to failing to serve it.
func (e *Error) IsClientError() bool {
	return e.Status >= 400 && e.Status < 500
}

// StatusCode extracts the HTTP status from an *Error, or 0.
func StatusCode(err error) int {
	var ierr *Error
	if errors.As(err, &ierr) {
		return ierr.Status
	}
	return 0
}

// errorBody covers the payload shapes the store has used over time.
type errorBody struct {
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Message          string `json:"message"`
}

func parseError(resp *http.Response) *Error {
	e := &Error{Status: resp.StatusCode}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		e.Message = strings.TrimSpace(string(data))
	}

	switch {
	case body.ErrorCode != "":
		e.Code = body.ErrorCode
	case body.Error != "":
		e.Code = body.Error
	}

	switch {
	case body.Msg != "":
		e.Message = body.Msg
	case body.ErrorDescription != "":
		e.Message = body.ErrorDescription
	case body.Message != "":
		e.Message = body.Message
	case e.Message == "":
		e.Message = http.StatusText(resp.StatusCode)
	}
	return e
}
