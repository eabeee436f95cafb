// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.
// Bodies may be JSON or form-encoded; query strings select periods and filters.

package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"finora/internal/core"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// ErrMalformedBody is returned when a body is neither JSON nor a form.
var ErrMalformedBody = errors.New("malformed request body")

// ParsePeriod extracts year and month from query parameters and returns
// that calendar month. Missing or out-of-range values fall back to now.
func ParsePeriod(query url.Values, now time.Time) core.Period {
	year, month := now.Year(), int(now.Month())

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		if y, err := strconv.Atoi(v); err == nil && y >= 1900 && y <= 9999 {
			year = y
		}
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		if m, err := strconv.Atoi(v); err == nil && m >= 1 && m <= 12 {
			month = m
		}
	}

	return core.MonthPeriod(time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC))
}

// hasPeriod reports whether the query names a month.
func hasPeriod(query url.Values) bool {
	return query.Has("year") || query.Has("month")
}

// ParseLimit reads ?limit=, clamped to [1, max]. Missing or invalid values
// yield def.
func ParseLimit(query url.Values, def, max int) int {
	v := strings.TrimSpace(query.Get("limit"))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON objects and form-encoded data.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body == nil {
		return p
	}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	body := strings.TrimSpace(string(p.body))
	if body == "" {
		p.formData = url.Values{}
		return nil
	}

	// Try JSON first if content looks like JSON
	if body[0] == '{' || strings.HasPrefix(p.contentType, "application/json") {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal([]byte(body), &p.jsonData); err != nil {
			p.jsonData = nil
			p.err = ErrMalformedBody
			return p.err
		}
		return nil
	}

	// Fall back to form parsing
	p.formData, p.err = url.ParseQuery(body)
	if p.err != nil {
		p.err = ErrMalformedBody
	}
	return p.err
}

// Has reports whether key was submitted, even if empty.
func (p *RequestBodyParser) Has(key string) bool {
	if p.jsonData != nil {
		_, ok := p.jsonData[key]
		return ok
	}
	return p.formData != nil && p.formData.Has(key)
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// Amount parses key as a positive money amount.
func (p *RequestBodyParser) Amount(key string) (core.Money, error) {
	return core.ParseAmount(p.Get(key))
}

// OptionalAmount parses key as an amount that may be zero or absent.
func (p *RequestBodyParser) OptionalAmount(key string) (core.Money, error) {
	v := p.Get(key)
	if strings.Trim(strings.TrimLeft(v, "$€£ "), "0.,") == "" {
		return core.Money{}, nil
	}
	return core.ParseAmount(v)
}

// Date parses key as YYYY-MM-DD. An empty value yields def.
func (p *RequestBodyParser) Date(key string, def core.Date) (core.Date, error) {
	v := p.Get(key)
	if v == "" {
		return def, nil
	}
	return core.ParseDate(v)
}

// OptionalDate parses key as YYYY-MM-DD, where empty means no date.
func (p *RequestBodyParser) OptionalDate(key string) (core.Date, error) {
	return p.Date(key, core.Date{})
}

// ContentType returns the Content-Type header value.
func (p *RequestBodyParser) ContentType() string {
	return p.contentType
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts a decoded JSON value to string.
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// parseBody reads and parses r's body, answering 400 on failure.
func parseBody(w http.ResponseWriter, r *http.Request) (*RequestBodyParser, bool) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("Formato de solicitud inválido").Write(w)
		return nil, false
	}
	return p, true
}
