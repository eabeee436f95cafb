// Package http provides HTTP server and handler implementations.
//
// This file implements the Builder Pattern for JSON responses. Every API
// error has the shape {"error": "..."}.

package http

import (
	"encoding/json"
	"net/http"
)

// ResponseBuilder provides a fluent API for building JSON responses.
type ResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewResponse creates a new response builder with default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets the value encoded as the response body.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter. A nil body
// writes headers only.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	data, err := json.Marshal(b.body)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Error interno del servidor"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(append(data, '\n'))
}

type errorBody struct {
	Error string `json:"error"`
}

// ErrorResponse creates a standard JSON error response.
func ErrorResponse(statusCode int, message string) *ResponseBuilder {
	return NewResponse().Status(statusCode).JSON(errorBody{Error: message})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// UnauthorizedError creates a 401 Unauthorized error response.
func UnauthorizedError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// UnprocessableEntityError creates a 422 Unprocessable Entity error response.
func UnprocessableEntityError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// Created creates a 201 response carrying v.
func Created(v any) *ResponseBuilder {
	return NewResponse().Status(http.StatusCreated).JSON(v)
}

// NoContent creates an empty 204 response.
func NoContent() *ResponseBuilder {
	return NewResponse().Status(http.StatusNoContent)
}
