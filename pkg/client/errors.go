package client

import (
	"errors"
	"fmt"

	"github.com/valyala/fasthttp"
)

// fallbackMessage se muestra cuando el backend no envía mensaje
const fallbackMessage = "Algo salió mal. Por favor intenta de nuevo."

var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrUnauthorized = errors.New("sesión inválida o expirada")
	ErrUnavailable  = errors.New("el backend no responde")
)

// APIError error devuelto por el backend
type APIError struct {
	StatusCode int
	Message    string
	Fields     map[string]string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend %d: %s", e.StatusCode, e.Message)
}

// Is permite errors.Is(err, ErrNotFound) y errors.Is(err, ErrUnauthorized)
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == fasthttp.StatusNotFound
	case ErrUnauthorized:
		return e.StatusCode == fasthttp.StatusUnauthorized
	}
	return false
}

// Message mensaje para mostrar al usuario
func Message(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallbackMessage
}
