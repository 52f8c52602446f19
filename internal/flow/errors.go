package flow

import (
	"errors"
	"fmt"
)

// ErrInvalidState cubre state desconocido, vencido, ya usado o de otro
// provider. Los callers no pueden distinguir entre estos casos.
var ErrInvalidState = errors.New("flow: invalid or expired state")

// Etapas de error del provider.
const (
	StageExchange = "exchange"
	StageProfile  = "profile"
)

// ProviderError es una falla del provider externo (red, status no 2xx,
// respuesta malformada o perfil incompleto).
type ProviderError struct {
	Provider string
	Stage    string
	Status   int // 0 si no hubo respuesta HTTP
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("flow: provider %s %s failed (status %d): %v", e.Provider, e.Stage, e.Status, e.Err)
	}
	return fmt.Sprintf("flow: provider %s %s failed: %v", e.Provider, e.Stage, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// DeniedError es el error que el provider reporta en el callback
// (p.ej. access_denied cuando el usuario cancela).
type DeniedError struct {
	Reason      string
	Description string
}

func (e *DeniedError) Error() string {
	if e.Description == "" {
		return "flow: provider denied authorization: " + e.Reason
	}
	return fmt.Sprintf("flow: provider denied authorization: %s (%s)", e.Reason, e.Description)
}
