package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/auslab/swarm/internal/command"
	"github.com/auslab/swarm/internal/dispatcher"
	"github.com/auslab/swarm/internal/physics"
	"github.com/auslab/swarm/internal/publisher"
	"github.com/auslab/swarm/internal/storage"
)

// errorBody is the JSON body of every error response.
type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
	IDs   []int  `json:"ids,omitempty"`
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var (
		verr *command.ValidationError
		uerr *command.UnknownTargetError
		eerr *physics.EngineError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &uerr), errors.Is(err, storage.ErrPresetNotFound):
		return http.StatusNotFound
	case errors.Is(err, publisher.ErrUnavailable), errors.As(err, &eerr):
		return http.StatusServiceUnavailable
	case errors.Is(err, command.ErrQueueFull):
		return http.StatusTooManyRequests
	case errors.Is(err, dispatcher.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func bodyFor(err error) errorBody {
	b := errorBody{Error: err.Error()}
	var (
		verr *command.ValidationError
		uerr *command.UnknownTargetError
	)
	if errors.As(err, &verr) {
		b.Field = verr.Field
	}
	if errors.As(err, &uerr) {
		b.IDs = uerr.IDs
	}
	return b
}
