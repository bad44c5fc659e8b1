package api

import (
	"errors"
	"net/http"

	"github.com/okian/findna/internal/adapters/repository"
	service "github.com/okian/findna/internal/app"
	"github.com/okian/findna/internal/domain/dedupe"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
	ErrNilService = errors.New("service must not be nil")
)

// statusOf maps an error from the service layer to an HTTP status.
func statusOf(err error) int {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, repository.ErrInvalidSession),
		errors.Is(err, repository.ErrInvalidLimit),
		errors.Is(err, repository.ErrInvalidRange):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, dedupe.ErrBuildInProgress):
		return http.StatusConflict
	case errors.Is(err, dedupe.ErrTooManyBuilds):
		return http.StatusTooManyRequests
	case errors.Is(err, service.ErrRankingUnsupported):
		return http.StatusNotImplemented
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
