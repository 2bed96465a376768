package application

import (
	stderrors "errors"
	"net/http"

	"github.com/wms-platform/warehouse-core/internal/domain"
	"github.com/wms-platform/warehouse-core/pkg/errors"
)

// ErrorMappings translates domain error kinds into API errors. Order matters:
// the first matching target wins, so the narrower kinds come first.
func ErrorMappings() []errors.Mapping {
	return []errors.Mapping{
		{Target: domain.ErrInsufficientStock, Build: errors.ErrInsufficientStock},
		{Target: domain.ErrAllocationFailed, Build: errors.ErrAllocationFailed},
		{Target: domain.ErrInvalidTransition, Build: errors.ErrInvalidTransition},
		{Target: domain.ErrAlreadyAssigned, Build: errors.ErrAlreadyAssigned},
		{Target: domain.ErrCapacityExceeded, Build: errors.ErrCapacityExceeded},
		{Target: domain.ErrPreconditionFailed, Build: errors.ErrPreconditionFailed},
		{Target: domain.ErrNotFound, Build: notFound},
		{Target: domain.ErrValidation, Build: errors.ErrValidation},
	}
}

func notFound(message string) *errors.AppError {
	return errors.NewAppError(errors.CodeNotFound, message, http.StatusNotFound)
}

// businessKinds are failures the caller can act on; they are logged at Warn.
var businessKinds = []error{
	domain.ErrInsufficientStock,
	domain.ErrAllocationFailed,
	domain.ErrInvalidTransition,
	domain.ErrAlreadyAssigned,
	domain.ErrCapacityExceeded,
	domain.ErrPreconditionFailed,
	domain.ErrNotFound,
	domain.ErrValidation,
}

// IsBusinessError reports whether err is a typed domain failure rather than a fault
func IsBusinessError(err error) bool {
	for _, kind := range businessKinds {
		if stderrors.Is(err, kind) {
			return true
		}
	}
	return false
}

// errorCode returns the API code for err, used as a span and metric label
func errorCode(err error) string {
	return errors.MapDomainError(err, ErrorMappings()...).Code
}
