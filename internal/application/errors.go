package application

import (
	"errors"
	"net/http"

	"github.com/oms-platform/inventory-service/internal/domain"
	apperrors "github.com/oms-platform/inventory-service/pkg/errors"
)

// validationErrors are domain rejections that map to a 400 at the boundary
var validationErrors = []error{
	domain.ErrInvalidProductID,
	domain.ErrNegativeQuantity,
	domain.ErrInvalidQuantity,
	domain.ErrZeroAdjustment,
	domain.ErrInvalidThreshold,
	domain.ErrMissingReason,
	domain.ErrMissingOrderID,
	domain.ErrInvalidExpiration,
	domain.ErrInvalidSource,
	domain.ErrInvalidAction,
	domain.ErrInvalidStatus,
}

// MapDomainError translates domain sentinels into transport-ready AppErrors.
// Errors it does not recognize pass through unchanged and surface as a 500.
func MapDomainError(err error) error {
	if err == nil {
		return nil
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, domain.ErrRecordNotFound):
		return apperrors.ErrNotFound("inventory record")
	case errors.Is(err, domain.ErrReservationNotFound):
		return apperrors.ErrNotFound("reservation")
	case errors.Is(err, domain.ErrRecordAlreadyExists):
		return apperrors.NewAppError(apperrors.CodeAlreadyExists, domain.ErrRecordAlreadyExists.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrInsufficientStock):
		return apperrors.ErrInsufficientStock(domain.ErrInsufficientStock.Error())
	case errors.Is(err, domain.ErrInsufficientAvailable):
		return apperrors.ErrInsufficientAvailable(domain.ErrInsufficientAvailable.Error())
	case errors.Is(err, domain.ErrReservedExceedsQuantity):
		return apperrors.ErrReservedExceedsQuantity(domain.ErrReservedExceedsQuantity.Error())
	case errors.Is(err, domain.ErrReservationNotActive):
		return apperrors.NewAppError(apperrors.CodeReservationNotActive, domain.ErrReservationNotActive.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrVersionConflict):
		return apperrors.ErrVersionConflict("inventory record")
	}

	for _, sentinel := range validationErrors {
		if errors.Is(err, sentinel) {
			return apperrors.ErrValidation(sentinel.Error())
		}
	}

	return err
}

// isAppError reports whether err already carries transport semantics
func isAppError(err error) bool {
	_, ok := apperrors.AsAppError(err)
	return ok
}
