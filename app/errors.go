package simpchat

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/putto11262002/simpchat/core"
	"github.com/putto11262002/simpchat/pkg/router"
)

// invalidInput shapes a validation failure into a 400 carrying the
// translated per-field messages.
func invalidInput(err error) router.Error {
	jsonErr := router.NewJsonError(http.StatusBadRequest, "invalid input")
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		details := make(map[string]string, len(fieldErrs))
		for _, fe := range fieldErrs {
			details[fe.Field()] = fe.Translate(enTrans)
		}
		return jsonErr.WithDetails(details)
	}
	return jsonErr
}

// mapCoreError translates core error kinds into API errors. Errors outside
// the core taxonomy fall through to the router's default error.
func mapCoreError(err error) router.Error {
	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		switch coreErr.Kind {
		case core.KindNotFound:
			return router.NewJsonError(http.StatusNotFound, coreErr.Error())
		case core.KindDeniedPermission, core.KindDeniedBanned, core.KindDeniedSelfAction:
			return router.NewJsonError(http.StatusForbidden, coreErr.Error())
		case core.KindAlreadyExists, core.KindConflict:
			return router.NewJsonError(http.StatusConflict, coreErr.Error())
		case core.KindLimitExceeded:
			return router.NewJsonError(http.StatusUnprocessableEntity, coreErr.Error())
		case core.KindInvalidState:
			return router.NewJsonError(http.StatusBadRequest, coreErr.Error())
		case core.KindMustUnblock:
			return router.NewJsonError(http.StatusConflict, coreErr.Error())
		}
	}
	if errors.Is(err, core.ErrBadCredentials) || errors.Is(err, core.ErrUnauthenticated) {
		return router.NewJsonError(http.StatusUnauthorized, err.Error())
	}
	if errors.Is(err, core.ErrConflictedUser) {
		return router.NewJsonError(http.StatusConflict, err.Error())
	}
	return nil
}
