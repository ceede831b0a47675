package controllers

import (
	"net/http"

	"github.com/priyankdesai/storefront-backend/api/responses"
	"github.com/priyankdesai/storefront-backend/internal/checkout"
	pkgerrors "github.com/priyankdesai/storefront-backend/pkg/errors"
	"github.com/priyankdesai/storefront-backend/pkg/logger"
)

// PaymentMethods reports which payment paths are currently offered.
func PaymentMethods(resolve checkout.MethodsResolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if resolve == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment methods unavailable"))
			return
		}
		responses.WriteSuccess(w, resolve())
	}
}
