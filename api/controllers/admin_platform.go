package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/settlement-backend/api/responses"
	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
)

type platformReader interface {
	Get(ctx context.Context) (*models.PlatformWallet, error)
}

// AdminPlatformWallet returns the platform's running money position.
func AdminPlatformWallet(svc platformReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wallet, err := svc.Get(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, wallet)
	}
}
