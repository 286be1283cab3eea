package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/contasync/contasync/internal/apperrors"
	"github.com/contasync/contasync/internal/handlers/render"
	"github.com/contasync/contasync/internal/logger"
)

// handleAuthorize starts the authorization-code flow: it issues a
// signed state carrying the customer identity and redirects the
// operator to the consent page.
func handleAuthorize(tokenService tokenService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		customerID := r.URL.Query().Get("customer_id")
		customerFolder := r.URL.Query().Get("customer_folder")

		authURL, err := tokenService.AuthorizeURL(customerID, customerFolder)

		switch {
		case err == nil:
			http.Redirect(w, r, authURL, http.StatusFound)
		case errors.Is(err, apperrors.ErrTokenRecordInvalid), errors.Is(err, apperrors.ErrFolderInvalid):
			render.Error(w, render.KindInvalidRecord, "customer_id and a plain customer_folder are required", http.StatusBadRequest)
		default:
			l.Error("Failed to build authorize URL", "error", err)
			render.Error(w, render.KindServiceError, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleCallback(tokenService tokenService, l logger.Logger) http.Handler {
	type response struct {
		Message        string    `json:"message"`
		CustomerID     string    `json:"customer_id"`
		CustomerFolder string    `json:"customer_folder"`
		ExpiresAt      time.Time `json:"expires_at"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state := r.URL.Query().Get("state")
		code := r.URL.Query().Get("code")

		// The authorization server reports consent errors in query params
		if errParam := r.URL.Query().Get("error"); errParam != "" {
			render.Error(w, render.KindCodeExchangeFailed,
				"Authorization failed: "+errParam, http.StatusBadRequest)
			return
		}

		if code == "" {
			render.Error(w, render.KindCodeExchangeFailed, "Authorization code not found", http.StatusBadRequest)
			return
		}

		record, err := tokenService.ExchangeCode(r.Context(), state, code)

		switch {
		case err == nil:
			render.JSON(w, response{
				Message:        "Token obtained and saved successfully",
				CustomerID:     record.CustomerID,
				CustomerFolder: record.CustomerFolder,
				ExpiresAt:      record.ExpiresAt,
			})
		case errors.Is(err, apperrors.ErrStateInvalid):
			render.Error(w, render.KindInvalidState, "Invalid state", http.StatusUnauthorized)
		case errors.Is(err, apperrors.ErrCodeExchangeFailed):
			l.Warn("Authorization code exchange rejected", "error", err)
			render.Error(w, render.KindCodeExchangeFailed, "Authorization code exchange failed", http.StatusBadGateway)
		default:
			l.Error("Failed to handle callback", "error", err)
			render.Error(w, render.KindServiceError, "Internal server error", http.StatusInternalServerError)
		}
	})
}
