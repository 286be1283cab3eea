package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/contasync/contasync/internal/apperrors"
	"github.com/contasync/contasync/internal/handlers/render"
	"github.com/contasync/contasync/internal/logger"
	"github.com/contasync/contasync/internal/models"
	"github.com/contasync/contasync/internal/service/token"
)

// Wire shape of a token record on read endpoints
type tokenResponse struct {
	CustomerID     string    `json:"customer_id"`
	CustomerFolder string    `json:"customer_folder"`
	AccessToken    string    `json:"access_token"`
	RefreshToken   string    `json:"refresh_token"`
	ExpiresAt      time.Time `json:"expires_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toTokenResponse(record models.TokenRecord) tokenResponse {
	return tokenResponse{
		CustomerID:     record.CustomerID,
		CustomerFolder: record.CustomerFolder,
		AccessToken:    record.AccessToken,
		RefreshToken:   record.RefreshToken,
		ExpiresAt:      record.ExpiresAt,
		UpdatedAt:      record.UpdatedAt,
	}
}

func handleListTokens(tokenService tokenService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		records, err := tokenService.List(r.Context())
		if err != nil {
			l.Error("Failed to list tokens", "error", err)
			render.Error(w, render.KindServiceError, "Internal server error", http.StatusInternalServerError)
			return
		}

		responses := make([]tokenResponse, 0, len(records))
		for _, record := range records {
			responses = append(responses, toTokenResponse(record))
		}
		render.JSON(w, responses)
	})
}

func handleInsertTokens(tokenService tokenService, l logger.Logger) http.Handler {
	type recordFailure struct {
		Index  int               `json:"index"`
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields,omitempty"`
	}
	type response struct {
		Inserted int             `json:"inserted"`
		Failed   []recordFailure `json:"failed,omitempty"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var inputs []token.RecordInput
		if err := json.NewDecoder(r.Body).Decode(&inputs); err != nil {
			render.DecodeError(w, err)
			return
		}

		// Records are validated and applied one by one: a malformed entry
		// fails alone, the rest of the batch still lands
		applied, recordErrs, err := tokenService.UpsertMany(r.Context(), inputs)
		if err != nil {
			l.Error("Failed to insert tokens", "error", err)
			render.Error(w, render.KindServiceError, "Internal server error", http.StatusInternalServerError)
			return
		}

		resp := response{Inserted: applied}
		for _, recordErr := range recordErrs {
			resp.Failed = append(resp.Failed, recordFailure{
				Index:  recordErr.Index,
				Error:  render.KindInvalidRecord,
				Fields: recordErr.Fields,
			})
		}

		render.JSON(w, resp)
	})
}

func handleRefreshToken(tokenService tokenService, l logger.Logger) http.Handler {
	type response struct {
		Message string        `json:"message"`
		Token   tokenResponse `json:"token"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		customerID := r.PathValue("customerID")

		record, err := tokenService.Refresh(r.Context(), customerID)

		switch {
		case err == nil:
			render.JSON(w, response{Message: "Token refreshed successfully", Token: toTokenResponse(record)})
		case errors.Is(err, apperrors.ErrTokenNotFound):
			render.Error(w, render.KindNotFound, "Customer "+customerID+" not found", http.StatusNotFound)
		case errors.Is(err, apperrors.ErrRefreshSuperseded):
			// Another worker already rotated: the stored record is newer,
			// hand it out instead of failing the caller
			render.JSON(w, response{Message: "Token already refreshed", Token: toTokenResponse(record)})
		case errors.Is(err, apperrors.ErrRefreshFailed):
			l.Warn("Token refresh rejected, re-authorization required", "customer_id", customerID, "error", err)
			render.Error(w, render.KindRefreshFailed, "Refresh failed, re-authorization required", http.StatusBadGateway)
		default:
			l.Error("Failed to refresh token", "customer_id", customerID, "error", err)
			render.Error(w, render.KindServiceError, "Internal server error", http.StatusInternalServerError)
		}
	})
}
