package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/contasync/contasync/internal/apperrors"
	"github.com/contasync/contasync/internal/handlers/render"
	"github.com/contasync/contasync/internal/logger"
)

// handleReadData re-serves a stored JSON document for a customer.
// The token record is the customer registry: it maps the id to a folder.
func handleReadData(tokenService tokenService, documents documentStore, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		customerID := r.PathValue("customerID")
		dataType := r.PathValue("dataType")

		record, err := tokenService.Get(r.Context(), customerID)
		if err != nil {
			respondDataError(w, l, customerID, err)
			return
		}

		data, err := documents.Read(record.CustomerFolder, dataType+"_data.json")
		if err != nil {
			respondDataError(w, l, customerID, err)
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write(data)
	})
}

func handleListData(tokenService tokenService, documents documentStore, l logger.Logger) http.Handler {
	type document struct {
		Name     string    `json:"name"`
		Size     int64     `json:"size"`
		Modified time.Time `json:"modified"`
	}
	type response struct {
		CustomerID string     `json:"customer_id"`
		Files      []document `json:"files"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		customerID := r.PathValue("customerID")

		record, err := tokenService.Get(r.Context(), customerID)
		if err != nil {
			respondDataError(w, l, customerID, err)
			return
		}

		docs, err := documents.List(record.CustomerFolder)
		if err != nil {
			respondDataError(w, l, customerID, err)
			return
		}

		resp := response{CustomerID: customerID, Files: make([]document, 0, len(docs))}
		for _, doc := range docs {
			resp.Files = append(resp.Files, document{Name: doc.Name, Size: doc.Size, Modified: doc.Modified})
		}
		render.JSON(w, resp)
	})
}

func respondDataError(w http.ResponseWriter, l logger.Logger, customerID string, err error) {
	switch {
	case errors.Is(err, apperrors.ErrTokenNotFound):
		render.Error(w, render.KindNotFound, "Customer "+customerID+" not found", http.StatusNotFound)
	case errors.Is(err, apperrors.ErrDocumentNotFound):
		render.Error(w, render.KindNotFound, "Data document not found", http.StatusNotFound)
	case errors.Is(err, apperrors.ErrFolderInvalid):
		render.Error(w, render.KindInvalidRecord, "Customer folder is invalid", http.StatusBadRequest)
	default:
		l.Error("Failed to serve customer data", "customer_id", customerID, "error", err)
		render.Error(w, render.KindServiceError, "Internal server error", http.StatusInternalServerError)
	}
}
