package handlers

import (
	"errors"
	"net/http"

	"github.com/contasync/contasync/internal/apperrors"
	"github.com/contasync/contasync/internal/handlers/render"
	"github.com/contasync/contasync/internal/logger"
)

func handleExtractSales(extractService extractService, l logger.Logger) http.Handler {
	type response struct {
		Message    string `json:"message"`
		RunID      string `json:"run_id"`
		TotalSales int    `json:"total_sales"`
		OutputFile string `json:"output_file,omitempty"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		customerID := r.PathValue("customerID")

		result, err := extractService.ExtractSales(r.Context(), customerID)

		switch {
		case err == nil && result.Count == 0:
			render.Error(w, render.KindNotFound, "No sales data found", http.StatusNotFound)
		case err == nil:
			render.JSON(w, response{
				Message:    "Sales data extracted successfully",
				RunID:      result.RunID,
				TotalSales: result.Count,
				OutputFile: result.Path,
			})
		case errors.Is(err, apperrors.ErrTokenNotFound):
			render.Error(w, render.KindNotFound, "Customer "+customerID+" not found", http.StatusNotFound)
		case errors.Is(err, apperrors.ErrTokenExpired):
			render.Error(w, render.KindTokenExpired, "Access token expired, refresh or re-authorize first", http.StatusConflict)
		default:
			l.Error("Sales extraction failed", "customer_id", customerID, "error", err)
			render.Error(w, render.KindServiceError, "Sales extraction failed", http.StatusBadGateway)
		}
	})
}

func handleSummary(extractService extractService, l logger.Logger) http.Handler {
	type response struct {
		CustomerID string `json:"customer_id"`
		DataType   string `json:"data_type"`
		Key        string `json:"key"`
		Total      string `json:"total"`
		Matched    int    `json:"matched"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		customerID := r.PathValue("customerID")
		dataType := r.PathValue("dataType")
		key := r.URL.Query().Get("key")

		if key == "" {
			render.Error(w, render.KindInvalidRecord, "query parameter 'key' is required", http.StatusBadRequest)
			return
		}

		summary, err := extractService.Summarize(r.Context(), customerID, dataType, key)

		switch {
		case err == nil:
			render.JSON(w, response{
				CustomerID: customerID,
				DataType:   dataType,
				Key:        summary.Key,
				Total:      summary.Total.String(),
				Matched:    summary.Matched,
			})
		case errors.Is(err, apperrors.ErrTokenNotFound):
			render.Error(w, render.KindNotFound, "Customer "+customerID+" not found", http.StatusNotFound)
		case errors.Is(err, apperrors.ErrDocumentNotFound):
			render.Error(w, render.KindNotFound, "Data document not found", http.StatusNotFound)
		default:
			l.Error("Failed to summarize data", "customer_id", customerID, "error", err)
			render.Error(w, render.KindServiceError, "Internal server error", http.StatusInternalServerError)
		}
	})
}
