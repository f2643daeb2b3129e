package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/brojonat/txreview/service/db"
	"github.com/brojonat/txreview/service/review"
	"github.com/shopspring/decimal"
)

const maxListLimit = 1000

// handleListTransactions returns a handler that lists reviewed transactions.
// GET /api/v1/transactions?type=TYPE&category=NAME&currency=CODE&since=YYYY-MM-DD&limit=N
func handleListTransactions(store TransactionStore, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		filter, err := parseListFilter(r)
		if err != nil {
			logger.Debug("invalid list filter", "query", r.URL.RawQuery, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		transactions, err := store.ListTransactions(r.Context(), filter)
		if err != nil {
			logger.Error("failed to list transactions", "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		logger.Debug("transactions listed", "count", len(transactions))

		resp := make([]transactionResponse, len(transactions))
		for i := range transactions {
			resp[i] = transactionToResponse(transactions[i])
		}

		writeJSON(w, map[string]interface{}{
			"transactions": resp,
			"count":        len(resp),
			"limit":        filter.Limit,
		}, http.StatusOK)
	})
}

func parseListFilter(r *http.Request) (db.ListTransactionsFilter, error) {
	query := r.URL.Query()
	filter := db.ListTransactionsFilter{
		Category: query.Get("category"),
		Limit:    db.DefaultListLimit,
	}

	if v := query.Get("type"); v != "" {
		t := review.ParseTransactionType(v)
		if !t.Valid() {
			return filter, fmt.Errorf("invalid type %q: must be one of %v", v, review.TransactionTypes)
		}
		filter.Type = t
	}

	if v := query.Get("currency"); v != "" {
		c := review.ParseCurrency(v)
		if !c.Valid() {
			return filter, fmt.Errorf("invalid currency %q: must be one of %v", v, review.Currencies)
		}
		filter.Currency = c
	}

	if v := query.Get("since"); v != "" {
		since, err := time.Parse("2006-01-02", v)
		if err != nil {
			return filter, fmt.Errorf("invalid since parameter: must be YYYY-MM-DD")
		}
		filter.Since = &since
	}

	// Parse limit (default 100, max 1000)
	if v := query.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return filter, fmt.Errorf("invalid limit parameter: must be an integer")
		}
		if limit < 1 {
			return filter, fmt.Errorf("limit must be at least 1")
		}
		if limit > maxListLimit {
			return filter, fmt.Errorf("limit cannot exceed %d", maxListLimit)
		}
		filter.Limit = limit
	}

	return filter, nil
}

// transactionResponse is the JSON response format for a stored transaction.
type transactionResponse struct {
	ExternalID          string           `json:"external_id"`
	Description         string           `json:"description"`
	Date                string           `json:"date"`
	SourceAccount       string           `json:"source_account"`
	DestinationAccount  string           `json:"destination_account"`
	Amount              decimal.Decimal  `json:"amount"`
	Type                string           `json:"type"`
	CategoryName        string           `json:"category_name,omitempty"`
	CurrencyCode        string           `json:"currency_code"`
	ForeignAmount       *decimal.Decimal `json:"foreign_amount,omitempty"`
	ForeignCurrencyCode *review.Currency `json:"foreign_currency_code,omitempty"`
	Notes               string           `json:"notes,omitempty"`
	CreatedAt           time.Time        `json:"created_at"`
}

// transactionToResponse converts a stored transaction to the response format.
func transactionToResponse(t *db.StoredTransaction) transactionResponse {
	return transactionResponse{
		ExternalID:          t.ExternalID,
		Description:         t.Description,
		Date:                string(t.Date),
		SourceAccount:       t.SourceAccount,
		DestinationAccount:  t.DestinationAccount,
		Amount:              t.Amount,
		Type:                string(t.Type),
		CategoryName:        t.CategoryName,
		CurrencyCode:        string(t.CurrencyCode),
		ForeignAmount:       t.ForeignAmount,
		ForeignCurrencyCode: t.ForeignCurrencyCode,
		Notes:               t.Notes,
		CreatedAt:           t.CreatedAt,
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
