package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/brojonat/txreview/service/review"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListTransactions(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()
	for _, id := range []string{"T-1", "T-2"} {
		_, err := store.CreateTransaction(ctx, sampleTransaction(id))
		require.NoError(t, err)
	}
	deposit := sampleTransaction("T-3")
	deposit.Type = review.TypeDeposit
	_, err := store.CreateTransaction(ctx, deposit)
	require.NoError(t, err)

	handler := handleListTransactions(store, discardLogger())

	t.Run("all", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/transactions", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Transactions []map[string]any `json:"transactions"`
			Count        int              `json:"count"`
			Limit        int              `json:"limit"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, 3, body.Count)
		assert.Equal(t, 100, body.Limit)
		assert.Equal(t, "45.5", body.Transactions[0]["amount"])
		assert.Equal(t, "2023-01-15", body.Transactions[0]["date"])
	})

	t.Run("filtered", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/transactions?type=Deposit&currency=ron&since=2023-01-01&limit=5", nil)
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		assert.Equal(t, review.TypeDeposit, store.lastFilter.Type)
		assert.Equal(t, review.CurrencyRON, store.lastFilter.Currency)
		require.NotNil(t, store.lastFilter.Since)
		assert.Equal(t, "2023-01-01", store.lastFilter.Since.Format("2006-01-02"))
		assert.Equal(t, 5, store.lastFilter.Limit)
		assert.Contains(t, rec.Body.String(), `"count":1`)
	})
}

func TestListTransactions_PathologicalInput(t *testing.T) {
	handler := handleListTransactions(newFakeStore(), discardLogger())

	tests := []struct {
		name    string
		query   string
		wantErr string
	}{
		{name: "unknown type", query: "type=refund", wantErr: "invalid type"},
		{name: "unknown currency", query: "currency=USD", wantErr: "invalid currency"},
		{name: "bad since", query: "since=15/01/2023", wantErr: "since"},
		{name: "non-numeric limit", query: "limit=ten", wantErr: "must be an integer"},
		{name: "zero limit", query: "limit=0", wantErr: "at least 1"},
		{name: "huge limit", query: "limit=100000", wantErr: "cannot exceed 1000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/transactions?"+tt.query, nil))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Contains(t, body["error"], tt.wantErr)
		})
	}
}

func TestListTransactions_StoreFailure(t *testing.T) {
	store := newFakeStore()
	store.failAll = errStoreDown

	rec := httptest.NewRecorder()
	handleListTransactions(store, discardLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/transactions", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal server error")
}

func TestServerRoutes(t *testing.T) {
	ts, _ := newTestServer(t, newFakeStore())

	t.Run("health", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	})

	t.Run("metrics", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("preflight", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/v1/transactions", nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	})

	t.Run("unknown route", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/v1/accounts")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestServer_NoMetrics(t *testing.T) {
	decoder, err := NewJQDecoder(".")
	require.NoError(t, err)
	srv := New(testConfig(), newFakeStore(), nil, decoder, nil, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
