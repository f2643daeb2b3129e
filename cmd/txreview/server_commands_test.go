package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func newServerTestApp() *cli.App {
	return &cli.App{
		Name: "txreview",
		Commands: []*cli.Command{
			{
				Name: "server",
				Subcommands: []*cli.Command{
					healthCommand(),
					remoteTransactionsCommand(),
				},
			},
			versionCommand(),
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server-url",
				EnvVars: []string{"SERVER_URL"},
			},
		},
	}
}

func TestHealthCommand_Success(t *testing.T) {
	// Create test server that returns 200 OK
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}))
	defer server.Close()

	os.Setenv("SERVER_URL", server.URL)
	defer os.Unsetenv("SERVER_URL")

	err := newServerTestApp().Run([]string{"txreview", "server", "health"})
	require.NoError(t, err)
}

func TestHealthCommand_Failure(t *testing.T) {
	// Create test server that returns 500
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	err := newServerTestApp().Run([]string{"txreview", "--server-url", server.URL, "server", "health"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unhealthy status")
}

func TestHealthCommand_MissingServerURL(t *testing.T) {
	os.Unsetenv("SERVER_URL")

	err := newServerTestApp().Run([]string{"txreview", "server", "health"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server-url is required")
}

func TestVersionCommand(t *testing.T) {
	version = "1.0.0"
	commit = "abc123"
	date = "2026-10-17"

	var err error
	out := captureStdout(t, func() {
		err = newServerTestApp().Run([]string{"txreview", "version"})
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Version: 1.0.0")
	assert.Contains(t, out, "Commit:  abc123")
}

func TestRemoteTransactionsCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/transactions", r.URL.Path)
		assert.Equal(t, "Food", r.URL.Query().Get("category"))
		assert.Equal(t, "20", r.URL.Query().Get("limit"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"transactions":[{"external_id":"BT-1","date":"2023-01-15","amount":"45.5","type":"withdrawal","currency_code":"RON","category_name":"Food","created_at":"2023-01-16T08:00:00Z"}],"count":1,"limit":20}`))
	}))
	defer server.Close()

	var err error
	out := captureStdout(t, func() {
		err = newServerTestApp().Run([]string{"txreview", "--server-url", server.URL, "server", "transactions", "--category", "Food", "--limit", "20"})
	})
	require.NoError(t, err)
	assert.Contains(t, out, "BT-1")
	assert.Contains(t, out, "45.50")
	assert.Contains(t, out, "2023-01-16T08:00:00Z")
}

func TestRemoteTransactionsCommand_InvalidFilter(t *testing.T) {
	err := newServerTestApp().Run([]string{"txreview", "--server-url", "http://localhost:1", "server", "transactions", "--currency", "USD"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --currency")
}
