package trader

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"signal-trade-bot-go/internal/exchange"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIServer_Routes(t *testing.T) {
	f := setupEngine(t)
	server := NewAPIServer(f.engine, 0, nopLogger())
	handler := server.routes()

	t.Run("Status", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var status Status
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
		assert.Equal(t, f.engine.UUID, status.UUID)
		assert.Equal(t, "live", status.Mode)
		assert.Equal(t, []string{"BTCUSDT"}, status.Symbols)
	})

	t.Run("Health", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "OK\n", rec.Body.String())
	})

	t.Run("Metrics", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "trade_bot_emergency_stop")
	})
}

func TestAPIServer_HealthDuringEmergencyStop(t *testing.T) {
	ctx := context.Background()
	f := setupEngine(t)
	f.ex.On("FetchBalance").Return(&exchange.Balance{Total: 1000}, nil).Once()
	require.NoError(t, f.engine.Initialize(ctx))
	f.engine.checkEmergencyStop(ctx, 800)
	handler := NewAPIServer(f.engine, 0, nopLogger()).routes()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
