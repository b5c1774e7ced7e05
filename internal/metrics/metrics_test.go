package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	before := testutil.ToFloat64(rejectionsTotal.WithLabelValues("cooldown"))
	RecordRejection("cooldown")
	assert.Equal(t, before+1, testutil.ToFloat64(rejectionsTotal.WithLabelValues("cooldown")))

	SetEmergencyStop(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(emergencyStop))
	SetEmergencyStop(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(emergencyStop))

	SetOpenPositions(2)
	assert.Equal(t, 2.0, testutil.ToFloat64(openPositions))
}

func TestHandler(t *testing.T) {
	RecordSignal("BTCUSDT", "BUY")
	rec := httptest.NewRecorder()

	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `trade_bot_signals_total{action="BUY",symbol="BTCUSDT"}`)
}
