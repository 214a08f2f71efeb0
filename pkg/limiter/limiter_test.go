package limiter

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLimit(t *testing.T) {
	r, err := ParseLimit("30-M")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, r.Rate, 1e-9)

	r, err = ParseLimit("7200-H")
	require.NoError(t, err)
	assert.InDelta(t, 2.0, r.Rate, 1e-9)

	_, err = ParseLimit("fast")
	assert.Error(t, err)
}

func TestRouteToKeyString(t *testing.T) {
	assert.Equal(t, "-v1-payments-_checkoutRequestId-status", routeToKeyString("/v1/payments/:checkoutRequestId/status"))
}

func TestCheckRateMemoryStore(t *testing.T) {
	gin.SetMode(gin.TestMode)

	hit := func() (int64, bool) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		lctx, err := CheckRate(c, "check-rate-test", "2-M")
		require.NoError(t, err)
		return lctx.Remaining, lctx.Reached
	}

	remaining, reached := hit()
	assert.Equal(t, int64(1), remaining)
	assert.False(t, reached)

	_, reached = hit()
	assert.False(t, reached)

	_, reached = hit()
	assert.True(t, reached)
}
