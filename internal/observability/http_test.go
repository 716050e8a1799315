package observability

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func TestWithCorrelationID(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "  run-9 ")
	require.Equal(t, "run-9", CorrelationID(ctx))

	blank := WithCorrelationID(context.Background(), " ")
	require.Equal(t, "", CorrelationID(blank))
	require.Equal(t, "", CorrelationID(nil))
}

func TestMetricsHandlerExposesGradingCollectors(t *testing.T) {
	ObserveReadiness(false)

	app := fiber.New()
	app.Get("/metrics", MetricsHandler())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Contains(t, string(body), "gema_grading_readiness_total")
}
