package expose

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"ap-tools/core/config"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleStatus(t *testing.T) {
	echo := startEcho(t)
	defer echo.stop()
	p := startProxy(t, config.ExposeConfig{Upstream: echo.addr(), PlainListen: "127.0.0.1:0"})
	defer p.Shutdown()

	app := fiber.New()
	NewHandler(p).RegisterRoutes(app)

	resp, err := app.Test(httptest.NewRequest("GET", "/status", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var status Status
	require.NoError(t, json.Unmarshal(body, &status))

	assert.Equal(t, echo.addr(), status.Upstream)
	assert.NotEmpty(t, status.Uptime)
	require.Len(t, status.Listeners, 1)
	assert.Equal(t, "plain", status.Listeners[0].Name)
	assert.Equal(t, p.Addr("plain"), status.Listeners[0].Addr)
}
