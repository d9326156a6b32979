package seeds

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestHandleList(t *testing.T) {
	t.Run("Returns Seeds", func(t *testing.T) {
		svc, client, _ := newTestService(t)
		modified := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
		client.On("ListObjects", mock.Anything, mock.Anything, mock.Anything).
			Return(objectStream(minio.ObjectInfo{Key: "seeds/AP_1.zip", Size: 2048, LastModified: modified}))

		app := fiber.New()
		NewHandler(svc).RegisterRoutes(app)
		resp, err := app.Test(httptest.NewRequest("GET", "/seeds/", nil))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		var seeds []Seed
		require.NoError(t, json.Unmarshal(body, &seeds))
		require.Len(t, seeds, 1)
		assert.Equal(t, "AP_1.zip", seeds[0].Name)
	})

	t.Run("Returns An Empty Array Without Seeds", func(t *testing.T) {
		svc, client, _ := newTestService(t)
		client.On("ListObjects", mock.Anything, mock.Anything, mock.Anything).Return(objectStream())

		app := fiber.New()
		NewHandler(svc).RegisterRoutes(app)
		resp, err := app.Test(httptest.NewRequest("GET", "/seeds/", nil))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.JSONEq(t, "[]", string(body))
	})

	t.Run("Reports Backend Failures", func(t *testing.T) {
		svc, client, _ := newTestService(t)
		client.On("ListObjects", mock.Anything, mock.Anything, mock.Anything).
			Return(objectStream(minio.ObjectInfo{Err: errors.New("access denied")}))

		app := fiber.New()
		NewHandler(svc).RegisterRoutes(app)
		resp, err := app.Test(httptest.NewRequest("GET", "/seeds/", nil))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	})
}
