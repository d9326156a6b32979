package loader_test

import (
	"errors"
	"testing"

	"ap-tools/core/loader"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFeature struct {
	name    string
	enabled bool
	loadErr error
	loaded  bool
}

func (f *fakeFeature) Name() string    { return f.name }
func (f *fakeFeature) IsEnabled() bool { return f.enabled }
func (f *fakeFeature) Load(app fiber.Router) error {
	f.loaded = true
	return f.loadErr
}

func TestLoadAll(t *testing.T) {
	t.Run("Loads Enabled Skips Disabled", func(t *testing.T) {
		on := &fakeFeature{name: "on", enabled: true}
		off := &fakeFeature{name: "off", enabled: false}

		mgr := loader.NewManager()
		mgr.Register(on)
		mgr.Register(off)

		err := mgr.LoadAll(fiber.New())
		require.NoError(t, err)
		assert.True(t, on.loaded)
		assert.False(t, off.loaded)
	})

	t.Run("Propagates Load Error", func(t *testing.T) {
		boom := errors.New("boom")
		bad := &fakeFeature{name: "bad", enabled: true, loadErr: boom}

		mgr := loader.NewManager()
		mgr.Register(bad)

		err := mgr.LoadAll(fiber.New())
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "bad")
	})
}
