package worlds

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"ap-tools/core/github"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeGitHub satisfies the GitHub interface for tests.
type fakeGitHub struct {
	mu       sync.Mutex
	releases map[string][]github.Release
	errs     map[string]error
	calls    map[string]int
	payloads map[string][]byte
}

func newFakeGitHub() *fakeGitHub {
	return &fakeGitHub{
		releases: make(map[string][]github.Release),
		errs:     make(map[string]error),
		calls:    make(map[string]int),
		payloads: make(map[string][]byte),
	}
}

func (f *fakeGitHub) Releases(ctx context.Context, ownerRepo string) ([]github.Release, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[ownerRepo]++
	if err := f.errs[ownerRepo]; err != nil {
		return nil, err
	}
	return f.releases[ownerRepo], nil
}

func (f *fakeGitHub) DownloadAsset(ctx context.Context, ownerRepo, tag, asset, destPath string) error {
	f.mu.Lock()
	payload, ok := f.payloads[asset]
	f.mu.Unlock()
	if !ok {
		payload = []byte("downloaded-" + tag)
	}
	return os.WriteFile(destPath, payload, 0o644)
}

func (f *fakeGitHub) AssetURL(ownerRepo, tag, asset string) string {
	return fmt.Sprintf("https://github.com/%s/releases/download/%s/%s", ownerRepo, tag, asset)
}

func (f *fakeGitHub) ReleasesWebURL(ownerRepo string) string {
	return fmt.Sprintf("https://github.com/%s/releases", ownerRepo)
}

func (f *fakeGitHub) callCount(ownerRepo string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[ownerRepo]
}

func digestOf(content string) *string {
	sum := sha256.Sum256([]byte(content))
	hexed := hex.EncodeToString(sum[:])
	return &hexed
}

func release(tag string, assets map[string]github.Asset) github.Release {
	return github.Release{TagName: tag, Timestamp: "2024-01-01T00:00:00Z", Assets: assets}
}

type testEnv struct {
	dir     string
	service *Service
	cache   *Cache
	gh      *fakeGitHub
	clock   *clockwork.FakeClock
	out     *bytes.Buffer
}

func newTestEnv(t *testing.T, manifestText string, files map[string]string, gh *fakeGitHub) *testEnv {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	// The manifest lives outside the worlds dir, like the real layout.
	manifestPath := filepath.Join(t.TempDir(), "config.ini")
	require.NoError(t, os.WriteFile(manifestPath, []byte(manifestText), 0o644))
	manifest, err := LoadManifest(manifestPath)
	require.NoError(t, err)

	clock := clockwork.NewFakeClock()
	cache, err := OpenCache(dir, clock)
	require.NoError(t, err)

	out := &bytes.Buffer{}
	service := NewService(manifest, cache, gh, time.Hour, 2, zap.NewNop())
	service.SetOutput(out)

	return &testEnv{dir: dir, service: service, cache: cache, gh: gh, clock: clock, out: out}
}

func statusByName(rows []Row) map[string]Row {
	byName := make(map[string]Row, len(rows))
	for _, row := range rows {
		byName[row.Name] = row
	}
	return byName
}

const listManifest = `
[world "alpha"]
github_repo = https://github.com/owner/alpha
github_repo_asset = alpha.apworld

[world "beta"]
github_repo = owner/beta
github_repo_asset = beta.apworld

[world "gamma"]
manual_file_name = gamma.apworld

[world "delta"]
manual_file_name = delta.apworld

[world "epsilon"]
github_repo = owner/epsilon
github_repo_asset = epsilon.apworld
`

func TestRows(t *testing.T) {
	t.Run("Resolves Statuses", func(t *testing.T) {
		gh := newFakeGitHub()
		gh.releases["owner/alpha"] = []github.Release{
			release("v2", map[string]github.Asset{"alpha.apworld": {Size: 10, SHA256Hex: digestOf("alpha-v2")}}),
			release("v1", map[string]github.Asset{"alpha.apworld": {Size: 8, SHA256Hex: digestOf("alpha-v1")}}),
		}
		gh.releases["owner/beta"] = []github.Release{
			release("v2", map[string]github.Asset{"beta.apworld": {Size: 7, SHA256Hex: digestOf("beta-v2")}}),
		}
		gh.releases["owner/epsilon"] = []github.Release{
			release("v1", map[string]github.Asset{"epsilon.apworld": {Size: 3, SHA256Hex: digestOf("x")}}),
		}

		env := newTestEnv(t, listManifest, map[string]string{
			"alpha.apworld":  "alpha-v1",
			"beta.apworld":   "beta-v2",
			"gamma.apworld":  "manual",
			"orphan.apworld": "who am i",
		}, gh)

		require.NoError(t, env.service.Check(context.Background(), nil))
		rows, err := env.service.Rows(nil)
		require.NoError(t, err)
		require.Len(t, rows, 6)

		byName := statusByName(rows)
		assert.Equal(t, StatusUpdateAvailable, byName["alpha"].Status)
		assert.Equal(t, "v1", byName["alpha"].Version)
		assert.Equal(t, StatusUpToDate, byName["beta"].Status)
		assert.Equal(t, "v2", byName["beta"].Version)
		assert.Equal(t, StatusManual, byName["gamma"].Status)
		assert.Equal(t, StatusManualMissing, byName["delta"].Status)
		assert.Equal(t, StatusNotDownloaded, byName["epsilon"].Status)
		assert.Equal(t, StatusOrphan, byName["orphan.apworld"].Status)

		// Orphans come last.
		assert.Equal(t, "orphan.apworld", rows[len(rows)-1].Name)
	})

	t.Run("Never Checked", func(t *testing.T) {
		env := newTestEnv(t, listManifest, map[string]string{
			"alpha.apworld": "alpha-v1",
		}, newFakeGitHub())

		rows, err := env.service.Rows([]string{"alpha", "epsilon"})
		require.NoError(t, err)

		byName := statusByName(rows)
		assert.Equal(t, StatusNeverChecked, byName["alpha"].Status)
		assert.Equal(t, StatusNotDownloadedNever, byName["epsilon"].Status)
	})

	t.Run("Scoped Rows Hide Orphans", func(t *testing.T) {
		env := newTestEnv(t, listManifest, map[string]string{
			"orphan.apworld": "who am i",
		}, newFakeGitHub())

		rows, err := env.service.Rows([]string{"gamma"})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "gamma", rows[0].Name)
	})

	t.Run("Rejects Unknown Names", func(t *testing.T) {
		env := newTestEnv(t, listManifest, nil, newFakeGitHub())

		_, err := env.service.Rows([]string{"nope"})
		require.EqualError(t, err, "apworld name not found in config: nope")

		_, err = env.service.Rows([]string{"nope", "also-nope"})
		require.EqualError(t, err, "apworld names not found in config: also-nope, nope")
	})
}

func TestCheck(t *testing.T) {
	t.Run("Fetches Each Repo Once", func(t *testing.T) {
		manifest := `
[world "one"]
github_repo = owner/shared
github_repo_asset = one.apworld

[world "two"]
github_repo = owner/shared
github_repo_asset = two.apworld
`
		gh := newFakeGitHub()
		env := newTestEnv(t, manifest, nil, gh)

		require.NoError(t, env.service.Check(context.Background(), nil))
		assert.Equal(t, 1, gh.callCount("owner/shared"))
	})

	t.Run("Respects TTL", func(t *testing.T) {
		gh := newFakeGitHub()
		env := newTestEnv(t, listManifest, nil, gh)

		require.NoError(t, env.service.Check(context.Background(), []string{"alpha"}))
		require.NoError(t, env.service.Check(context.Background(), []string{"alpha"}))
		assert.Equal(t, 1, gh.callCount("owner/alpha"))

		env.clock.Advance(2 * time.Hour)
		require.NoError(t, env.service.Check(context.Background(), []string{"alpha"}))
		assert.Equal(t, 2, gh.callCount("owner/alpha"))
	})

	t.Run("Prunes Stale Repos When Unscoped", func(t *testing.T) {
		gh := newFakeGitHub()
		env := newTestEnv(t, listManifest, nil, gh)

		require.NoError(t, env.cache.RefreshRepo(context.Background(), gh, "owner/gone", time.Hour))
		require.NoError(t, env.service.Check(context.Background(), nil))

		_, ok := env.cache.Repo("owner/gone")
		assert.False(t, ok)
		_, ok = env.cache.Repo("owner/alpha")
		assert.True(t, ok)
	})

	t.Run("Keeps Stale Repos When Scoped", func(t *testing.T) {
		gh := newFakeGitHub()
		env := newTestEnv(t, listManifest, nil, gh)

		require.NoError(t, env.cache.RefreshRepo(context.Background(), gh, "owner/gone", time.Hour))
		require.NoError(t, env.service.Check(context.Background(), []string{"alpha"}))

		_, ok := env.cache.Repo("owner/gone")
		assert.True(t, ok)
	})

	t.Run("Propagates Fetch Errors", func(t *testing.T) {
		gh := newFakeGitHub()
		gh.errs["owner/alpha"] = fmt.Errorf("boom")
		env := newTestEnv(t, listManifest, nil, gh)

		err := env.service.Check(context.Background(), []string{"alpha"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
	})

	t.Run("Refuses To Run While Locked", func(t *testing.T) {
		env := newTestEnv(t, listManifest, nil, newFakeGitHub())

		other, err := OpenCache(env.dir, clockwork.NewFakeClock())
		require.NoError(t, err)
		release, err := other.Guard()
		require.NoError(t, err)
		defer release()

		err = env.service.Check(context.Background(), nil)
		assert.ErrorIs(t, err, ErrLocked)
	})
}

func TestUpdate(t *testing.T) {
	t.Run("Requires Check First", func(t *testing.T) {
		env := newTestEnv(t, listManifest, nil, newFakeGitHub())

		_, err := env.service.Update(context.Background(), []string{"alpha"})
		require.EqualError(t, err, "run 'check' first")
	})

	t.Run("Downloads Outdated Worlds", func(t *testing.T) {
		gh := newFakeGitHub()
		gh.releases["owner/alpha"] = []github.Release{
			release("v2", map[string]github.Asset{"alpha.apworld": {Size: 10, SHA256Hex: digestOf("alpha-v2")}}),
			release("v1", map[string]github.Asset{"alpha.apworld": {Size: 8, SHA256Hex: digestOf("alpha-v1")}}),
		}
		gh.payloads["alpha.apworld"] = []byte("alpha-v2")

		manifest := `
[world "alpha"]
github_repo = owner/alpha
github_repo_asset = alpha.apworld
`
		env := newTestEnv(t, manifest, map[string]string{"alpha.apworld": "alpha-v1"}, gh)

		require.NoError(t, env.service.Check(context.Background(), nil))
		result, err := env.service.Update(context.Background(), nil)
		require.NoError(t, err)

		assert.Equal(t, 1, result.Downloaded)
		content, err := os.ReadFile(filepath.Join(env.dir, "alpha.apworld"))
		require.NoError(t, err)
		assert.Equal(t, "alpha-v2", string(content))

		assert.Contains(t, env.out.String(), "downloading: https://github.com/owner/alpha/releases/download/v2/alpha.apworld")
		assert.Contains(t, env.out.String(), "downloaded 1 new item\n")

		// The fresh download must now resolve as up to date.
		rows, err := env.service.Rows(nil)
		require.NoError(t, err)
		assert.Equal(t, StatusUpToDate, rows[0].Status)
		assert.Equal(t, "v2", rows[0].Version)
	})

	t.Run("Already Up To Date", func(t *testing.T) {
		gh := newFakeGitHub()
		gh.releases["owner/alpha"] = []github.Release{
			release("v1", map[string]github.Asset{"alpha.apworld": {Size: 8, SHA256Hex: digestOf("alpha-v1")}}),
		}
		manifest := `
[world "alpha"]
github_repo = owner/alpha
github_repo_asset = alpha.apworld
`
		env := newTestEnv(t, manifest, map[string]string{"alpha.apworld": "alpha-v1"}, gh)

		require.NoError(t, env.service.Check(context.Background(), nil))
		result, err := env.service.Update(context.Background(), nil)
		require.NoError(t, err)

		assert.Equal(t, 0, result.Downloaded)
		assert.Contains(t, env.out.String(), "already up to date\n")
	})

	t.Run("Asset Missing From Every Release", func(t *testing.T) {
		gh := newFakeGitHub()
		gh.releases["owner/alpha"] = []github.Release{
			release("v1", map[string]github.Asset{"something-else.zip": {Size: 1}}),
		}
		manifest := `
[world "alpha"]
github_repo = owner/alpha
github_repo_asset = alpha.apworld
`
		env := newTestEnv(t, manifest, nil, gh)

		require.NoError(t, env.service.Check(context.Background(), nil))
		_, err := env.service.Update(context.Background(), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `asset name "alpha.apworld" not found in any release from https://github.com/owner/alpha/releases`)
	})

	t.Run("Reports Orphans Only When Unscoped", func(t *testing.T) {
		gh := newFakeGitHub()
		gh.releases["owner/alpha"] = []github.Release{
			release("v1", map[string]github.Asset{"alpha.apworld": {Size: 8, SHA256Hex: digestOf("alpha-v1")}}),
		}
		manifest := `
[world "alpha"]
github_repo = owner/alpha
github_repo_asset = alpha.apworld
`
		files := map[string]string{
			"alpha.apworld":  "alpha-v1",
			"orphan.apworld": "who am i",
		}
		env := newTestEnv(t, manifest, files, gh)
		require.NoError(t, env.service.Check(context.Background(), nil))

		result, err := env.service.Update(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"orphan.apworld"}, result.Orphans)

		result, err = env.service.Update(context.Background(), []string{"alpha"})
		require.NoError(t, err)
		assert.Empty(t, result.Orphans)

		// Update itself never deletes.
		_, statErr := os.Stat(filepath.Join(env.dir, "orphan.apworld"))
		assert.NoError(t, statErr)
	})

	t.Run("Size Fallback When No Digest", func(t *testing.T) {
		gh := newFakeGitHub()
		gh.releases["owner/alpha"] = []github.Release{
			release("v1", map[string]github.Asset{"alpha.apworld": {Size: int64(len("alpha-v1"))}}),
		}
		manifest := `
[world "alpha"]
github_repo = owner/alpha
github_repo_asset = alpha.apworld
`
		env := newTestEnv(t, manifest, map[string]string{"alpha.apworld": "alpha-v1"}, gh)

		require.NoError(t, env.service.Check(context.Background(), nil))
		result, err := env.service.Update(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, 0, result.Downloaded)
	})

	t.Run("Constraint Picks Older Release", func(t *testing.T) {
		gh := newFakeGitHub()
		gh.releases["owner/alpha"] = []github.Release{
			release("v2.5.0", map[string]github.Asset{"alpha.apworld": {Size: 10, SHA256Hex: digestOf("alpha-v2.5")}}),
			release("v1.9.0", map[string]github.Asset{"alpha.apworld": {Size: 8, SHA256Hex: digestOf("alpha-v1.9")}}),
		}
		manifest := `
[world "alpha"]
github_repo = owner/alpha
github_repo_asset = alpha.apworld
version_constraint = < 2.0.0
`
		env := newTestEnv(t, manifest, nil, gh)

		require.NoError(t, env.service.Check(context.Background(), nil))
		result, err := env.service.Update(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Downloaded)
		assert.Contains(t, env.out.String(), "releases/download/v1.9.0/alpha.apworld")
	})
}

func TestDeleteOrphans(t *testing.T) {
	env := newTestEnv(t, listManifest, map[string]string{
		"orphan.apworld": "who am i",
	}, newFakeGitHub())
	require.NoError(t, env.cache.RefreshFiles())

	require.NoError(t, env.service.DeleteOrphans([]string{"orphan.apworld"}))

	_, err := os.Stat(filepath.Join(env.dir, "orphan.apworld"))
	assert.True(t, os.IsNotExist(err))
	_, ok := env.cache.File("orphan.apworld")
	assert.False(t, ok)
	assert.Contains(t, env.out.String(), "deleting: "+filepath.Join(env.dir, "orphan.apworld"))
}
