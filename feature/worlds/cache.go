package worlds

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"ap-tools/core/github"

	"github.com/gofrs/flock"
	"github.com/jonboulle/clockwork"
)

const (
	cacheStateName = ".cache_state.json"
	cacheLockName  = ".cache_state.lock"
)

// CachedFile records what we know about one file in the worlds directory.
// The stat triple (mtime, size, inode) decides whether the stored hash can
// be trusted without re-reading the file.
type CachedFile struct {
	Mtime     float64 `json:"mtime"`
	Size      int64   `json:"size"`
	Inode     uint64  `json:"inode"`
	SHA256Hex string  `json:"sha256_hex"`
}

// CachedRepo records the release listing of one GitHub repo.
type CachedRepo struct {
	// LastChecked is a unix timestamp in seconds.
	LastChecked float64 `json:"last_checked"`
	// Releases is the full listing, most recent first.
	Releases []github.Release `json:"releases"`
}

type cacheState struct {
	Files map[string]CachedFile `json:"files"`
	Repos map[string]CachedRepo `json:"repos"`
}

// ErrLocked is returned by Guard when another process already holds the
// directory lock.
var ErrLocked = errors.New("another process is already working on this worlds directory")

// Cache is the sidecar state next to the managed world files. It remembers
// file hashes (so unchanged files are not re-hashed) and release listings
// (so GitHub is not asked again within the TTL).
type Cache struct {
	dir   string
	clock clockwork.Clock
	lock  *flock.Flock

	mu    sync.Mutex
	files map[string]CachedFile
	repos map[string]CachedRepo
}

// OpenCache reads the cache state from dir, tolerating a missing state file.
func OpenCache(dir string, clock clockwork.Clock) (*Cache, error) {
	c := &Cache{
		dir:   dir,
		clock: clock,
		lock:  flock.New(filepath.Join(dir, cacheLockName)),
		files: make(map[string]CachedFile),
		repos: make(map[string]CachedRepo),
	}

	raw, err := os.ReadFile(filepath.Join(dir, cacheStateName))
	if os.IsNotExist(err) {
		return c, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read cache state: %w", err)
	}

	var state cacheState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("failed to parse cache state in %s: %w", dir, err)
	}
	if state.Files != nil {
		c.files = state.Files
	}
	if state.Repos != nil {
		c.repos = state.Repos
	}
	return c, nil
}

// Dir returns the directory the cache describes.
func (c *Cache) Dir() string {
	return c.dir
}

// File returns the cached entry for one file name.
func (c *Cache) File(name string) (CachedFile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.files[name]
	return f, ok
}

// FileNames returns the names of every cached file.
func (c *Cache) FileNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.files))
	for name := range c.files {
		names = append(names, name)
	}
	return names
}

// Repo returns the cached release listing for owner/repo.
func (c *Cache) Repo(ownerRepo string) (CachedRepo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.repos[ownerRepo]
	return r, ok
}

// RepoNames returns every repo the cache has a listing for.
func (c *Cache) RepoNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.repos))
	for name := range c.repos {
		names = append(names, name)
	}
	return names
}

// Guard takes the exclusive directory lock so two processes cannot mutate
// the same worlds directory at once. It fails fast instead of waiting; the
// returned release must be called when the operation is done.
func (c *Cache) Guard() (release func(), err error) {
	ok, err := c.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", c.lock.Path(), err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (lock: %s)", ErrLocked, c.lock.Path())
	}
	return func() { _ = c.lock.Unlock() }, nil
}

// Save writes the state atomically. The file lock keeps two toolbelt
// processes from fighting over the temp file; the rename itself is already
// atomic.
func (c *Cache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saveLocked()
}

func (c *Cache) saveLocked() error {
	// A save inside a guarded operation already holds the lock.
	if !c.lock.Locked() {
		if err := c.lock.Lock(); err != nil {
			return fmt.Errorf("failed to lock cache state: %w", err)
		}
		defer c.lock.Unlock()
	}

	data, err := json.MarshalIndent(cacheState{Files: c.files, Repos: c.repos}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cache state: %w", err)
	}
	data = append(data, '\n')

	path := filepath.Join(c.dir, cacheStateName)
	if err := os.WriteFile(path+".tmp", data, 0o644); err != nil {
		return fmt.Errorf("failed to write cache state: %w", err)
	}
	if err := os.Rename(path+".tmp", path); err != nil {
		return fmt.Errorf("failed to move cache state into place: %w", err)
	}
	return nil
}

// RefreshFiles brings the file entries in line with the directory. Files
// whose stat triple is unchanged keep their stored hash; new and modified
// files are hashed; entries for deleted files are dropped. The state is
// saved only when something changed.
//
// Names starting with "." or "_" are ignored, matching how Archipelago
// itself decides which files in the worlds directory count.
func (c *Cache) RefreshFiles() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", c.dir, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	dirty := false
	outstanding := make(map[string]bool, len(c.files))
	for name := range c.files {
		outstanding[name] = true
	}

	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
			continue
		}
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", name, err)
		}

		expected, known := c.files[name]
		delete(outstanding, name)
		if known &&
			expected.Mtime == statMtime(info) &&
			expected.Size == info.Size() &&
			expected.Inode == statInode(info) {
			continue
		}

		cached, err := hashFile(filepath.Join(c.dir, name), info)
		if err != nil {
			return err
		}
		c.files[name] = cached
		dirty = true
	}

	for name := range outstanding {
		delete(c.files, name)
		dirty = true
	}

	if dirty {
		return c.saveLocked()
	}
	return nil
}

// RefreshRepo fetches the release listing for owner/repo unless the cached
// one is younger than ttl. The state is saved after every successful fetch,
// so an abort later in the run does not lose the answers already paid for.
func (c *Cache) RefreshRepo(ctx context.Context, gh ReleaseLister, ownerRepo string, ttl time.Duration) error {
	c.mu.Lock()
	cached, ok := c.repos[ownerRepo]
	now := float64(c.clock.Now().UnixNano()) / 1e9
	c.mu.Unlock()
	if ok && now-cached.LastChecked < ttl.Seconds() {
		return nil
	}

	releases, err := gh.Releases(ctx, ownerRepo)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.repos[ownerRepo] = CachedRepo{
		LastChecked: float64(c.clock.Now().UnixNano()) / 1e9,
		Releases:    releases,
	}
	return c.saveLocked()
}

// PruneRepos drops cached listings for repos no configured world references
// anymore. Returns the pruned repo names.
func (c *Cache) PruneRepos(keep map[string]bool) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var pruned []string
	for name := range c.repos {
		if !keep[name] {
			delete(c.repos, name)
			pruned = append(pruned, name)
		}
	}
	if len(pruned) == 0 {
		return nil, nil
	}
	return pruned, c.saveLocked()
}

func statMtime(info os.FileInfo) float64 {
	return float64(info.ModTime().UnixNano()) / 1e9
}

func statInode(info os.FileInfo) uint64 {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return st.Ino
	}
	return 0
}

func hashFile(path string, info os.FileInfo) (CachedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return CachedFile{}, fmt.Errorf("failed to hash %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return CachedFile{}, fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return CachedFile{
		Mtime:     statMtime(info),
		Size:      info.Size(),
		Inode:     statInode(info),
		SHA256Hex: hex.EncodeToString(h.Sum(nil)),
	}, nil
}
