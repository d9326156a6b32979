package worlds

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"ap-tools/core/github"
	"ap-tools/core/utils"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrCheckRequired is returned by Update when release metadata for an
// involved repo was never fetched.
var ErrCheckRequired = errors.New("run 'check' first")

// ReleaseLister lists every release of a repository, newest first.
type ReleaseLister interface {
	Releases(ctx context.Context, ownerRepo string) ([]github.Release, error)
}

// GitHub is what this feature needs from the GitHub client.
type GitHub interface {
	ReleaseLister
	DownloadAsset(ctx context.Context, ownerRepo, tag, asset, destPath string) error
	AssetURL(ownerRepo, tag, asset string) string
	ReleasesWebURL(ownerRepo string) string
}

// Service implements the list, check and update operations over the
// manifest, the worlds directory and GitHub.
type Service struct {
	manifest    *Manifest
	cache       *Cache
	gh          GitHub
	ttl         time.Duration
	concurrency int
	logger      *zap.Logger
	out         io.Writer
}

// NewService wires the worlds service together.
func NewService(manifest *Manifest, cache *Cache, gh GitHub, ttl time.Duration, concurrency int, logger *zap.Logger) *Service {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Service{
		manifest:    manifest,
		cache:       cache,
		gh:          gh,
		ttl:         ttl,
		concurrency: concurrency,
		logger:      logger,
		out:         os.Stdout,
	}
}

// SetOutput redirects the human-facing output, for tests.
func (s *Service) SetOutput(w io.Writer) {
	s.out = w
}

// scope resolves the name arguments to the worlds they select, in manifest
// order. No names means every world. Unknown names are an error.
func (s *Service) scope(names []string) (worlds []World, scoped bool, err error) {
	if len(names) == 0 {
		return s.manifest.Worlds, false, nil
	}

	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}
	var bogus []string
	for name := range wanted {
		if _, ok := s.manifest.Find(name); !ok {
			bogus = append(bogus, name)
		}
	}
	if len(bogus) > 0 {
		sort.Strings(bogus)
		return nil, false, fmt.Errorf("apworld name%s not found in config: %s",
			utils.Plural(len(bogus)), strings.Join(bogus, ", "))
	}

	for _, w := range s.manifest.Worlds {
		if wanted[w.Name] {
			worlds = append(worlds, w)
		}
	}
	return worlds, true, nil
}

// Rows builds the listing: one row per selected world, plus one row per
// not-listed file when no names were given.
func (s *Service) Rows(names []string) ([]Row, error) {
	if err := s.cache.RefreshFiles(); err != nil {
		return nil, err
	}
	worlds, scoped, err := s.scope(names)
	if err != nil {
		return nil, err
	}

	orphans := make(map[string]bool)
	for _, name := range s.cache.FileNames() {
		orphans[name] = true
	}

	var rows []Row
	for _, w := range worlds {
		row := Row{Name: w.Name}

		if w.IsManual() {
			if file, ok := s.cache.File(w.ManualFile); ok {
				delete(orphans, w.ManualFile)
				row.Status = StatusManual
				row.Size = file.Size
			} else {
				row.Status = StatusManualMissing
			}
			rows = append(rows, row)
			continue
		}

		repo, repoOK := s.cache.Repo(w.Repo)
		file, fileOK := s.cache.File(w.Asset)
		delete(orphans, w.Asset)
		switch {
		case fileOK && repoOK:
			row.Version, row.Status = resolveVersion(repo, w, file)
			row.Size = file.Size
		case !fileOK && repoOK:
			row.Status = StatusNotDownloaded
		case fileOK && !repoOK:
			row.Status = StatusNeverChecked
			row.Size = file.Size
		default:
			row.Status = StatusNotDownloadedNever
		}
		if repoOK {
			row.Checked = humanize.Time(floatTime(repo.LastChecked))
		}
		rows = append(rows, row)
	}

	if !scoped {
		names := make([]string, 0, len(orphans))
		for name := range orphans {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			row := Row{Name: name, Status: StatusOrphan}
			if file, ok := s.cache.File(name); ok {
				row.Size = file.Size
			}
			rows = append(rows, row)
		}
	}

	return rows, nil
}

// Check refreshes the release listing of every repo the selected worlds
// reference, skipping repos whose cached listing is still fresh. Repos are
// fetched concurrently, a few at a time. When no names were given, cached
// listings for repos no world references anymore are dropped.
func (s *Service) Check(ctx context.Context, names []string) error {
	release, err := s.cache.Guard()
	if err != nil {
		return err
	}
	defer release()

	if err := s.cache.RefreshFiles(); err != nil {
		return err
	}
	worlds, scoped, err := s.scope(names)
	if err != nil {
		return err
	}

	// Several worlds may share a repo; fetch each repo once.
	var repos []string
	seen := make(map[string]bool)
	for _, w := range worlds {
		if w.IsManual() || seen[w.Repo] {
			continue
		}
		seen[w.Repo] = true
		repos = append(repos, w.Repo)
	}

	progress := newProgress(s.out, len(repos))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, repo := range repos {
		repo := repo
		g.Go(func() error {
			if err := s.cache.RefreshRepo(gctx, s.gh, repo, s.ttl); err != nil {
				return err
			}
			s.logger.Debug("Checked repo", zap.String("repo", repo))
			progress.step(repo)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		progress.abort()
		return err
	}
	progress.finish()

	if !scoped {
		pruned, err := s.cache.PruneRepos(s.manifest.Repos())
		if err != nil {
			return err
		}
		for _, repo := range pruned {
			s.logger.Info("Dropped stale release cache", zap.String("repo", repo))
		}
	}
	return nil
}

// UpdateResult says what an update run did and what it left over.
type UpdateResult struct {
	// Downloaded is how many assets were fetched.
	Downloaded int
	// Orphans lists files in the worlds directory no configured world
	// claims. Only filled when the run was not scoped to specific names.
	Orphans []string
}

// Update downloads the newest eligible release asset for every selected
// world that is not already up to date. Requires a prior Check for every
// repo involved.
func (s *Service) Update(ctx context.Context, names []string) (*UpdateResult, error) {
	release, err := s.cache.Guard()
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.cache.RefreshFiles(); err != nil {
		return nil, err
	}
	worlds, scoped, err := s.scope(names)
	if err != nil {
		return nil, err
	}

	orphans := make(map[string]bool)
	for _, name := range s.cache.FileNames() {
		orphans[name] = true
	}

	result := &UpdateResult{}
	for _, w := range worlds {
		if w.IsManual() {
			delete(orphans, w.ManualFile)
			continue
		}

		repo, ok := s.cache.Repo(w.Repo)
		if !ok {
			return nil, ErrCheckRequired
		}
		delete(orphans, w.Asset)

		var file *CachedFile
		if f, ok := s.cache.File(w.Asset); ok {
			file = &f
		}

		target, upToDate, found := findTarget(repo, w, file)
		if !found {
			return nil, fmt.Errorf("asset name %q not found in any release from %s",
				w.Asset, s.gh.ReleasesWebURL(w.Repo))
		}
		if upToDate {
			continue
		}

		fmt.Fprintln(s.out, "downloading: "+s.gh.AssetURL(w.Repo, target.TagName, w.Asset))
		dest := filepath.Join(s.cache.Dir(), w.Asset)
		if err := s.gh.DownloadAsset(ctx, w.Repo, target.TagName, w.Asset, dest); err != nil {
			return nil, err
		}
		s.logger.Info("Downloaded world",
			zap.String("world", w.Name),
			zap.String("version", target.TagName),
		)
		result.Downloaded++
	}

	if result.Downloaded == 0 {
		fmt.Fprintln(s.out, "already up to date")
	} else {
		if err := s.cache.RefreshFiles(); err != nil {
			return nil, err
		}
		fmt.Fprintf(s.out, "downloaded %d new item%s\n", result.Downloaded, utils.Plural(result.Downloaded))
	}

	if !scoped {
		for name := range orphans {
			result.Orphans = append(result.Orphans, name)
		}
		sort.Strings(result.Orphans)
	}
	return result, nil
}

// DeleteOrphans removes the given files from the worlds directory and
// refreshes the cache afterwards.
func (s *Service) DeleteOrphans(orphans []string) error {
	release, err := s.cache.Guard()
	if err != nil {
		return err
	}
	defer release()

	for _, name := range orphans {
		path := filepath.Join(s.cache.Dir(), name)
		fmt.Fprintln(s.out, "deleting: "+path)
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to delete %s: %w", path, err)
		}
		s.logger.Info("Deleted orphaned file", zap.String("file", name))
	}
	return s.cache.RefreshFiles()
}

func floatTime(seconds float64) time.Time {
	sec := int64(seconds)
	nsec := int64((seconds - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}

// progress is a single rewritten terminal line tracking the check.
type progress struct {
	mu      sync.Mutex
	out     io.Writer
	total   int
	done    int
	lastLen int
}

func newProgress(out io.Writer, total int) *progress {
	return &progress{out: out, total: total}
}

func (p *progress) step(label string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done++
	p.print(fmt.Sprintf("%d/%d %.0f%% %s", p.done, p.total, 100*float64(p.done)/float64(p.total), label))
}

func (p *progress) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.total == 0 {
		fmt.Fprintln(p.out, "0/0 100%")
		return
	}
	p.print(fmt.Sprintf("%d/%d 100%%", p.total, p.total))
	fmt.Fprintln(p.out)
}

func (p *progress) abort() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastLen > 0 {
		fmt.Fprintln(p.out)
	}
}

// print rewrites the current line, blanking out leftovers from a longer
// previous line.
func (p *progress) print(line string) {
	padding := ""
	if n := p.lastLen - len(line); n > 0 {
		padding = strings.Repeat(" ", n)
	}
	fmt.Fprint(p.out, "\r"+line+padding)
	p.lastLen = len(line)
}
