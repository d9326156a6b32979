package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"time"

	"ap-tools/core/utils"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Config holds configuration for the GitHub API client.
type Config struct {
	// APIBase is the REST API root.
	APIBase string `mapstructure:"api_base" default:"https://api.github.com"`
	// DownloadBase is the host release assets are downloaded from.
	DownloadBase string `mapstructure:"download_base" default:"https://github.com"`
	// Token is an optional bearer token. Unauthenticated requests share a
	// very small per-IP rate limit, so set one if you manage many worlds.
	Token string `mapstructure:"token" default:""`
	// TimeoutSeconds is the per-request timeout in seconds.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"30"`
	// PerPage is the page size for release listings.
	PerPage int `mapstructure:"per_page" default:"100"`
}

// Release describes one release of a repository, newest first in listings.
// The JSON field names match the on-disk cache format.
type Release struct {
	// TagName is the git tag of the release.
	TagName string `json:"tag_name"`
	// Timestamp is the newest of created/updated/published, ISO-8601.
	Timestamp string `json:"timestamp"`
	// Name is the release title.
	Name string `json:"name"`
	// Body is the release notes.
	Body string `json:"body"`
	// Assets maps asset file name to its metadata.
	Assets map[string]Asset `json:"assets"`
}

// Asset describes one downloadable file attached to a release.
type Asset struct {
	// Size is the asset size in bytes.
	Size int64 `json:"size"`
	// SHA256Hex is the published digest, nil when the repo publishes none.
	SHA256Hex *string `json:"sha256_hex"`
}

// RateLimitError reports that GitHub refused the request because the rate
// limit is exhausted. Callers should stop immediately instead of retrying.
type RateLimitError struct {
	// Reset is when the limit window opens again.
	Reset time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("github is rate limiting us, we need to wait %s before trying again",
		utils.FormatDuration(time.Until(e.Reset)))
}

// Client talks to the GitHub releases API.
type Client struct {
	cfg    Config
	rest   *resty.Client
	logger *zap.Logger
}

// NewClient creates a new GitHub client based on the configuration.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	rest := resty.New().
		SetTimeout(time.Duration(cfg.TimeoutSeconds)*time.Second).
		SetHeaders(map[string]string{
			"Accept":               "application/vnd.github+json",
			"X-GitHub-Api-Version": "2022-11-28",
		}).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})
	if cfg.Token != "" {
		rest.SetAuthToken(cfg.Token)
	}
	return &Client{cfg: cfg, rest: rest, logger: logger}
}

// RestyClient exposes the underlying resty client, for tests.
func (c *Client) RestyClient() *resty.Client {
	return c.rest
}

// ReleasesWebURL returns the human-facing releases page of a repository.
func (c *Client) ReleasesWebURL(ownerRepo string) string {
	return fmt.Sprintf("%s/%s/releases", c.cfg.DownloadBase, ownerRepo)
}

// AssetURL returns the public download URL of one release asset.
func (c *Client) AssetURL(ownerRepo, tag, asset string) string {
	return fmt.Sprintf("%s/%s/releases/download/%s/%s", c.cfg.DownloadBase, ownerRepo, tag, asset)
}

var (
	linkRelRe = regexp.MustCompile(`<([^>]*)>\s*;\s*rel="([^"]*)"`)
	digestRe  = regexp.MustCompile(`^sha256:([0-9a-f]{64})$`)
)

// Releases lists every release of owner/repo, newest first, following
// pagination until the listing is exhausted.
func (c *Client) Releases(ctx context.Context, ownerRepo string) ([]Release, error) {
	url := fmt.Sprintf("%s/repos/%s/releases?per_page=%d", c.cfg.APIBase, ownerRepo, c.cfg.PerPage)

	var releases []Release
	for url != "" {
		c.logger.Debug("Requesting release page", zap.String("url", url))
		resp, err := c.rest.R().SetContext(ctx).Get(url)
		if err != nil {
			return nil, fmt.Errorf("failed to list releases of %s: %w", ownerRepo, err)
		}
		if err := c.checkResponse(resp, ownerRepo); err != nil {
			return nil, err
		}

		var page []apiRelease
		if err := json.Unmarshal(resp.Body(), &page); err != nil {
			return nil, fmt.Errorf("failed to parse release listing of %s: %w", ownerRepo, err)
		}
		for _, r := range page {
			releases = append(releases, r.toRelease())
		}

		url = nextLink(resp.Header().Get("Link"))
	}
	return releases, nil
}

// DownloadAsset streams one release asset to destPath. The download goes to
// destPath+".tmp" first and is renamed into place only when complete, so an
// interrupted download never clobbers an installed file.
func (c *Client) DownloadAsset(ctx context.Context, ownerRepo, tag, asset, destPath string) error {
	url := c.AssetURL(ownerRepo, tag, asset)
	c.logger.Debug("Downloading asset", zap.String("url", url), zap.String("dest", destPath))

	resp, err := c.rest.R().SetContext(ctx).SetDoNotParseResponse(true).Get(url)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", url, err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("failed to download %s: %s", url, resp.Status())
	}

	tmpPath := destPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmpPath, err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", tmpPath, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to move download into place: %w", err)
	}
	return nil
}

// checkResponse maps an error response to a useful error. Rate limiting is
// detected the way the API documents it: 403 or 429 with a drained
// x-ratelimit-remaining and a reset timestamp.
func (c *Client) checkResponse(resp *resty.Response, ownerRepo string) error {
	if !resp.IsError() {
		return nil
	}
	status := resp.StatusCode()
	if (status == http.StatusForbidden || status == http.StatusTooManyRequests) &&
		resp.Header().Get("x-ratelimit-remaining") == "0" {
		reset := time.Now().Add(time.Minute)
		var epoch int64
		if _, err := fmt.Sscanf(resp.Header().Get("x-ratelimit-reset"), "%d", &epoch); err == nil {
			reset = time.Unix(epoch, 0)
		}
		return &RateLimitError{Reset: reset}
	}
	return fmt.Errorf("github API returned %s for %s", resp.Status(), ownerRepo)
}

// nextLink extracts the rel="next" target from a Link header, if any.
func nextLink(header string) string {
	for _, m := range linkRelRe.FindAllStringSubmatch(header, -1) {
		if m[2] == "next" {
			return m[1]
		}
	}
	return ""
}

// apiRelease is the wire shape of the REST API listing.
type apiRelease struct {
	TagName     string     `json:"tag_name"`
	CreatedAt   string     `json:"created_at"`
	UpdatedAt   string     `json:"updated_at"`
	PublishedAt string     `json:"published_at"`
	Name        string     `json:"name"`
	Body        string     `json:"body"`
	Assets      []apiAsset `json:"assets"`
}

type apiAsset struct {
	Name   string `json:"name"`
	Size   int64  `json:"size"`
	Digest string `json:"digest"`
}

func (r apiRelease) toRelease() Release {
	out := Release{
		TagName: r.TagName,
		// ISO-8601 timestamps sort correctly as strings, so the newest of
		// the three is a plain string max.
		Timestamp: maxString(r.CreatedAt, r.UpdatedAt, r.PublishedAt),
		Name:      r.Name,
		Body:      r.Body,
		Assets:    make(map[string]Asset, len(r.Assets)),
	}
	for _, a := range r.Assets {
		asset := Asset{Size: a.Size}
		// Some repos publish no digest at all; others publish non-sha256
		// digests. Both count as "no digest" here.
		if m := digestRe.FindStringSubmatch(a.Digest); m != nil {
			hex := m[1]
			asset.SHA256Hex = &hex
		}
		out.Assets[a.Name] = asset
	}
	return out
}

func maxString(values ...string) string {
	max := ""
	for _, v := range values {
		if v > max {
			max = v
		}
	}
	return max
}
