package worlds

import (
	"ap-tools/core/github"

	"github.com/Masterminds/semver"
)

// Status values shown in listings.
const (
	StatusUpToDate           = "up to date"
	StatusUpdateAvailable    = "update available"
	StatusUnknownVersion     = "unknown version"
	StatusNotDownloaded      = "(not downloaded)"
	StatusNeverChecked       = "(never checked)"
	StatusNotDownloadedNever = "(not downloaded, never checked)"
	StatusManual             = "(manually managed)"
	StatusManualMissing      = "manual file missing from disk"
	StatusOrphan             = "not listed in config"
)

// assetMatches reports whether a published asset is the file on disk. When
// the repo publishes no digest the size has to do.
func assetMatches(asset github.Asset, file CachedFile) bool {
	if asset.SHA256Hex != nil {
		return *asset.SHA256Hex == file.SHA256Hex
	}
	return asset.Size == file.Size
}

// eligibleReleases returns the releases the world may be resolved against,
// newest first. A version constraint drops releases whose tag does not parse
// as a version or does not satisfy the constraint.
func eligibleReleases(repo CachedRepo, w World) []github.Release {
	if w.Constraint == nil {
		return repo.Releases
	}
	var out []github.Release
	for _, release := range repo.Releases {
		v, err := semver.NewVersion(release.TagName)
		if err != nil {
			continue
		}
		if w.Constraint.Check(v) {
			out = append(out, release)
		}
	}
	return out
}

// resolveVersion figures out which release the file on disk came from, by
// matching the published digest (or size). Releases carrying the asset name
// with a different digest are assumed to be newer versions.
func resolveVersion(repo CachedRepo, w World, file CachedFile) (version, status string) {
	newer := 0
	for _, release := range eligibleReleases(repo, w) {
		asset, ok := release.Assets[w.Asset]
		if !ok {
			// A release for something else.
			continue
		}
		if assetMatches(asset, file) {
			if newer == 0 {
				return release.TagName, StatusUpToDate
			}
			return release.TagName, StatusUpdateAvailable
		}
		newer++
	}
	return "", StatusUnknownVersion
}

// findTarget picks the newest eligible release carrying the asset. upToDate
// is true when the file on disk already matches it. ok is false when no
// eligible release carries the asset at all.
func findTarget(repo CachedRepo, w World, file *CachedFile) (target github.Release, upToDate, ok bool) {
	for _, release := range eligibleReleases(repo, w) {
		asset, found := release.Assets[w.Asset]
		if !found {
			continue
		}
		if file != nil && assetMatches(asset, *file) {
			return release, true, true
		}
		return release, false, true
	}
	return github.Release{}, false, false
}
