// Package worlds keeps the custom_worlds/ directory of an Archipelago
// checkout in sync with a declared list of .apworld files.
//
// Here we are, in the year 2025, reinventing the package manager for the
// umpteenth time.
//
// # Manifest
//
// The manifest is an ini file with one section per world:
//
//	[world "stardew valley"]
//	github_repo = agilbert1412/StardewArchipelago
//	github_repo_asset = stardew_valley.apworld
//
//	[world "secret of evermore"]
//	manual_file_name = evermore.apworld
//
// A world is either tracked against a GitHub repo (github_repo together
// with github_repo_asset) or manually managed (manual_file_name). A tracked
// world may additionally pin acceptable releases with version_constraint.
//
// # Cache
//
// Next to the world files lives .cache_state.json: the sha256 of every file
// (guarded by the mtime/size/inode triple, so unchanged files are not
// re-hashed) and the release listing of every repo (guarded by a TTL, so
// GitHub's rate limit is not burned on every run). Every write is a temp
// file rename.
//
// # Operations
//
//   - List: resolve the installed version of every world against the cached
//     listings and print a table, including files not listed in the config.
//   - Check: refresh stale release listings, a few repos at a time.
//   - Update: download the newest eligible asset for every outdated world,
//     then optionally delete files no world claims.
package worlds
