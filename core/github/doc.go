// Package github is a small client for the GitHub releases REST API.
//
// It only covers the two things the toolbelt needs: listing every release of
// a repository (with pagination) and downloading a single release asset.
//
// # Rate limiting
//
// GitHub's unauthenticated rate limit is tiny. When the API answers 403 or
// 429 with x-ratelimit-remaining drained, Releases returns a *RateLimitError
// carrying the reset time, and callers are expected to stop the whole run
// rather than hammer on. Configure a token to raise the limit.
//
// # Digests
//
// Release assets may carry a digest. Only well-formed sha256 digests are
// kept; anything else is treated as if the repo published no digest, which
// downgrades version detection to a size comparison downstream.
package github
