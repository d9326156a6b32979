// Package seeds archives generated seed zips in object storage.
//
// Objects live under a configurable prefix inside one bucket, so the bucket
// can be shared with other tooling. Every upload records the zip's sha256
// and original filename as user metadata; fetches verify the hash when it
// is there. Pruning is two-phase: Prune plans which seeds would go,
// DeleteSeeds applies the plan, and the confirmation prompt sits between
// the two in the CLI.
package seeds
