// Package server builds the local status API.
//
// The expose command runs a small HTTP server next to the TCP proxy so that
// scripts (and the odd curl) can inspect what the toolbelt is doing. This
// package owns its configuration and the shared middleware stack; the actual
// endpoints come from features loaded through core/loader.
//
// # Configuration
//
// The Config struct defines the listen address and an optional API key. The
// default listen address is loopback only.
//
// # Middleware Order
//
// Request id tagging runs first, then request logging, then the public
// /healthz endpoint, then API key auth. Everything a feature registers sits
// behind the auth check.
package server
