// Package expose publishes the local Archipelago server on addresses other
// clients can actually reach.
//
// # Why two listeners
//
// The Archipelago server only speaks plaintext. Some clients (the Jigsaw
// web client, for one) refuse anything but wss:, while others only manage
// ws:. The proxy therefore runs a TLS-terminating listener and, optionally,
// a plaintext one, both piping raw bytes to the same upstream. No protocol
// parsing happens here; WebSocket frames pass through untouched.
//
// # Lifecycle
//
// Connections are piped in both directions with half-close propagation, so
// a client that shuts down its write side still receives the server's
// remaining bytes. Shutdown closes the listeners, then the tracked
// connections, and waits for the handlers to drain. Accept errors caused by
// the shutdown itself are expected and not reported.
package expose
