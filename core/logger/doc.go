// Package logger provides a structured logging facility based on Zap.
//
// Commands print human output (tables, prompts, progress) straight to stdout;
// everything operational goes through the logger so that host-side automation
// can run with LOG_FORMAT=json and scrape it.
//
// # Request Correlation
//
// The status API tags every request with a request id (see
// core/middleware/reqid). The WithReqID helper extracts it from a Fiber
// context and attaches it to the log entry so the few HTTP handlers in this
// tool stay correlatable.
//
// # Configuration
//
//   - Level: debug, info, warn, error
//   - Format: console (development) or json (automation)
//
// # Usage
//
//	log, _ := logger.New(&cfg.Log)
//	log.Info("Proxy started")
package logger
