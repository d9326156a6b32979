// Package middleware contains HTTP middleware for the Fiber application.
//
// It provides cross-cutting concerns that sit between the request and the handler.
//
// # Components
//
//   - Auth: Implements API key validation to protect endpoints.
//   - ReqID: Generates a unique Request ID for every incoming request,
//     injecting it into the context and response headers for tracing.
//
// These middleware components are registered globally by core/server when the
// status API is built.
package middleware
