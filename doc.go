// Package authkit is the authentication and session-token core of
// BookBuddy: registration, password login, rotating refresh-token
// sessions, single-use email-verification and password-reset tokens,
// one-time login codes, and immediate account deletion.
//
// State lives in Redis; every cross-request coordination point (refresh
// rotation, uniqueness claims, single-use consumption) is a single atomic
// store operation, so Engine methods are safe to call from any number of
// goroutines after [Builder.Build].
//
// # Architecture boundaries
//
// authkit is the public surface. It exposes [Engine], [Builder], [Config],
// the error taxonomy, and value types (AuthResult, TokenPair,
// HistoryEntry). Request-scoped context (client IP, user agent, request
// ID) enters through [WithClientIP], [WithUserAgent], and [WithRequestID].
//
// The engine consumes plain structured inputs and returns typed results
// and sentinel errors; HTTP routing, body parsing, and cookie handling
// belong to the caller, with helpers in the middleware package.
package authkit
