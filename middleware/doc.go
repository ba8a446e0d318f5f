// Package middleware bridges the engine to net/http: a Bearer access-token
// guard, refresh-cookie helpers, request-context stamping for the audit
// trail, and a Redis-backed fixed-window rate limiter.
package middleware
