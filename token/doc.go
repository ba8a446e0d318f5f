// Package token implements the stateless bearer-token codec: short-lived
// access tokens and longer-lived refresh tokens, HMAC-signed with distinct
// secrets and pinned to a fixed issuer/audience pair. The subject claim is
// the one canonical carrier of the user ID; no aliases are accepted.
package token
