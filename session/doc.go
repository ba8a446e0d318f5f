// Package session is the Redis-backed ledger of refresh-token sessions.
//
// Each session is a hash keyed by the token's jti, holding the owning user,
// issue and expiry times, and a revocation tombstone. Rotation uses a Lua
// compare-and-revoke so that of any number of concurrent refreshes carrying
// the same jti, exactly one wins; the rest see the tombstone and are
// reported as replay.
package session
