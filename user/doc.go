// Package user is the Redis-backed account registry.
//
// Accounts live in a hash keyed by id; lowercase username and email index
// keys enforce case-insensitive uniqueness. Registration claims both
// indexes and writes the account in a single Lua step so concurrent
// signups cannot race each other for the same name.
package user
