// Package internal holds shared helpers for the authkit root package and its
// stores: secret generation, digests, and numeric one-time codes. Nothing in
// here is part of the public API.
package internal
