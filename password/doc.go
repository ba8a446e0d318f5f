// Package password wraps bcrypt hashing behind a small, config-driven
// Hasher. The stored form is the standard bcrypt string (algorithm, cost,
// salt, and digest self-described), so cost upgrades only require re-hashing
// on the next successful credential change.
package password
