// Package mailer delivers the engine's outbound emails: verification
// links, reset links, username reminders, and login codes.
package mailer
