// Package credential persists the device's current session in a
// Redis-protocol key-value store.
//
// # Layout
//
// Every field is a plain string key under the configured prefix:
// "<prefix>:token", "<prefix>:tokenExpires" (epoch milliseconds),
// "<prefix>:role" and "<prefix>:userId", plus the auxiliary
// "<prefix>:email" and "<prefix>:participantId". Session fields are
// written in one MULTI/EXEC so a reader never observes half a session.
//
// # Architecture boundaries
//
// This package owns the [Store] and the [Session] model. It does NOT decode
// or verify tokens beyond building a Session from already decoded claims,
// and it does not decide when a session should be renewed.
//
// # What this package must NOT do
//
//   - Store the user's password.
//   - Import vzauth, profile or schedule (no upward imports).
package credential
