// Package notify relays user-visible session notifications (relogin
// required, login failures, offline profile) to a caller-supplied [Sink]
// through a buffered asynchronous [Dispatcher].
//
// The package does not decide which events to emit; the session manager
// does. Sinks must be safe for use from the dispatcher goroutine.
package notify
