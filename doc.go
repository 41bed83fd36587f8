// Package vzauth keeps a VocalizeAI bearer credential alive on a client
// device. The token is renewed on a fixed schedule, and the manager drops
// to the logged-out state whenever it cannot be renewed.
//
// # Architecture boundaries
//
// vzauth is the public surface. It exposes [Manager], [Builder], [Config],
// [LoginResult] and [Metrics]. Persistence lives in credential and
// internal/stores, token decoding in token, profile caching in profile,
// the refresh timer in schedule, HTTP in api, and the lifecycle
// orchestration in internal/flows.
//
// # Concurrency
//
// Manager methods are safe to call from multiple goroutines. State and the
// in-memory session sit behind a mutex that is never held across I/O.
// Store writes go through a separate commit lock tied to a session epoch:
// Logout and Login advance the epoch, and any login or refresh result that
// resolves afterwards is discarded with [ErrSuperseded] instead of
// repopulating the store.
package vzauth
