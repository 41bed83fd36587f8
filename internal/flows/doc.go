// Package flows contains the session lifecycle orchestrators behind the
// manager: login, refresh, the launch check, logout and registration.
//
// Each flow function (RunLogin, RunRefresh, RunLaunchCheck, ...) accepts a
// typed dependency struct and returns a classified result. Flows hold no
// state between calls and never own the store, the backend client or the
// scheduler; the manager does.
//
// Writes to the credential store go through a [CommitFunc] so the manager
// can discard results that belong to a session epoch that has since ended.
package flows
