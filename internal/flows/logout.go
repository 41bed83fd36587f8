package flows

import "context"

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	// Advance moves the session epoch forward so that in-flight login and
	// refresh results are discarded.
	Advance func()
	// StopScheduler cancels future refresh ticks.
	StopScheduler func()
	Store         SessionClearer
	Commit        CommitFunc
}

// RunLogout invalidates in-flight work, stops the refresh schedule and
// clears every stored credential field. It is safe to call repeatedly.
func RunLogout(ctx context.Context, deps LogoutDeps) error {
	if deps.Advance != nil {
		deps.Advance()
	}
	if deps.StopScheduler != nil {
		deps.StopScheduler()
	}
	if deps.Commit == nil {
		return deps.Store.Clear(ctx)
	}
	_, err := deps.Commit(ctx, deps.Store.Clear)
	return err
}
