package vzauth

import "context"

type sessionEpochContextKey struct{}

// withSessionEpoch tags ctx with the epoch an operation started in. The
// commit lock compares it against the current epoch before writing.
func withSessionEpoch(ctx context.Context, epoch uint64) context.Context {
	return context.WithValue(ctx, sessionEpochContextKey{}, epoch)
}

func sessionEpochFromContext(ctx context.Context) (uint64, bool) {
	if ctx == nil {
		return 0, false
	}
	epoch, ok := ctx.Value(sessionEpochContextKey{}).(uint64)
	return epoch, ok
}
