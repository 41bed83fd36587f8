package internaldefs

import (
	vzauth "github.com/vocalizeai/vzauth"
)

// CounterDef names one exported counter.
type CounterDef struct {
	ID   vzauth.MetricID
	Name string
	Help string
}

// HistogramDef names one exported latency histogram.
type HistogramDef struct {
	ID   vzauth.MetricID
	Name string
	Help string
}

// CounterDefs lists every counter in export order.
var CounterDefs = []CounterDef{
	{ID: vzauth.MetricLoginSuccess, Name: "vzauth_login_success_total", Help: "Logins that produced a stored session."},
	{ID: vzauth.MetricLoginFailure, Name: "vzauth_login_failure_total", Help: "Logins rejected or failed."},
	{ID: vzauth.MetricLoginUnverified, Name: "vzauth_login_unverified_total", Help: "Logins against unconfirmed accounts."},
	{ID: vzauth.MetricRefreshSuccess, Name: "vzauth_refresh_success_total", Help: "Successful token refreshes."},
	{ID: vzauth.MetricRefreshFailure, Name: "vzauth_refresh_failure_total", Help: "Refreshes that ended the session."},
	{ID: vzauth.MetricRefreshSuperseded, Name: "vzauth_refresh_superseded_total", Help: "Refresh results discarded after logout or a newer login."},
	{ID: vzauth.MetricLaunchStoredValid, Name: "vzauth_launch_stored_valid_total", Help: "Launch checks that reused the stored session."},
	{ID: vzauth.MetricLaunchRefreshed, Name: "vzauth_launch_refreshed_total", Help: "Launch checks that refreshed the stored session."},
	{ID: vzauth.MetricLaunchLoggedOut, Name: "vzauth_launch_logged_out_total", Help: "Launch checks that ended logged out."},
	{ID: vzauth.MetricSessionCleared, Name: "vzauth_session_cleared_total", Help: "Stored sessions cleared after a failed refresh."},
	{ID: vzauth.MetricLogout, Name: "vzauth_logout_total", Help: "Explicit logouts."},
	{ID: vzauth.MetricReloginRequired, Name: "vzauth_relogin_required_total", Help: "Relogin notifications emitted."},
	{ID: vzauth.MetricSchedulerStarted, Name: "vzauth_scheduler_started_total", Help: "Refresh schedules started."},
	{ID: vzauth.MetricSchedulerAlreadyRunning, Name: "vzauth_scheduler_already_running_total", Help: "Schedule starts ignored because a timer was active."},
	{ID: vzauth.MetricProfileNetwork, Name: "vzauth_profile_network_total", Help: "Profiles served from a network fetch."},
	{ID: vzauth.MetricProfileCache, Name: "vzauth_profile_cache_total", Help: "Profiles served from a fresh cache entry."},
	{ID: vzauth.MetricProfileStale, Name: "vzauth_profile_stale_total", Help: "Profiles served from a stale cache entry."},
	{ID: vzauth.MetricProfileUnavailable, Name: "vzauth_profile_unavailable_total", Help: "Profile requests with neither network nor cache."},
	{ID: vzauth.MetricRegisterSuccess, Name: "vzauth_register_success_total", Help: "Accounts created."},
	{ID: vzauth.MetricRegisterInvalid, Name: "vzauth_register_invalid_total", Help: "Registration forms rejected locally."},
}

// HistogramDefs lists every latency histogram.
var HistogramDefs = []HistogramDef{
	{ID: vzauth.MetricLoginLatency, Name: "vzauth_login_latency_seconds", Help: "Login round trip latency."},
	{ID: vzauth.MetricRefreshLatency, Name: "vzauth_refresh_latency_seconds", Help: "Refresh round trip latency."},
}

// HistogramBounds are the bucket upper bounds in seconds, matching the
// core histogram layout.
var HistogramBounds = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// HistogramBoundSuffix names each bucket, +Inf last.
var HistogramBoundSuffix = []string{
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"2_5",
	"5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed-size array, zero-filling.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
