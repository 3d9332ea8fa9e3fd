package internaldefs

import (
	authclient "github.com/MrEthical07/authclient"
)

// CounterDef maps a client counter to its exported name.
type CounterDef struct {
	ID   authclient.MetricID
	Name string
	Help string
}

// HistogramDef maps a client histogram to its exported name.
type HistogramDef struct {
	ID   authclient.MetricID
	Name string
	Help string
}

// AuditDroppedName is exported alongside the registry counters.
const (
	AuditDroppedName = "authclient_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
)

var CounterDefs = []CounterDef{
	{ID: authclient.MetricRequests, Name: "authclient_requests_total", Help: "Requests issued through the client."},
	{ID: authclient.MetricRequestFailures, Name: "authclient_request_failures_total", Help: "Requests that returned an error."},
	{ID: authclient.MetricUnauthorized, Name: "authclient_unauthorized_total", Help: "401 responses seen by the refresh coordinator."},
	{ID: authclient.MetricRefreshSuccess, Name: "authclient_refresh_success_total", Help: "Successful token refreshes."},
	{ID: authclient.MetricRefreshFailure, Name: "authclient_refresh_failure_total", Help: "Failed or impossible token refreshes."},
	{ID: authclient.MetricRefreshShared, Name: "authclient_refresh_shared_total", Help: "401s resolved by a refresh run for another request."},
	{ID: authclient.MetricRetries, Name: "authclient_retries_total", Help: "Requests reissued after a refresh."},
	{ID: authclient.MetricForcedLogout, Name: "authclient_forced_logout_total", Help: "Sessions cleared because refresh was impossible."},
	{ID: authclient.MetricLoginSuccess, Name: "authclient_login_success_total", Help: "Successful logins."},
	{ID: authclient.MetricLoginFailure, Name: "authclient_login_failure_total", Help: "Failed logins."},
	{ID: authclient.MetricLogout, Name: "authclient_logout_total", Help: "Explicit logouts."},
	{ID: authclient.MetricProfileFetched, Name: "authclient_profile_fetched_total", Help: "Profile fetches stored in the session."},
}

var HistogramDefs = []HistogramDef{
	{ID: authclient.MetricRequestLatency, Name: "authclient_request_latency_seconds", Help: "End-to-end request latency including refresh and retry."},
}

// HistogramUpperBounds are the finite bucket bounds in seconds. The registry
// has one more bucket for +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to the registry bucket count.
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
