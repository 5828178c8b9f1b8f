package journal

import "time"

// Event types cover the lifecycle moments a run wants to explain afterwards:
// where sessions came from, what fixtures existed, and how verification went.
const (
	TypeSessionLogin       = "session_login"
	TypeSessionReused      = "session_reused"
	TypeSessionInvalidated = "session_invalidated"
	TypeFixtureCreated     = "fixture_created"
	TypeFixtureDeleted     = "fixture_deleted"
	TypeTeardownSkipped    = "teardown_skipped"
	TypeVerifyPass         = "verify_pass"
	TypeVerifyFail         = "verify_fail"
	TypeSweepDeleted       = "sweep_deleted"
	TypeRateLimited        = "rate_limited"
)

// Event is emitted from harness logic to capture key actions. Keep it
// transport-agnostic so sinks can fan out.
type Event struct {
	Time     time.Time         `json:"time"`
	RunID    string            `json:"run_id"`
	Type     string            `json:"type"`
	Role     string            `json:"role,omitempty"`
	Kind     string            `json:"kind,omitempty"`
	EntityID string            `json:"entity_id,omitempty"`
	Table    string            `json:"table,omitempty"`
	Detail   map[string]string `json:"detail,omitempty"`
}
