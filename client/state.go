package client

// State is the session-level lifecycle of a SessionClient.
type State int32

const (
	Unauthenticated State = iota
	AuthenticatedFresh
	PendingRenewal
	Renewing
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case AuthenticatedFresh:
		return "authenticated_fresh"
	case PendingRenewal:
		return "pending_renewal"
	case Renewing:
		return "renewing"
	}
	return "unknown"
}

// LogoutReason tells the login surface why the session ended.
type LogoutReason string

const (
	LogoutUser           LogoutReason = "user"
	LogoutSessionExpired LogoutReason = "session_expired"
)

// Renewal triggers, used as metric labels.
const (
	TriggerTimer        = "timer"
	TriggerUnauthorized = "unauthorized"
	TriggerManual       = "manual"
)
