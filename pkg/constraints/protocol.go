package constraints

import "time"

// Endpoint paths relative to API_BASE.
const (
	PathToken        = "/token/"
	PathTokenRefresh = "/token/refresh/"
	PathWhoAmI       = "/auth/yo/"
	PathLogout       = "/auth/logout/"
	PathTurnos       = "/turnos/"
)

// Persisted session keys. Written together, removed together.
const (
	KeyAccess    = "access"
	KeyRefresh   = "refresh"
	KeyAccessExp = "access_exp"
	KeyUser      = "user"
)

var SessionKeys = []string{KeyAccess, KeyRefresh, KeyAccessExp, KeyUser}

const (
	// RenewalSafetyMargin is subtracted from the remaining token lifetime to decide when to renew.
	RenewalSafetyMargin = 60 * time.Second
	LoginPath           = "/login"
	DefaultAPIBase      = "http://localhost:8080/api"
)
