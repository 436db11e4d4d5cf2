package auth

// Scopes recognized by the API surface.
const (
	// ScopeSyncWrite allows clients to push activity batches.
	ScopeSyncWrite = "sync:write"
	// ScopeSyncRead allows clients to read dashboards and achievements.
	ScopeSyncRead = "sync:read"
)
