package extraction

import "errors"

// ErrAuth indicates the external service (or the credential provider)
// rejected our credentials. Callers fail fast instead of polling it away.
var ErrAuth = errors.New("extraction service auth failed")

// ErrNotFound indicates the remote resource is already gone. The reaper
// treats this as success.
var ErrNotFound = errors.New("extraction resource not found")
