package analyses

import "errors"

// ErrNotFound indicates the requested job or result object does not exist.
var ErrNotFound = errors.New("analysis not found")

// ErrResultNotReady indicates the job has not reached succeeded yet, so
// there is no payload to read.
var ErrResultNotReady = errors.New("analysis result not ready")

// ErrPersistenceFailed indicates a succeeded external result could not be
// written to the object store and the in-memory payload is gone.
var ErrPersistenceFailed = errors.New("result persistence failed")
