// Package realmcache implements the realm-cache purge client described in
// spec §4.7 / §6: the single collaborator the mutation path calls after a
// non-create write so that downstream authentication realms drop their
// cached copy of the affected usernames.
package realmcache

import "context"

// Purger clears the realm cache entries for the given usernames. A nil
// error means every node acknowledged (or at least raised no exception);
// per §6 a non-acknowledged response with no surfaced exception still
// counts as success.
type Purger interface {
	ClearRealmCache(ctx context.Context, usernames []string) error
}

// PurgeError represents a failure to clear the realm cache.
type PurgeError struct {
	Message string
	Code    string
	Cause   error
}

func (e *PurgeError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *PurgeError) Unwrap() error {
	return e.Cause
}

func (e *PurgeError) WithCause(cause error) *PurgeError {
	e.Cause = cause
	return e
}

func newPurgeError(message, code string) *PurgeError {
	return &PurgeError{Message: message, Code: code}
}

// ErrInvalidConfig is returned when a RedisPurger is constructed with a
// malformed configuration.
var ErrInvalidConfig = newPurgeError("invalid realm cache configuration", "CONFIG_ERROR")

// ErrConnectionFailed is returned when the Redis connection cannot be
// established or pinged.
var ErrConnectionFailed = newPurgeError("connection failed", "CONNECTION_ERROR")
