package types

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bdashore3/Ferrite/internal/request"
)

// AuthError means the credential flow failed: invalid or expired
// verification, malformed prompt, rejected token. Recoverable by restarting
// auth; nothing is persisted when one of these is returned.
type AuthError struct {
	Provider Provider
	Reason   string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s auth failed: %s", e.Provider, e.Reason)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// NetworkError is a transient transport failure during a provider call.
type NetworkError struct {
	Provider  Provider
	Operation string
	Err       error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s network error during %s: %v", e.Provider, e.Operation, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// EmptyTorrentsError means the provider accepted the magnet but there is
// nothing selectable in it (cache miss, no files). The caller can offer
// deleting the stuck entry instead of retrying.
type EmptyTorrentsError struct {
	Provider  Provider
	TorrentID string
}

func (e *EmptyTorrentsError) Error() string {
	return fmt.Sprintf("%s torrent %s has no selectable files", e.Provider, e.TorrentID)
}

// InvalidInputError is a caller bug: the result lacks a usable magnet for a
// provider that needs one. Never retried.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s", e.Reason)
}

// ProviderError is an opaque upstream failure wrapped with provider and step
// context.
type ProviderError struct {
	Provider Provider
	Step     string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Step, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ErrCancelled marks an operator-initiated cancellation. It is never a
// failure: no cleanup runs and no error toast should be shown.
var ErrCancelled = errors.New("operation cancelled")

// IsCancelled reports whether err is a cancellation rather than a failure.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}

// UpstreamError classifies a failed provider call into the taxonomy:
// cancellations pass through untouched, 401/403 become AuthError, other HTTP
// failures become ProviderError, everything else is transport-level.
func UpstreamError(provider Provider, step string, err error) error {
	if err == nil {
		return nil
	}
	if IsCancelled(err) {
		return err
	}
	var he *request.HTTPError
	if errors.As(err, &he) {
		if he.StatusCode == http.StatusUnauthorized || he.StatusCode == http.StatusForbidden {
			return &AuthError{Provider: provider, Reason: "credential rejected", Err: err}
		}
		return &ProviderError{Provider: provider, Step: step, Err: err}
	}
	return &NetworkError{Provider: provider, Operation: step, Err: err}
}
