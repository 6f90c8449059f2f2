// Package errs defines the sentinel errors shared by the registry, the shell
// and the video fetcher. Callers wrap them with fmt.Errorf("...: %w", err) and
// classify with errors.Is.
package errs

import (
	"errors"
)

var (
	// ErrInvalidModule indicates that the requested module name was not discovered.
	ErrInvalidModule = errors.New("invalid module name")
	// ErrNoEntryPoint indicates a discovered module without a registered entry point.
	ErrNoEntryPoint = errors.New("module has no entry point")
	// ErrMissingDependencies indicates that a module's declared requirements are not met.
	ErrMissingDependencies = errors.New("missing dependencies")
	// ErrMissingAPIKey indicates that the video platform API key is not configured.
	ErrMissingAPIKey = errors.New("api key not found")
	// ErrFolderRequired indicates an operation that needs a destination folder got none.
	ErrFolderRequired = errors.New("folder name not provided")

	// ErrDataUnavailable indicates that the platform returned no matching metadata.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrNoStream indicates that no stream matched the requested or fallback resolution.
	ErrNoStream = errors.New("no suitable video streams found")
	// ErrTransient marks a transfer failure that may succeed when retried.
	ErrTransient = errors.New("transient transfer error")

	// ErrVideoUnavailable indicates that the requested video cannot be accessed.
	ErrVideoUnavailable = errors.New("video unavailable")
	// ErrPrivate indicates that the video is private and cannot be downloaded.
	ErrPrivate = errors.New("video is private")
	// ErrAgeRestricted indicates that the video has an age restriction.
	ErrAgeRestricted = errors.New("age restricted")
	// ErrCipherFailed indicates failure during signature deciphering.
	ErrCipherFailed = errors.New("cipher failed")
	// ErrGeoBlocked indicates the video is not available in the current region.
	ErrGeoBlocked = errors.New("geo blocked")
	// ErrRateLimited indicates throttling or rate limiting by the remote service.
	ErrRateLimited = errors.New("rate limited")
)

// IsFatal reports whether err must terminate the process rather than
// being logged and skipped.
func IsFatal(err error) bool {
	return errors.Is(err, ErrMissingAPIKey) || errors.Is(err, ErrMissingDependencies)
}

// IsUserInput reports whether err was caused by invalid user input; the
// interactive flow reports it and restarts.
func IsUserInput(err error) bool {
	return errors.Is(err, ErrInvalidModule) || errors.Is(err, ErrFolderRequired)
}
