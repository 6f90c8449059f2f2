package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

var all = []error{
	ErrInvalidModule, ErrNoEntryPoint, ErrMissingDependencies, ErrMissingAPIKey,
	ErrFolderRequired, ErrDataUnavailable, ErrNoStream, ErrTransient,
	ErrVideoUnavailable, ErrPrivate, ErrAgeRestricted, ErrCipherFailed,
	ErrGeoBlocked, ErrRateLimited,
}

func TestMessages(t *testing.T) {
	assert.EqualError(t, ErrInvalidModule, "invalid module name")
	assert.EqualError(t, ErrFolderRequired, "folder name not provided")
	assert.EqualError(t, ErrNoStream, "no suitable video streams found")
	assert.EqualError(t, fmt.Errorf("video abc: %w", ErrDataUnavailable), "video abc: data unavailable")
}

func TestSentinelsDistinct(t *testing.T) {
	for i, a := range all {
		for j, b := range all {
			if i != j {
				assert.False(t, errors.Is(a, b), "%v matches %v", a, b)
			}
		}
	}
}

func TestClassification(t *testing.T) {
	fatal := map[error]bool{ErrMissingAPIKey: true, ErrMissingDependencies: true}
	input := map[error]bool{ErrInvalidModule: true, ErrFolderRequired: true}
	for _, e := range all {
		wrapped := fmt.Errorf("step: %w", e)
		assert.Equal(t, fatal[e], IsFatal(wrapped), "IsFatal(%v)", e)
		assert.Equal(t, input[e], IsUserInput(wrapped), "IsUserInput(%v)", e)
	}
	assert.False(t, IsFatal(nil))
}
