package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResultConstructors(t *testing.T) {
	ok := OK(7, CallShip, "Capsule")
	assert.True(t, ok.IsOK())
	assert.Equal(t, "Capsule", ok.Value)
	assert.NoError(t, ok.Err)

	timedOut := TimedOut[string](7, CallLocation, 8*time.Second)
	assert.False(t, timedOut.IsOK())
	assert.Equal(t, KindTimedOut, timedOut.Kind)
	assert.ErrorIs(t, timedOut.Err, ErrTimedOut)
	assert.EqualError(t, timedOut.Err, "location call for character 7 timed out after 8s")

	failed := Failed[string](7, CallOnline, errors.New("boom"))
	assert.Equal(t, KindFailed, failed.Kind)
	assert.Equal(t, "failed", failed.Kind.String())
	assert.Equal(t, int64(7), failed.CharacterID)
	assert.Equal(t, CallOnline, failed.Call)
}
