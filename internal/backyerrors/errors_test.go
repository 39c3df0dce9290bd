package backyerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	err := NewExtractionFailed("views", errors.New("boom"))
	assert.Contains(t, err.Error(), "extraction_failed")
	assert.Contains(t, err.Error(), "views")
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, "boom", err.Unwrap().Error())
}

func TestErrorIs(t *testing.T) {
	err := NewCycleDetected(2)
	assert.True(t, errors.Is(err, &Error{Kind: KindCycleDetected}))
	assert.False(t, errors.Is(err, &Error{Kind: KindParseError}))
}

func TestRetryableClassification(t *testing.T) {
	assert.True(t, IsRetryable(NewConnectionFailed(nil)))
	assert.True(t, IsRetryable(NewStorageFailed(nil)))
	assert.False(t, IsRetryable(NewParseError("bad")))
	assert.True(t, IsPermanent(NewParseError("bad")))
	assert.False(t, IsPermanent(errors.New("not ours")))
}
