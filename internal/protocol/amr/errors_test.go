package amr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesKind(t *testing.T) {
	err := &Error{Kind: KindTimeout, Op: "read", Addr: "10.0.0.5:19204", APIID: 0x0514, Err: context.DeadlineExceeded}

	assert.ErrorIs(t, err, ErrTimeout)
	assert.NotErrorIs(t, err, ErrConnection)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "timeout during read (10.0.0.5:19204) api=0x0514")

	wrapped := fmt.Errorf("map list: %w", err)
	assert.ErrorIs(t, wrapped, ErrTimeout)
	assert.Equal(t, KindTimeout, KindOf(wrapped))
}

func TestKindOf_PlainError(t *testing.T) {
	assert.Equal(t, ErrorKind(0), KindOf(io.EOF))
	assert.Equal(t, ErrorKind(0), KindOf(nil))
	assert.Equal(t, "unknown", ErrorKind(0).String())
}

func TestIsFatalForStream(t *testing.T) {
	assert.False(t, IsFatalForStream(nil))
	assert.False(t, IsFatalForStream(ErrNeedMoreData))
	assert.False(t, IsFatalForStream(&Error{Kind: KindMalformedBody}))
	assert.True(t, IsFatalForStream(&Error{Kind: KindCorruptHeader}))
	assert.True(t, IsFatalForStream(&Error{Kind: KindConnection, Err: errors.New("reset")}))
	assert.True(t, IsFatalForStream(io.ErrUnexpectedEOF))
}
