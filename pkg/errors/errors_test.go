package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapPreservesStack(t *testing.T) {
	inner := New(ErrorTypeData, "inner")
	outer := Wrap(inner, ErrorTypeSink, "outer")

	assert.Equal(t, inner.Stack, outer.Stack)
	assert.True(t, IsType(outer, ErrorTypeSink))
	assert.False(t, IsType(outer, ErrorTypeData))
	assert.True(t, HasType(outer, ErrorTypeData))
	assert.Nil(t, Wrap(nil, ErrorTypeSink, "nothing"))
}

func TestTypeOfUnclassified(t *testing.T) {
	assert.Equal(t, ErrorTypeInternal, TypeOf(stderrors.New("x")))
	assert.Equal(t, ErrorTypeConfig, TypeOf(Newf(ErrorTypeConfig, "column %q", "a")))
}

func TestDetailFollowsCauses(t *testing.T) {
	inner := New(ErrorTypeRateLimit, "429").WithDetail(DetailRetryAfter, 7)
	err := fmt.Errorf("page 3: %w", Wrap(inner, ErrorTypeRetryExhausted, "gave up"))

	v, ok := Detail(err, DetailRetryAfter)
	assert.True(t, ok)
	assert.Equal(t, 7, v)

	_, ok = Detail(err, "status")
	assert.False(t, ok)
	_, ok = Detail(stderrors.New("plain"), DetailRetryAfter)
	assert.False(t, ok)
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("reset")
	err := Wrap(cause, ErrorTypeConnection, "request failed")
	assert.Equal(t, cause, Unwrap(err))
	assert.Nil(t, Unwrap(cause))
}
