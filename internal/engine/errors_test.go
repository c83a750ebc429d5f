package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDispatchError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *DispatchError
		want string
	}{
		{
			name: "selector and method",
			err:  &DispatchError{Code: ErrCodeReductionFailed, Message: "bad args", Selector: "#main", Method: "addClass"},
			want: "REDUCTION_FAILED: bad args (selector=#main, method=addClass)",
		},
		{
			name: "selector only",
			err:  &DispatchError{Code: ErrCodeMemberOutOfRange, Message: "no such member", Selector: ".child"},
			want: "MEMBER_OUT_OF_RANGE: no such member (selector=.child)",
		},
		{
			name: "cause as message",
			err:  &DispatchError{Code: ErrCodeNarrowingSpent, Err: ErrNarrowingSpent},
			want: "NARROWING_SPENT: narrowing already consumed by a dispatch",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestDispatchError_Predicates(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("wrapped: %w", &DispatchError{Code: ErrCodeReductionFailed, Err: cause})

	assert.True(t, IsReductionError(err))
	assert.False(t, IsNotInitialized(err))
	assert.False(t, IsNarrowingSpent(err))
	assert.False(t, IsMemberOutOfRange(err))
	assert.ErrorIs(t, err, cause)

	assert.False(t, IsReductionError(cause))
	assert.False(t, IsReductionError(nil))
}
