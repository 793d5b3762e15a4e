package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvalMode_Supported(t *testing.T) {
	testCases := []struct {
		mode      EvalMode
		supported bool
		name      string
	}{
		{EvalNone, true, "none"},
		{EvalInterp, true, "interp"},
		{EvalGrad, true, "grad"},
		{EvalWeight, true, "weight"},
		{EvalDiv, false, "div"},
		{EvalCurl, false, "curl"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.supported, tc.mode.Supported())
			assert.Equal(t, tc.name, tc.mode.String())
		})
	}
}

func TestRequest(t *testing.T) {
	t.Run("Immediate", func(t *testing.T) {
		var r *Request = RequestImmediate
		r.Complete(errors.New("ignored"))
		assert.True(t, r.Done())
		assert.NoError(t, r.Err())
	})

	t.Run("Tracked", func(t *testing.T) {
		r := NewRequest()
		assert.False(t, r.Done())
		want := fmt.Errorf("%w: boom", ErrCompute)
		r.Complete(want)
		assert.True(t, r.Done())
		assert.ErrorIs(t, r.Err(), ErrCompute)
	})
}
