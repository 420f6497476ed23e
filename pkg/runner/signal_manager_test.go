package runner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignalManager_Lifecycle(t *testing.T) {
	sm := NewSignalManager()
	defer sm.Stop()

	// 1. Initial State
	ctx1 := sm.Context()
	assert.NotNil(t, ctx1)
	assert.NoError(t, ctx1.Err())

	// 2. Reset (should create new context)
	sm.Reset()
	ctx2 := sm.Context()
	assert.NotNil(t, ctx2)
	assert.NotEqual(t, ctx1, ctx2, "Reset should generate a new context")
	assert.NoError(t, ctx2.Err())

	// 3. Stop (should cancel context)
	sm.Stop()
	assert.ErrorIs(t, ctx2.Err(), context.Canceled)
}
