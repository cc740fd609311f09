package engine

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/tether/internal/physics"
)

func TestRuntimeError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  *RuntimeError
		want string
	}{
		{
			"with connection",
			NewUnknownSessionError(EventPick, "conn-9"),
			"UNKNOWN_SESSION: no session for connection (event=pick, connection=conn-9)",
		},
		{
			"event only",
			NewPanicError(EventClearCollision, "", "boom"),
			"HANDLER_PANIC: handler panicked: boom (event=clearCollision)",
		},
		{
			"non-finite point",
			NewInvalidPointError(EventSpawn, "conn-2", physics.Vec{X: math.NaN(), Y: math.Inf(1)}),
			"INVALID_EVENT: point is not finite (event=spawnAt, connection=conn-2)",
		},
		{
			"bare",
			NewStoppedError(),
			"STOPPED: engine stopped",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestRuntimeError_Predicates(t *testing.T) {
	wrapped := fmt.Errorf("apply: %w", NewUnknownSessionError(EventRelease, "c"))

	assert.True(t, IsUnknownSession(wrapped))
	assert.False(t, IsStopped(wrapped))
	assert.True(t, IsStopped(NewStoppedError()))
	assert.True(t, IsHandlerPanic(NewPanicError(EventSpawn, "", 1)))
	assert.True(t, IsInvalidEvent(NewInvalidPointError(EventCursorMove, "c", physics.Vec{X: math.NaN()})))
	assert.False(t, IsInvalidEvent(wrapped))
	assert.False(t, IsUnknownSession(errors.New("plain")))
	assert.False(t, IsUnknownSession(nil))
}
