package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualScheduler_FiresOnlyWhenDue(t *testing.T) {
	s := NewManualScheduler()
	fired := 0
	s.AfterFunc(200*time.Millisecond, func() { fired++ })

	assert.Equal(t, 0, s.Advance(199*time.Millisecond))
	assert.Equal(t, 0, fired)
	assert.Equal(t, 1, s.Pending())

	assert.Equal(t, 1, s.Advance(time.Millisecond))
	assert.Equal(t, 1, fired)
	assert.Equal(t, 0, s.Pending())
	assert.Equal(t, 200*time.Millisecond, s.Now())
}

func TestManualScheduler_Order(t *testing.T) {
	s := NewManualScheduler()
	var order []string
	s.AfterFunc(30*time.Millisecond, func() { order = append(order, "late") })
	s.AfterFunc(10*time.Millisecond, func() { order = append(order, "early") })
	s.AfterFunc(10*time.Millisecond, func() { order = append(order, "early-2") })

	s.Advance(time.Second)

	assert.Equal(t, []string{"early", "early-2", "late"}, order)
}

func TestManualScheduler_Stop(t *testing.T) {
	s := NewManualScheduler()
	fired := false
	timer := s.AfterFunc(10*time.Millisecond, func() { fired = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())
	assert.Equal(t, 0, s.Advance(time.Second))
	assert.False(t, fired)
}

func TestManualScheduler_StopAfterFire(t *testing.T) {
	s := NewManualScheduler()
	timer := s.AfterFunc(10*time.Millisecond, func() {})

	s.Advance(10 * time.Millisecond)

	assert.False(t, timer.Stop())
}
