package timerwheel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOneShotFiresExactlyOnceAtTick(t *testing.T) {
	w := New()
	timer := NewTimer()
	fires := 0
	w.StartI(timer, 5, func(arg interface{}) { fires++ }, nil, OneShot)

	for i := 0; i < 4; i++ {
		w.TickISR()
	}
	assert.Equal(t, 0, fires, "must not fire before tick 5")
	assert.Equal(t, uint32(2), w.RemainingI(timer))

	w.TickISR()
	assert.Equal(t, 1, fires)
	assert.False(t, w.IsRunningI(timer))

	w.TickISR()
	assert.Equal(t, 1, fires, "one-shot does not refire")
}

func TestRepeatingTimerReArmsBeforeCallback(t *testing.T) {
	w := New()
	timer := NewTimer()
	var fires []uint32
	var tick uint32
	w.StartI(timer, 3, func(arg interface{}) {
		fires = append(fires, tick)
		assert.True(t, w.IsRunningI(timer), "must be re-armed before callback runs")
	}, nil, Repeat)

	for i := uint32(1); i <= 9; i++ {
		tick = i
		w.TickISR()
	}
	require.Len(t, fires, 3)
	assert.Equal(t, []uint32{3, 6, 9}, fires)
}

func TestCallbackCanCancelItself(t *testing.T) {
	w := New()
	timer := NewTimer()
	fires := 0
	w.StartI(timer, 2, func(arg interface{}) {
		fires++
		w.CancelI(timer)
	}, nil, Repeat)

	for i := 0; i < 10; i++ {
		w.TickISR()
	}
	assert.Equal(t, 1, fires)
	assert.False(t, w.IsRunningI(timer))
}

func TestCancelRedistributesRemainingTicks(t *testing.T) {
	w := New()
	a, b := NewTimer(), NewTimer()
	var order []string
	w.StartI(a, 3, func(arg interface{}) { order = append(order, "a") }, nil, OneShot)
	w.StartI(b, 5, func(arg interface{}) { order = append(order, "b") }, nil, OneShot)

	w.CancelI(a)
	for i := 0; i < 5; i++ {
		w.TickISR()
	}
	assert.Equal(t, []string{"b"}, order)
}

func TestFIFOOrderingAmongIdenticalExpiry(t *testing.T) {
	w := New()
	a, b := NewTimer(), NewTimer()
	var order []string
	w.StartI(a, 4, func(arg interface{}) { order = append(order, "a") }, nil, OneShot)
	w.StartI(b, 4, func(arg interface{}) { order = append(order, "b") }, nil, OneShot)

	for i := 0; i < 4; i++ {
		w.TickISR()
	}
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestTickConversionHelpers(t *testing.T) {
	assert.Equal(t, uint32(100), Seconds(time.Second, 100))
	assert.Equal(t, uint32(10), Millis(100*time.Millisecond, 100))
	assert.Equal(t, uint32(1), Micros(10*time.Microsecond, 100))
}
