package hsm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test hierarchy:
//
//	top
//	 S1 (init -> S11)
//	  S11 (init -> S111)
//	   S111
//	 S2

func parentOf(name string) State {
	switch name {
	case "S1", "S2":
		return TopState
	case "S11":
		return s1
	case "S111":
		return s11
	}
	panic("unknown state " + name)
}

var trace []string

func handler(name string) Handler {
	return func(wspace interface{}, ev Event) Action {
		switch ev.Signal {
		case SigEmpty:
			return actSuper(parentOf(name))
		case SigEntry:
			trace = append(trace, "entry:"+name)
			return actHandled()
		case SigExit:
			trace = append(trace, "exit:"+name)
			return actHandled()
		case SigInit:
			switch name {
			case "S1":
				return actTransit(s11)
			case "S11":
				return actTransit(s111)
			default:
				return actHandled()
			}
		case SigUser:
			if name == "S2" {
				return actTransit(s1)
			}
			return actSuper(parentOf(name))
		}
		return actIgnored()
	}
}

var (
	s1   = State{Name: "S1", Handle: handler("S1")}
	s11  = State{Name: "S11", Handle: handler("S11")}
	s111 = State{Name: "S111", Handle: handler("S111")}
	s2   = State{Name: "S2", Handle: handler("S2")}
)

func TestInitCascade(t *testing.T) {
	trace = nil
	m := New(nil, s1)
	m.InitialTransition(s1)

	require.Equal(t, "S111", m.Current.Name)
	assert.Equal(t, []string{"entry:S1", "entry:S11", "entry:S111"}, trace)
}

func TestTransitionFromUnrelatedStateThroughLCA(t *testing.T) {
	trace = nil
	m := New(nil, s2)

	deferred := m.Dispatch(Event{Signal: SigUser})
	require.False(t, deferred)
	assert.Equal(t, "S111", m.Current.Name)
	assert.Equal(t, []string{"exit:S2", "entry:S1", "entry:S11", "entry:S111"}, trace)
}

func TestDeferredActionRequestsRequeue(t *testing.T) {
	deferring := State{Name: "Deferring", Handle: func(interface{}, Event) Action {
		return actDeferred()
	}}
	m := New(nil, deferring)
	assert.True(t, m.Dispatch(Event{Signal: SigUser}))
	assert.Equal(t, "Deferring", m.Current.Name, "deferred dispatch does not change current state")
}

func TestSuperIsTreatedLikeIgnoredWhenTopStateIsReached(t *testing.T) {
	m := New(nil, s2)
	deferred := m.Dispatch(Event{Signal: SigEmpty})
	assert.False(t, deferred)
	assert.Equal(t, "S2", m.Current.Name, "SigEmpty Supers up to top, which Ignores")
}

func TestSelfTransitionExitsEntersAndInits(t *testing.T) {
	trace = nil
	var self State
	self = State{Name: "Self", Handle: func(_ interface{}, ev Event) Action {
		switch ev.Signal {
		case SigEmpty:
			return actSuper(TopState)
		case SigEntry:
			trace = append(trace, "entry:Self")
			return actHandled()
		case SigExit:
			trace = append(trace, "exit:Self")
			return actHandled()
		case SigInit:
			trace = append(trace, "init:Self")
			return actHandled()
		case SigUser:
			return actTransit(self)
		}
		return actIgnored()
	}}

	m := New(nil, self)
	deferred := m.Dispatch(Event{Signal: SigUser})
	require.False(t, deferred)
	assert.Equal(t, "Self", m.Current.Name)
	assert.Equal(t, []string{"exit:Self", "entry:Self", "init:Self"}, trace,
		"source==target transition must exit, re-enter, then Init per standard UML semantics")
}

func TestFSMSuperIsTreatedLikeIgnored(t *testing.T) {
	flat := State{Name: "Flat", Handle: func(_ interface{}, ev Event) Action {
		if ev.Signal == SigUser {
			return actSuper(TopState)
		}
		return actHandled()
	}}
	m := NewFSM(nil, flat)
	deferred := m.Dispatch(Event{Signal: SigUser})
	assert.False(t, deferred)
	assert.Equal(t, "Flat", m.Current.Name, "FSM dispatch treats Super like Ignored, no chain walk")
}

func TestFSMTransitSynthesizesExitEntryInit(t *testing.T) {
	trace = nil
	var a, b State
	a = State{Name: "A", Handle: func(_ interface{}, ev Event) Action {
		switch ev.Signal {
		case SigEntry:
			trace = append(trace, "entry:A")
			return actHandled()
		case SigExit:
			trace = append(trace, "exit:A")
			return actHandled()
		case SigUser:
			return actTransit(b)
		}
		return actHandled()
	}}
	b = State{Name: "B", Handle: func(_ interface{}, ev Event) Action {
		switch ev.Signal {
		case SigEntry:
			trace = append(trace, "entry:B")
			return actHandled()
		case SigExit:
			trace = append(trace, "exit:B")
			return actHandled()
		case SigInit:
			trace = append(trace, "init:B")
			return actHandled()
		}
		return actHandled()
	}}

	m := NewFSM(nil, a)
	deferred := m.Dispatch(Event{Signal: SigUser})
	require.False(t, deferred)
	assert.Equal(t, "B", m.Current.Name)
	assert.Equal(t, []string{"exit:A", "entry:B", "init:B"}, trace)
}

func TestFSMDeferredRequestsRequeue(t *testing.T) {
	deferring := State{Name: "FSMDeferring", Handle: func(interface{}, Event) Action {
		return actDeferred()
	}}
	m := NewFSM(nil, deferring)
	assert.True(t, m.Dispatch(Event{Signal: SigUser}))
	assert.Equal(t, "FSMDeferring", m.Current.Name, "deferred dispatch does not change current state")
}

func TestFSMInitialTransitionFollowsInit(t *testing.T) {
	trace = nil
	var start, next State
	start = State{Name: "Start", Handle: func(_ interface{}, ev Event) Action {
		switch ev.Signal {
		case SigEntry:
			trace = append(trace, "entry:Start")
			return actHandled()
		case SigExit:
			trace = append(trace, "exit:Start")
			return actHandled()
		case SigInit:
			return actTransit(next)
		}
		return actHandled()
	}}
	next = State{Name: "Next", Handle: func(_ interface{}, ev Event) Action {
		switch ev.Signal {
		case SigEntry:
			trace = append(trace, "entry:Next")
			return actHandled()
		case SigInit:
			trace = append(trace, "init:Next")
			return actHandled()
		}
		return actHandled()
	}}

	m := NewFSM(nil, start)
	m.InitialTransition(start)
	require.Equal(t, "Next", m.Current.Name)
	assert.Equal(t, []string{"entry:Start", "exit:Start", "entry:Next", "init:Next"}, trace)
}
