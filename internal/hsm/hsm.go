// Package hsm implements both dispatch variants spec.md §4.F names: a
// hierarchical dispatcher (LCA-based transition execution with
// entry/exit/init pseudo-events), built via New, and a flat FSM dispatcher,
// built via NewFSM, which has no hierarchy and treats a Super result like
// Ignored. The flat variant is grounded on the original source's surviving
// `smp` dispatcher; the HSM LCA walk has no direct original-source analog
// and follows spec.md §4.F's own description, in the teacher's idiom of a
// tagged action value returned from a dispatch function rather than a
// side-effecting callback.
package hsm

import "fmt"

// Signal identifies the pseudo-events the dispatcher synthesizes, plus the
// application's own event IDs (any value below SigUser is reserved).
type Signal uint16

const (
	SigEmpty Signal = iota
	SigEntry
	SigExit
	SigInit
	SigUser // application signals start here
)

// ActionKind selects which variant of Action a state handler returned.
type ActionKind uint8

const (
	Ignored ActionKind = iota
	Handled
	Deferred
	Super
	TransitTo
)

// Action is the tagged sum type a State returns: Kind selects the variant,
// Target carries the parent state (Super) or destination state
// (TransitTo); it is the zero State for Ignored/Handled/Deferred.
type Action struct {
	Kind   ActionKind
	Target State
}

func actIgnored() Action       { return Action{Kind: Ignored} }
func actHandled() Action       { return Action{Kind: Handled} }
func actDeferred() Action      { return Action{Kind: Deferred} }
func actSuper(s State) Action  { return Action{Kind: Super, Target: s} }
func actTransit(s State) Action { return Action{Kind: TransitTo, Target: s} }

// Event is what a state handler receives: a signal plus an opaque payload.
type Event struct {
	Signal  Signal
	Payload interface{}
}

// Handler is the signature every application state function implements.
type Handler func(wspace interface{}, ev Event) Action

// State names a handler so traces and the top-state sentinel can be
// identified; two states are "the same" iff their Names match.
type State struct {
	Name    string
	Handle  Handler
}

func (s State) String() string { return s.Name }

// TopState accepts any event with Ignored and is the root of every
// hierarchy; every application state must eventually Super to it (directly
// or transitively) or be an orphan the LCA walk can't terminate from.
var TopState = State{Name: "top", Handle: func(interface{}, Event) Action { return actIgnored() }}

// maxPathDepth bounds the exit/entry chain walked during a transition,
// spec.md §4.F's HSM_PATH_DEPTH. Exceeding it is a fatal assertion, not a
// silently-truncated path, since a truncated path would corrupt the state
// machine's invariants.
const maxPathDepth = 32

// Variant selects which of the two dispatch algorithms spec.md §4.F
// describes a Machine runs: hierarchical (walking Super chains and LCAs)
// or flat (dispatching only to Current, with Super treated as Ignored).
type Variant uint8

const (
	VariantHSM Variant = iota // zero value, so New's machines are HSM by default
	VariantFSM
)

// Machine runs the HSM or FSM dispatch algorithm, per variant, over one
// application-owned workspace. Current tracks the machine's active (deepest
// entered, for HSM) state.
type Machine struct {
	Current State
	Wspace  interface{}
	variant Variant
}

// New returns a hierarchical-dispatch machine seated at initial (already
// Entry'd by the caller, per the original's convention that construction
// doesn't itself dispatch Entry/Init — callers typically call
// InitialTransition once after construction to run the init cascade).
func New(wspace interface{}, initial State) *Machine {
	return &Machine{Current: initial, Wspace: wspace, variant: VariantHSM}
}

// NewFSM returns a flat-dispatch machine: vf_dispatch's FSM variant, grounded
// on the original source's surviving `smp`. There is no hierarchy to walk,
// so a state only ever needs to answer the signals it cares about; it need
// not answer SigEmpty with Super(parent).
func NewFSM(wspace interface{}, initial State) *Machine {
	return &Machine{Current: initial, Wspace: wspace, variant: VariantFSM}
}

// InitialTransition runs the entry/init cascade into initial without first
// exiting anything, used once right after construction.
func (m *Machine) InitialTransition(initial State) {
	m.Current = initial
	m.deliver(initial, Event{Signal: SigEntry})
	if m.variant == VariantFSM {
		m.runInitCascadeFSM()
		return
	}
	m.runInitCascade(initial)
}

func (m *Machine) deliver(s State, ev Event) Action {
	return s.Handle(m.Wspace, ev)
}

// findHandlerState walks Super chains starting at from, delivering ev at
// each level, and returns the first state whose handler did not return
// Super, along with that handler's action. It also returns the full chain
// walked (from innermost to outermost) for transition bookkeeping.
func (m *Machine) findHandlerState(from State, ev Event) (State, Action, []State) {
	chain := make([]State, 0, maxPathDepth)
	cur := from
	for {
		chain = append(chain, cur)
		if len(chain) > maxPathDepth {
			panic(fmt.Sprintf("hsm: Super chain from %q exceeds max path depth", from.Name))
		}
		act := m.deliver(cur, ev)
		if act.Kind != Super {
			return cur, act, chain
		}
		cur = act.Target
	}
}

// Dispatch delivers ev to the machine's current state. In HSM mode it
// follows Super chains and executes a full LCA-based transition if the
// resolved action is TransitTo; in FSM mode it dispatches flat. It returns
// true if the dispatcher wants the event re-queued (Deferred) rather than
// considered consumed.
func (m *Machine) Dispatch(ev Event) (deferred bool) {
	if m.variant == VariantFSM {
		return m.dispatchFSM(ev)
	}

	_, act, sourceChain := m.findHandlerState(m.Current, ev)

	switch act.Kind {
	case Handled, Ignored:
		return false
	case Deferred:
		return true
	case TransitTo:
		m.transit(sourceChain, act.Target)
		return false
	default:
		panic(fmt.Sprintf("hsm: state %q returned an unexpected action kind %d", m.Current.Name, act.Kind))
	}
}

// dispatchFSM delivers ev straight to m.Current with no Super-chain walk:
// a Super result is treated exactly like Ignored, since a flat machine has
// no parent to hand the event up to.
func (m *Machine) dispatchFSM(ev Event) (deferred bool) {
	act := m.deliver(m.Current, ev)

	switch act.Kind {
	case Handled, Ignored, Super:
		return false
	case Deferred:
		return true
	case TransitTo:
		m.transitFSM(act.Target)
		return false
	default:
		panic(fmt.Sprintf("hsm: state %q returned an unexpected action kind %d", m.Current.Name, act.Kind))
	}
}

// transitFSM synthesizes Exit(Current)/Entry(target), since flat states are
// siblings rather than ancestors, then runs target's init cascade.
func (m *Machine) transitFSM(target State) {
	m.deliver(m.Current, Event{Signal: SigExit})
	m.deliver(target, Event{Signal: SigEntry})
	m.Current = target
	m.runInitCascadeFSM()
}

// runInitCascadeFSM repeatedly delivers Init to m.Current, synthesizing an
// Exit/Entry pair around each TransitTo result (flat states have no shared
// ancestor to enter through), until Init stops requesting a transition.
func (m *Machine) runInitCascadeFSM() {
	for {
		act := m.deliver(m.Current, Event{Signal: SigInit})
		if act.Kind != TransitTo {
			return
		}
		m.deliver(m.Current, Event{Signal: SigExit})
		m.deliver(act.Target, Event{Signal: SigEntry})
		m.Current = act.Target
	}
}

// targetPath returns the chain from target up to (and including) TopState,
// outermost last, used to find the LCA against the source chain.
func (m *Machine) targetPath(target State) []State {
	path := make([]State, 0, maxPathDepth)
	cur := target
	for {
		path = append(path, cur)
		if len(path) > maxPathDepth {
			panic(fmt.Sprintf("hsm: target path from %q exceeds max path depth", target.Name))
		}
		if cur.Name == TopState.Name {
			return path
		}
		act := m.deliver(cur, Event{Signal: SigEmpty})
		// SigEmpty is never handled by application code; states must
		// answer it with Super(parent) to declare their parent, purely
		// for path discovery.
		if act.Kind != Super {
			panic(fmt.Sprintf("hsm: state %q must answer SigEmpty with Super(parent) to declare its parent", cur.Name))
		}
		cur = act.Target
	}
}

func sameState(a, b State) bool {
	return a.Name == b.Name
}

// transit performs the LCA walk: exit from sourceChain's innermost state
// up to (not including) the LCA, then entry from the LCA down to target,
// then runs target's init cascade. A source==target self-transition is a
// special case of the LCA search: the naive search would resolve the LCA
// to target itself, exiting and entering nothing (only Init would fire).
// Standard UML semantics require a self-transition to still exit the state
// and re-enter it before Init, so the LCA is forced to target's parent
// instead.
func (m *Machine) transit(sourceChain []State, target State) {
	targetPath := m.targetPath(target)

	var lcaIdx int
	if sameState(m.Current, target) {
		if len(targetPath) > 1 {
			lcaIdx = 1 // target's parent
		} else {
			lcaIdx = 0 // target is TopState: nothing above it to exit/enter through
		}
	} else {
		lcaIdx = -1
	search:
		for i := len(sourceChain) - 1; i >= 0; i-- {
			for j := 0; j < len(targetPath); j++ {
				if sameState(sourceChain[i], targetPath[j]) {
					lcaIdx = j // index within targetPath of the LCA
					break search
				}
			}
		}
		if lcaIdx < 0 {
			lcaIdx = len(targetPath) - 1 // fall back to TopState
		}
	}

	// exit child-first from m.Current up to (not including) the LCA
	exitChain := m.exitChainFromCurrentTo(targetPath[lcaIdx])
	for _, s := range exitChain {
		m.deliver(s, Event{Signal: SigExit})
	}

	// entry parent-first from just inside the LCA down to target
	for i := lcaIdx - 1; i >= 0; i-- {
		m.deliver(targetPath[i], Event{Signal: SigEntry})
	}

	m.Current = target
	m.runInitCascade(target)
}

// exitChainFromCurrentTo walks parents from m.Current (inclusive) stopping
// before lca, recording each state along the way; this is the exit path
// spec.md §4.F(3c) describes as child-first.
func (m *Machine) exitChainFromCurrentTo(lca State) []State {
	chain := make([]State, 0, maxPathDepth)
	cur := m.Current
	for !sameState(cur, lca) {
		chain = append(chain, cur)
		if len(chain) > maxPathDepth {
			panic(fmt.Sprintf("hsm: exit chain from %q exceeds max path depth", m.Current.Name))
		}
		act := m.deliver(cur, Event{Signal: SigEmpty})
		if act.Kind != Super {
			panic(fmt.Sprintf("hsm: state %q must answer SigEmpty with Super(parent) to declare its parent", cur.Name))
		}
		cur = act.Target
	}
	return chain
}

// runInitCascade repeatedly delivers Init to the current state, following
// TransitTo results with Entry on the traversed path, until Init stops
// requesting a transition.
func (m *Machine) runInitCascade(target State) {
	cur := target
	for {
		act := m.deliver(cur, Event{Signal: SigInit})
		if act.Kind != TransitTo {
			m.Current = cur
			return
		}
		// enter parent-first every state between cur (exclusive) and the
		// Init target (inclusive)
		path := m.targetPath(act.Target)
		i := 1
		for i < len(path) && !sameState(path[i], cur) {
			i++
		}
		if i == len(path) {
			i = 1 // cur is not an ancestor of the target: enter the target only
		}
		for j := i - 1; j >= 0; j-- {
			m.deliver(path[j], Event{Signal: SigEntry})
		}
		cur = act.Target
	}
}
