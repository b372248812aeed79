package neon

// ReservedEventIDFloor is the first event id of the range set aside for
// system use (32768 and up). Nothing in this module checks it: the HSM's
// own entry/exit/init/empty pseudo-signals are the internal/hsm.Signal
// values below hsm.SigUser, not ids in this range.
const ReservedEventIDFloor = 32768

// EventHeaderSize is the fixed prefix every event carries ahead of its
// payload, re-exported from internal/event for callers sizing CreateEvent
// requests.
const EventHeaderSize = 16

// DefaultEventQueueCapacity matches config.DefaultConfig's
// EventQueueCapacity. Spawn does not apply it: every EPA's queue capacity
// is the one passed to Spawn.
const DefaultEventQueueCapacity = 16

// DefaultRefLimit is the saturation ceiling for an event's reference count
// under the default configuration.
const DefaultRefLimit = 65535

// IdlePriority is the permanently-reserved priority level of the
// scheduler's idle thread; application EPAs must use a priority of 1 or
// higher.
const IdlePriority = 0
