package domain

// ControlKind tags the variant of a ControlMessage, the generic
// out-of-band directive every long-lived actor accepts on its control
// channel alongside its normal request traffic (spec §9's typed message
// union: pause/resume, credential rotation, and round telemetry are all
// shaped the same way so one actor loop can select across them).
type ControlKind string

const (
	// ControlPause tells an actor to stop issuing new outbound work
	// (new Gate calls, new rounds) until a matching ControlResume. The
	// Maker skips its rounds while paused; the Gate answers it with an
	// error.
	ControlPause ControlKind = "pause"

	// ControlResume undoes a ControlPause.
	ControlResume ControlKind = "resume"

	// ControlSetKeySlot hot-swaps which credential slot the Gate signs
	// requests with, without restarting the actor.
	ControlSetKeySlot ControlKind = "set_key_slot"

	// ControlStream asks an actor to push its current RoundSnapshot (or
	// equivalent) onto Snapshot once, for observability.
	ControlStream ControlKind = "stream"
)

// ControlMessage is sent on an actor's control channel. Reply, if
// non-nil, is answered once the actor has handled the directive: the
// Gate sends its result (nil on success) on it, the Maker closes it.
type ControlMessage struct {
	Kind     ControlKind
	KeySlot  int
	Snapshot chan RoundSnapshot
	Reply    chan error
}
