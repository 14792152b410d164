package sim

import "errors"

// Sentinel errors surfaced by the simulation kernel. Callers wrap them with
// context via fmt.Errorf("...: %w", ...) and test them with errors.Is.
var (
	// ErrCausalityViolation reports an event scheduled before the current clock.
	// Fatal: it indicates a modeling defect and aborts the run.
	ErrCausalityViolation = errors.New("causality violation")

	// ErrBufferOverflow reports a message that cannot be admitted even after
	// eviction. Recoverable: the message is rejected and the sender retries
	// at its next contact opportunity.
	ErrBufferOverflow = errors.New("buffer overflow")

	// ErrProtocolState reports routing state outside its defined bounds
	// (negative spray count, predictability outside [0,1], mismatched peer engine).
	// Never clamped; aborts the run.
	ErrProtocolState = errors.New("protocol state inconsistency")

	// ErrInvalidConfig reports a scenario rejected at load time.
	ErrInvalidConfig = errors.New("invalid configuration")
)
