package batch

// FlushKind is the outcome of a trigger policy evaluation.
type FlushKind int

const (
	FlushNone FlushKind = iota
	// FlushTransition closes the previous roll's batch.
	FlushTransition
	// FlushPeriodic closes the current batch on a revolution threshold.
	FlushPeriodic
	// FlushDiscard drops a batch too small to describe a production segment.
	FlushDiscard
)

func (k FlushKind) String() string {
	switch k {
	case FlushTransition:
		return "transition"
	case FlushPeriodic:
		return "periodic"
	case FlushDiscard:
		return "discard"
	default:
		return "none"
	}
}

// MarshalText lets the kind appear by name in JSON reports.
func (k FlushKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// DefaultThreshold is the revolution modulus used for periodic flushes.
const DefaultThreshold = 100

// Policy decides when an accumulated batch is handed off.
type Policy struct {
	// Threshold triggers a periodic flush when latestSample%Threshold == 0.
	// Zero or negative disables periodic flushes.
	Threshold int64
	// MinTransitionSize is the batch size a transition must exceed to flush.
	MinTransitionSize int
	// MinPeriodicSize is the batch size a periodic flush must exceed.
	MinPeriodicSize int
}

// DefaultPolicy flushes on transition when more than one sample was collected
// and every DefaultThreshold revolutions.
func DefaultPolicy() Policy {
	return Policy{Threshold: DefaultThreshold, MinTransitionSize: 1, MinPeriodicSize: 1}
}

// ShouldFlush evaluates the rules in order: transition first, then periodic.
// On a transition batchSize is the size of the outgoing batch.
func (p Policy) ShouldFlush(transitioned bool, batchSize int, latestSample int64) FlushKind {
	if transitioned {
		if batchSize > p.MinTransitionSize {
			return FlushTransition
		}

		return FlushDiscard
	}

	if p.Threshold > 0 && latestSample%p.Threshold == 0 && batchSize > p.MinPeriodicSize {
		return FlushPeriodic
	}

	return FlushNone
}
