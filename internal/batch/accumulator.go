package batch

// Accumulator holds the ordered doff samples of the roll currently being tracked.
// It is not safe for concurrent use; the poll loop owns it.
type Accumulator struct {
	rollID  int64
	samples []int64
}

// NewAccumulator returns an empty accumulator bound to rollID.
func NewAccumulator(rollID int64) *Accumulator {
	return &Accumulator{rollID: rollID, samples: make([]int64, 0, 128)}
}

// RollID returns the roll the current samples belong to.
func (a *Accumulator) RollID() int64 { return a.rollID }

// Append adds one sample to the end of the batch.
func (a *Accumulator) Append(sample int64) { a.samples = append(a.samples, sample) }

// Size returns the number of samples held.
func (a *Accumulator) Size() int { return len(a.samples) }

// Last returns the most recent sample and false when the batch is empty.
func (a *Accumulator) Last() (int64, bool) {
	if len(a.samples) == 0 {
		return 0, false
	}

	return a.samples[len(a.samples)-1], true
}

// Snapshot returns a copy of the samples.
func (a *Accumulator) Snapshot() []int64 {
	out := make([]int64, len(a.samples))
	copy(out, a.samples)

	return out
}

// Reset empties the batch and binds it to rollID.
// The backing array is replaced, never truncated, so slices returned earlier stay intact.
func (a *Accumulator) Reset(rollID int64) {
	a.rollID = rollID
	a.samples = make([]int64, 0, 128)
}

// Take returns a copy of the samples and empties the batch, keeping the roll.
func (a *Accumulator) Take() []int64 {
	out := a.Snapshot()
	a.Reset(a.rollID)

	return out
}
