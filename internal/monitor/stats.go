package monitor

// Stats are point-in-time counters of the poll loop.
type Stats struct {
	State           State  `json:"state"`
	Cycles          uint64 `json:"cycles"`
	ReadFailures    uint64 `json:"read_failures"`
	Unchanged       uint64 `json:"unchanged"`
	TransitionFlush uint64 `json:"transition_flushes"`
	PeriodicFlush   uint64 `json:"periodic_flushes"`
	Discarded       uint64 `json:"discarded"`
	Rejected        uint64 `json:"rejected"`
	RollID          int64  `json:"roll_id"`
	LastRevolution  int64  `json:"last_revolution"`
	BatchSize       int64  `json:"batch_size"`
}

// Stats is safe to call from any goroutine.
func (m *Monitor) Stats() Stats {
	return Stats{
		State:           m.State(),
		Cycles:          m.cycles.Load(),
		ReadFailures:    m.readFailures.Load(),
		Unchanged:       m.unchanged.Load(),
		TransitionFlush: m.transitions.Load(),
		PeriodicFlush:   m.periodic.Load(),
		Discarded:       m.discarded.Load(),
		Rejected:        m.rejected.Load(),
		RollID:          m.rollID.Load(),
		LastRevolution:  m.lastRevolution.Load(),
		BatchSize:       m.batchSize.Load(),
	}
}
