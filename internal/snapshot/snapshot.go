package snapshot

// Roll is the active production roll as read on a single poll.
type Roll struct {
	RollID     int64  `json:"roll_id"`
	RollNumber string `json:"roll_number"`
	RollName   string `json:"roll_name"`
	Revolution int64  `json:"revolution"`
}

// Camera is the active camera as read on a single poll.
type Camera struct {
	Name string `json:"cam_name"`
}

// HasChanged reports whether current differs from previous in any field.
// A nil snapshot differs from any non-nil one; two nils are equal.
func HasChanged(previous, current *Roll) bool {
	if previous == nil || current == nil {
		return previous != current
	}

	return *previous != *current
}
