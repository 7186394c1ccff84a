package pipeline

// ChannelStatus is the read-only view of one channel for reporting.
type ChannelStatus struct {
	ID         int    `json:"id"`
	State      string `json:"state"`
	Calibrated bool   `json:"calibrated"`
	Tracking   bool   `json:"tracking"`

	// Terminal calibration error (capability unavailable), if any
	CalibrationError string `json:"calibration_error,omitempty"`
}

// Status aggregates every channel plus the combined calibration flag.
type Status struct {
	Channels   []ChannelStatus `json:"channels"`
	Calibrated bool            `json:"calibrated"`
}
