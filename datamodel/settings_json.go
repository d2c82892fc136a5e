package datamodel

// SettingsJSON is what was last asked of a piston. It is kept across restarts so an operator sees the
// previous setup and the regulator comes back to the last desired pressure.
type SettingsJSON struct {
	TimeOn  *float64 `json:"timeOn,omitempty"`
	TimeOff *float64 `json:"timeOff,omitempty"`
	// Cycles of the last start, or omitted if it ran until reset
	Cycles          *int     `json:"cycles,omitempty"`
	DesiredPressure *float64 `json:"desiredPressure,omitempty"`
}

// RecordStart copies the timing fields of a start request
func (s *SettingsJSON) RecordStart(req *RequestJSON) {
	s.TimeOn = req.TimeOn
	s.TimeOff = req.TimeOff
	s.Cycles = req.Cycles
}
