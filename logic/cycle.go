package logic

import (
	"fmt"
	"time"

	"github.com/gsarrafian/PneumaticsApp/util"
)

// Phase is the sub-state of a CycleController
type Phase int

const (
	// PhaseIdle means no run is configured
	PhaseIdle Phase = iota
	// PhaseOn means the output is held on for CycleConfig.TimeOn
	PhaseOn
	// PhaseOff means the output is held off for CycleConfig.TimeOff
	PhaseOff
	// PhasePaused means an On or Off phase was interrupted and can be resumed
	PhasePaused
	// PhaseCompleted means a bounded run finished all its cycles. It reports like Idle until reset
	PhaseCompleted
)

var phaseNames = [...]string{"Idle", "On", "Off", "Paused", "Completed"}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("Phase(%d)", int(p))
	}
	return phaseNames[p]
}

// Unbounded is the CycleConfig.MaxCycles value for a run that cycles until reset
const Unbounded = -1

// CycleConfig is the configuration of one run. It does not change while the run is active
type CycleConfig struct {
	// TimeOn is how long the output is on in each cycle. Must be positive
	TimeOn time.Duration
	// TimeOff is how long the output is off in each cycle. Zero means back-to-back on phases
	TimeOff time.Duration
	// MaxCycles is the number of cycles to run, or Unbounded
	MaxCycles int
}

// Validate checks c and returns a validation error describing the first bad field
func (c *CycleConfig) Validate() error {
	if c.TimeOn <= 0 {
		return util.NewValidationError("time_on", "time_on must be > 0, got %v", c.TimeOn)
	}
	if c.TimeOff < 0 {
		return util.NewValidationError("time_off", "time_off must be >= 0, got %v", c.TimeOff)
	}
	if c.MaxCycles != Unbounded && c.MaxCycles <= 0 {
		return util.NewValidationError("cycles", "cycles must be > 0, got %d", c.MaxCycles)
	}
	return nil
}

// Bounded is true if the run stops after MaxCycles
func (c *CycleConfig) Bounded() bool {
	return c.MaxCycles != Unbounded
}

func (c *CycleConfig) phaseDuration(p Phase) time.Duration {
	if p == PhaseOff {
		return c.TimeOff
	}
	return c.TimeOn
}

func (c *CycleConfig) String() string {
	cycles := "unbounded"
	if c.Bounded() {
		cycles = fmt.Sprint(c.MaxCycles)
	}
	return fmt.Sprintf("{on: %v, off: %v, cycles: %s}", c.TimeOn, c.TimeOff, cycles)
}

// Status is a consistent snapshot of a CycleController
type Status struct {
	Running      bool
	Paused       bool
	CurrentCycle int
	// TotalCycles is 0 for an unbounded run
	TotalCycles int
	Phase       Phase
	// LastError is the sink failure that aborted the last run, if any
	LastError error
}

// State is the display text of the status: Idle, Paused or Running
func (s Status) State() string {
	switch {
	case !s.Running:
		return "Idle"
	case s.Paused:
		return "Paused"
	default:
		return "Running"
	}
}

// Progress is "current/total" for bounded runs and empty otherwise
func (s Status) Progress() string {
	if s.TotalCycles <= 0 {
		return ""
	}
	return fmt.Sprintf("%d/%d", s.CurrentCycle, s.TotalCycles)
}

func (s Status) String() string {
	if p := s.Progress(); p != "" {
		return fmt.Sprintf("%s %s (%v)", s.State(), p, s.Phase)
	}
	return fmt.Sprintf("%s cycle %d (%v)", s.State(), s.CurrentCycle, s.Phase)
}
