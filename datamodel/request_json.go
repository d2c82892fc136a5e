package datamodel

import (
	"encoding/json"
	"math"
	"time"

	"github.com/gsarrafian/PneumaticsApp/logic"
	"github.com/gsarrafian/PneumaticsApp/util"
)

// maxSeconds is the longest dwell time that fits in a time.Duration
var maxSeconds = float64(math.MaxInt64 / int64(time.Second))

// RequestJSON is a command sent to the gateway. Times are in (possibly fractional) seconds
type RequestJSON struct {
	// Rid identifies the request so the response can be matched to it
	Rid      int    `json:"rid"`
	Type     string `json:"type"`
	PistonID string `json:"pistonId"`

	TimeOn  *float64 `json:"timeOn,omitempty"`
	TimeOff *float64 `json:"timeOff,omitempty"`
	// Cycles is the number of cycles to run. Omitted means run until reset
	Cycles *int `json:"cycles,omitempty"`
	// DesiredPressure in PSI
	DesiredPressure *float64 `json:"desiredPressure,omitempty"`
}

// ParseRequest parses a RequestJSON from data
func ParseRequest(data []byte) (req RequestJSON, err error) {
	if err = json.Unmarshal(data, &req); err != nil {
		err = util.NewParseError("request", err)
	}
	return
}

func secondsToDuration(seconds *float64, name string) (time.Duration, error) {
	if seconds == nil {
		return 0, util.NewValidationError(name, "%s not specified", name)
	}
	if math.IsNaN(*seconds) || math.Abs(*seconds) > maxSeconds {
		return 0, util.NewValidationError(name, "%s out of range: %v", name, *seconds)
	}
	return util.SecondsToDuration(*seconds), nil
}

// ToCycleConfig converts the timing fields of a start request to a CycleConfig. It only checks what
// cannot be represented in a CycleConfig; CycleConfig.Validate does the rest.
func (r *RequestJSON) ToCycleConfig() (config logic.CycleConfig, err error) {
	if config.TimeOn, err = secondsToDuration(r.TimeOn, "time_on"); err != nil {
		return
	}
	if config.TimeOff, err = secondsToDuration(r.TimeOff, "time_off"); err != nil {
		return
	}
	config.MaxCycles = logic.Unbounded
	if r.Cycles != nil {
		if *r.Cycles <= 0 {
			err = util.NewValidationError("cycles", "cycles must be > 0, got %d", *r.Cycles)
			return
		}
		config.MaxCycles = *r.Cycles
	}
	return
}

// ResponseJSON is the reply to a RequestJSON. OK responses carry the status of the piston, failed ones an Error
type ResponseJSON struct {
	Rid      int    `json:"rid"`
	Type     string `json:"type"`
	OK       bool   `json:"ok"`
	PistonID string `json:"pistonId,omitempty"`

	Status *StatusJSON `json:"status,omitempty"`
	// State is the display text of Status: Idle, Paused or Running
	State string `json:"state,omitempty"`
	// Progress is "current/total" for bounded runs
	Progress string `json:"progress,omitempty"`
	// LastError is the output failure that aborted the last run
	LastError string        `json:"lastError,omitempty"`
	Pressure  *PressureJSON `json:"pressure,omitempty"`
	// Settings are the stored settings of the piston, if settings are kept
	Settings *SettingsJSON `json:"settings,omitempty"`

	Error *ErrorJSON `json:"error,omitempty"`
}

// NewStatusResponse creates an OK response for the status of a piston
func NewStatusResponse(req *RequestJSON, status logic.Status) ResponseJSON {
	sj := StatusToJSON(status)
	res := ResponseJSON{
		Rid: req.Rid, Type: req.Type, OK: true, PistonID: req.PistonID,
		Status: &sj, State: status.State(), Progress: status.Progress(),
	}
	if status.LastError != nil {
		res.LastError = status.LastError.Error()
	}
	return res
}

// NewErrorResponse creates a failed response for err
func NewErrorResponse(req *RequestJSON, err error) ResponseJSON {
	return ResponseJSON{
		Rid: req.Rid, Type: req.Type, OK: false, PistonID: req.PistonID,
		Error: ErrorToJSON(err),
	}
}
