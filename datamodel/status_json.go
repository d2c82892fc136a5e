package datamodel

import (
	"encoding/json"
	"errors"

	"github.com/gsarrafian/PneumaticsApp/logic"
	"github.com/gsarrafian/PneumaticsApp/util"
)

// StatusJSON is the JSON representation of a logic.Status. It has exactly these four fields
type StatusJSON struct {
	Running      bool `json:"running"`
	Paused       bool `json:"paused"`
	CurrentCycle int  `json:"current_cycle"`
	TotalCycles  int  `json:"total_cycles"`
}

// StatusToJSON converts a Status to a StatusJSON
func StatusToJSON(s logic.Status) StatusJSON {
	return StatusJSON{s.Running, s.Paused, s.CurrentCycle, s.TotalCycles}
}

// ErrorJSON is the JSON representation of an error returned by a command
type ErrorJSON struct {
	Code util.ErrorCode `json:"code"`
	// Reason is the machine readable name of Code
	Reason  string `json:"reason"`
	Message string `json:"message"`
	Name    string `json:"name,omitempty"`
	Cause   string `json:"cause,omitempty"`
	// Offset is the position of a JSON syntax error in the request
	Offset int64 `json:"offset,omitempty"`
}

// ErrorToJSON converts err to an ErrorJSON. Errors that are not a *util.Error are reported as internal errors
func ErrorToJSON(err error) *ErrorJSON {
	if err == nil {
		return nil
	}
	var merr *util.Error
	if !errors.As(err, &merr) {
		merr = util.NewInternalError(err)
	}
	j := &ErrorJSON{
		Code:    merr.Code,
		Reason:  merr.Code.Reason(),
		Message: merr.Error(),
		Name:    merr.Name,
	}
	if merr.Cause != nil {
		j.Cause = merr.Cause.Error()
		var syntaxErr *json.SyntaxError
		if errors.As(merr.Cause, &syntaxErr) {
			j.Offset = syntaxErr.Offset
		}
	}
	return j
}

// PressureJSON is the desired supply pressure of a piston and the control voltage it was converted to
type PressureJSON struct {
	DesiredPressure float64 `json:"desiredPressure"`
	Voltage         float64 `json:"voltage"`
}
