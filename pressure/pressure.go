package pressure

import "math"

const (
	MinPressure = 0.0
	MaxPressure = 100.0
	MinVoltage  = 0.0
	MaxVoltage  = 10.0
	// MaxCode is the full scale code of the 12-bit DAC
	MaxCode = 0x0FFF

	// MaxDesiredPressure is the highest pressure accepted from a request. Anything above MaxPressure
	// drives the regulator at full scale.
	MaxDesiredPressure = 130.0
)

// Regulator sets the supply pressure of a piston through an electro-pneumatic regulator
type Regulator interface {
	// SetPressure drives channel to the voltage for psi and returns that voltage
	SetPressure(channel int, psi float64) (volts float64, err error)
	Close() error
}

func clamp(value, min, max float64) float64 {
	return math.Max(min, math.Min(max, value))
}

// PressureToVoltage maps a pressure linearly from 0-100 PSI to the 0-10V control signal of the regulator
func PressureToVoltage(psi float64) float64 {
	psi = clamp(psi, MinPressure, MaxPressure)
	proportion := (psi - MinPressure) / (MaxPressure - MinPressure)
	return MinVoltage + proportion*(MaxVoltage-MinVoltage)
}

// VoltageToCode converts a voltage to the rounded 12-bit DAC code
func VoltageToCode(volts float64) uint16 {
	volts = clamp(volts, MinVoltage, MaxVoltage)
	scale := MaxCode / (MaxVoltage - MinVoltage)
	return uint16(math.Round((volts - MinVoltage) * scale))
}
