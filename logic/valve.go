package logic

import "fmt"

// Valve is a single output of a ValveInterface. It is the OutputSink of one piston
type Valve struct {
	// Name is the human readable name of the valve
	Name string `json:"name"`
	// InterfaceID is the id of the valve used on the ValveInterface
	InterfaceID ValveID `json:"interfaceId"`

	iface ValveInterface
}

var _ OutputSink = (*Valve)(nil)

func NewValve(name string, interfaceID ValveID, iface ValveInterface) *Valve {
	return &Valve{name, interfaceID, iface}
}

// Set switches the valve on or off
func (v *Valve) Set(on bool) error {
	if v.InterfaceID >= v.iface.Count() {
		return fmt.Errorf("valve %d out of range for %s interface with %d valves",
			v.InterfaceID, v.iface.Name(), v.iface.Count())
	}
	return v.iface.Set(v.InterfaceID, on)
}

// State reads back the current output state of the valve
func (v *Valve) State() bool {
	if v.InterfaceID >= v.iface.Count() {
		return false
	}
	return v.iface.Get(v.InterfaceID)
}

func (v *Valve) String() string {
	return fmt.Sprintf("{'%s' on %s:%d}", v.Name, v.iface.Name(), v.InterfaceID)
}
