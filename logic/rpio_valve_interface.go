package logic

import (
	"fmt"

	"github.com/gsarrafian/PneumaticsApp/util"
	"github.com/sirupsen/logrus"
	"github.com/stianeikeland/go-rpio/v4"
)

type RpioPins []rpio.Pin

// RpioValveInterface is a valve interface which uses raspberry pi gpio pins (BCM numbering) to switch valves
type RpioValveInterface struct {
	pins RpioPins
	log  *logrus.Entry
}

var _ ValveInterface = (*RpioValveInterface)(nil)

func NewRpioValveInterface(pins RpioPins) *RpioValveInterface {
	return &RpioValveInterface{
		pins,
		util.Logger.WithField("valve_interface", "rpio"),
	}
}

func (i *RpioValveInterface) Name() string {
	return "rpio"
}

func (i *RpioValveInterface) Initialize() (err error) {
	i.log.Info("opening rpio")
	err = rpio.Open()
	if err != nil {
		err = fmt.Errorf("error opening rpio: %v", err)
		return
	}
	for _, pin := range i.pins {
		pin.Output()
		pin.Low()
	}
	return
}

func (i *RpioValveInterface) Deinitialize() (err error) {
	for _, pin := range i.pins {
		pin.Low()
		pin.Input()
	}
	return rpio.Close()
}

func (i *RpioValveInterface) Count() ValveID {
	return (ValveID)(len(i.pins))
}

func (i *RpioValveInterface) Set(id ValveID, state bool) error {
	if int(id) >= len(i.pins) {
		return fmt.Errorf("no rpio pin for valve %d", id)
	}
	i.log.WithFields(logrus.Fields{"valve": id, "state": state}).Debug("setting valve state")
	pin := i.pins[id]
	if state {
		pin.Output()
		pin.High()
	} else {
		pin.Low()
	}
	return nil
}

func (i *RpioValveInterface) Get(id ValveID) bool {
	if int(id) >= len(i.pins) {
		return false
	}
	return i.pins[id].Read() == rpio.High
}
