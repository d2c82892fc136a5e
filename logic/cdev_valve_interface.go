//go:build linux

package logic

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gsarrafian/PneumaticsApp/util"
	"github.com/sirupsen/logrus"
	"github.com/warthog618/go-gpiocdev"
)

// CdevValveInterface switches valves through the Linux GPIO character device
type CdevValveInterface struct {
	chipName string
	offsets  []int
	chip     *gpiocdev.Chip
	lines    []*gpiocdev.Line
	states   []atomic.Bool
	// mu guards opening and closing the chip; per-line Set and Get do not take it
	mu sync.Mutex
	log      *logrus.Entry
}

var _ ValveInterface = (*CdevValveInterface)(nil)

// NewCdevValveInterface creates a valve interface for the line offsets on chipName (ie. "gpiochip0")
func NewCdevValveInterface(chipName string, offsets []int) *CdevValveInterface {
	return &CdevValveInterface{
		chipName: chipName,
		offsets:  offsets,
		states:   make([]atomic.Bool, len(offsets)),
		log:      util.Logger.WithField("valve_interface", "gpiocdev"),
	}
}

func (i *CdevValveInterface) Name() string {
	return "gpiocdev"
}

func (i *CdevValveInterface) Initialize() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.log.WithField("chip", i.chipName).Info("opening gpio chip")
	chip, err := gpiocdev.NewChip(i.chipName, gpiocdev.WithConsumer("pistond"))
	if err != nil {
		return fmt.Errorf("open gpio chip: %w", err)
	}
	lines := make([]*gpiocdev.Line, 0, len(i.offsets))
	for _, offset := range i.offsets {
		line, err := chip.RequestLine(offset, gpiocdev.AsOutput(0))
		if err != nil {
			for _, l := range lines {
				l.Close()
			}
			chip.Close()
			return fmt.Errorf("request line %d: %w", offset, err)
		}
		lines = append(lines, line)
	}
	i.chip = chip
	i.lines = lines
	return nil
}

// Deinitialize drives all lines low and returns them to inputs with pull-down, matching Pi boot defaults
func (i *CdevValveInterface) Deinitialize() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	var errs []error
	for n, line := range i.lines {
		if err := line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("set line %d low: %w", i.offsets[n], err))
		}
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure line %d: %w", i.offsets[n], err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close line %d: %w", i.offsets[n], err))
		}
	}
	i.lines = nil
	if i.chip != nil {
		if err := i.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		i.chip = nil
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

func (i *CdevValveInterface) Count() ValveID {
	return (ValveID)(len(i.offsets))
}

// Set drives one line. Each line is owned by a single valve, so valves of
// different pistons never wait on each other here.
func (i *CdevValveInterface) Set(id ValveID, state bool) error {
	if int(id) >= len(i.lines) {
		return fmt.Errorf("gpio line for valve %d not requested", id)
	}
	value := 0
	if state {
		value = 1
	}
	i.log.WithFields(logrus.Fields{"valve": id, "state": state}).Debug("setting valve state")
	if err := i.lines[id].SetValue(value); err != nil {
		return fmt.Errorf("set line %d: %w", i.offsets[id], err)
	}
	i.states[id].Store(state)
	return nil
}

func (i *CdevValveInterface) Get(id ValveID) bool {
	if int(id) >= len(i.states) {
		return false
	}
	return i.states[id].Load()
}
