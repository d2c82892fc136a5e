package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gsarrafian/PneumaticsApp/logic"
	"github.com/gsarrafian/PneumaticsApp/pressure"
	"github.com/gsarrafian/PneumaticsApp/util"
	rpio "github.com/stianeikeland/go-rpio/v4"
)

const (
	DriverRpio     = "rpio"
	DriverGpiocdev = "gpiocdev"
	DriverMock     = "mock"
	DriverGP8403   = "gp8403"

	defaultChip = "gpiochip0"
	defaultDB   = "pistond.db"
)

// ValveInterfaceJSON selects the driver of the valve outputs and the pins (BCM numbering) or line offsets
// of each valve
type ValveInterfaceJSON struct {
	Driver string   `json:"driver"`
	Pins   []uint16 `json:"pins"`
	// Chip is the gpio chip used by the gpiocdev driver
	Chip string `json:"chip,omitempty"`
}

// ToInterface creates the ValveInterface for the configured driver. It is not initialized
func (ij *ValveInterfaceJSON) ToInterface() (logic.ValveInterface, error) {
	switch ij.Driver {
	case DriverRpio:
		pins := make(logic.RpioPins, len(ij.Pins))
		for i, pin := range ij.Pins {
			pins[i] = rpio.Pin(pin)
		}
		return logic.NewRpioValveInterface(pins), nil
	case DriverGpiocdev:
		chip := ij.Chip
		if chip == "" {
			chip = defaultChip
		}
		offsets := make([]int, len(ij.Pins))
		for i, pin := range ij.Pins {
			offsets[i] = int(pin)
		}
		return logic.NewCdevValveInterface(chip, offsets), nil
	case DriverMock, "":
		return logic.NewMockValveInterface(len(ij.Pins)), nil
	default:
		return nil, fmt.Errorf("unknown valve interface driver '%s'", ij.Driver)
	}
}

// PistonJSON configures one piston
type PistonJSON struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// Valve is the index of the valve on the valve interface
	Valve logic.ValveID `json:"valve"`
	// DACChannel is the pressure regulator channel of the piston, or 0 for none
	DACChannel int `json:"dacChannel,omitempty"`
}

// DACJSON configures the pressure regulator DAC
type DACJSON struct {
	Driver string `json:"driver"`
	// Bus is the name of the i2c bus, or empty for the first one
	Bus     string `json:"bus,omitempty"`
	Address uint16 `json:"address,omitempty"`
}

// ToRegulator opens the configured regulator. It returns nil if no DAC is configured
func (dj *DACJSON) ToRegulator() (pressure.Regulator, error) {
	switch dj.Driver {
	case "":
		return nil, nil
	case DriverGP8403:
		addr := dj.Address
		if addr == 0 {
			addr = pressure.GP8403Address
		}
		dac, err := pressure.OpenGP8403(dj.Bus, addr)
		if err != nil {
			return nil, err
		}
		return dac, nil
	case DriverMock:
		return pressure.NewMockDAC(), nil
	default:
		return nil, fmt.Errorf("unknown dac driver '%s'", dj.Driver)
	}
}

// ConfigDataJSON is the JSON form of config data
type ConfigDataJSON struct {
	ValveInterface ValveInterfaceJSON `json:"valveInterface"`
	Pistons        []PistonJSON       `json:"pistons"`
	DAC            DACJSON            `json:"dac"`
	// DB is the settings database file. Relative paths are from the config file directory
	DB string `json:"db,omitempty"`
}

// ConfigData is the app state after being read from config
type ConfigData struct {
	ValveInterface logic.ValveInterface
	Pistons        []PistonJSON
	Valves         []*logic.Valve
	// Channels maps piston ids to their pressure regulator channel
	Channels map[string]int
	DAC      DACJSON
	DBPath   string
}

// ToConfigData converts a ConfigDataJSON to a ConfigData, checking that pistons and valves are consistent
func (j *ConfigDataJSON) ToConfigData() (c ConfigData, err error) {
	if len(j.Pistons) == 0 {
		err = fmt.Errorf("no pistons configured")
		return
	}
	c.ValveInterface, err = j.ValveInterface.ToInterface()
	if err != nil {
		return
	}
	c.Pistons = j.Pistons
	c.Channels = make(map[string]int)
	c.DAC = j.DAC
	seen := make(map[string]bool)
	for _, p := range j.Pistons {
		if p.ID == "" {
			err = util.NewNotSpecifiedError("piston id")
			return
		}
		if seen[p.ID] {
			err = fmt.Errorf("duplicate piston id '%s'", p.ID)
			return
		}
		seen[p.ID] = true
		if p.Valve >= c.ValveInterface.Count() {
			err = fmt.Errorf("piston '%s' valve %d out of range (%d valves)", p.ID, p.Valve, c.ValveInterface.Count())
			return
		}
		name := p.Name
		if name == "" {
			name = p.ID
		}
		c.Valves = append(c.Valves, logic.NewValve(name, p.Valve, c.ValveInterface))
		if p.DACChannel != 0 {
			c.Channels[p.ID] = p.DACChannel
		}
	}
	return
}

// NewRegistry creates an idle CycleController for every configured piston
func (c *ConfigData) NewRegistry() (*logic.Registry, error) {
	controllers := make([]*logic.CycleController, len(c.Pistons))
	for i, p := range c.Pistons {
		controllers[i] = logic.NewCycleController(p.ID, c.Valves[i])
	}
	return logic.NewRegistry(controllers...)
}

// FindConfigFile gets the config file from the CONFIG environment variable, or config.json in the working
// directory
func FindConfigFile() (configFile string) {
	configFile = os.Getenv("CONFIG")
	if configFile == "" {
		dir, _ := os.Getwd()
		configFile = filepath.Join(dir, "config.json")
	}
	return
}

var log = util.Logger.WithField("module", "config")

// LoadConfig loads a ConfigData from configFile
func LoadConfig(configFile string) (config ConfigData, err error) {
	var j ConfigDataJSON

	log.Debugf("loading config from %v", configFile)
	file, err := os.ReadFile(configFile)
	if err != nil {
		err = fmt.Errorf("could not read config file: %v", err)
		return
	}
	err = json.Unmarshal(file, &j)
	if err != nil {
		err = fmt.Errorf("could not parse config file: %v", err)
		return
	}

	config, err = j.ToConfigData()
	if err != nil {
		err = fmt.Errorf("invalid config: %v", err)
		return
	}
	config.DBPath = j.DB
	if config.DBPath == "" {
		config.DBPath = defaultDB
	}
	if !filepath.IsAbs(config.DBPath) {
		config.DBPath = filepath.Join(filepath.Dir(configFile), config.DBPath)
	}
	return
}
