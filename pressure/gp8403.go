package pressure

import (
	"fmt"
	"sync"

	"github.com/gsarrafian/PneumaticsApp/util"
	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

const (
	// GP8403Address is the default I2C address of the GP8403 DAC
	GP8403Address uint16 = 0x5f

	gp8403RangeRegister = 0x01
	gp8403Range10V      = 0x11
)

// gp8403ChannelRegisters maps the channel numbers used in configuration to output registers
var gp8403ChannelRegisters = map[int]byte{
	1: 0x02,
	2: 0x04,
}

// GP8403 is a Regulator driving a DFRobot GP8403 12-bit DAC over I2C
type GP8403 struct {
	mu     sync.Mutex
	dev    conn.Conn
	closer func() error
	log    *logrus.Entry
}

var _ Regulator = (*GP8403)(nil)

// OpenGP8403 opens the I2C bus named bus ("" for the first one available) and returns a GP8403 at addr
// configured for the 0-10V output range
func OpenGP8403(bus string, addr uint16) (*GP8403, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("error initializing periph host: %w", err)
	}
	b, err := i2creg.Open(bus)
	if err != nil {
		return nil, fmt.Errorf("error opening i2c bus '%s': %w", bus, err)
	}
	d := NewGP8403(&i2c.Dev{Bus: b, Addr: addr})
	d.closer = b.Close
	if err := d.SetRange10V(); err != nil {
		b.Close()
		return nil, err
	}
	return d, nil
}

// NewGP8403 creates a GP8403 communicating over dev
func NewGP8403(dev conn.Conn) *GP8403 {
	return &GP8403{
		dev: dev,
		log: util.Logger.WithFields(logrus.Fields{"module": "GP8403", "dev": dev.String()}),
	}
}

func (d *GP8403) write(b ...byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log.WithField("data", fmt.Sprintf("% x", b)).Debug("i2c write")
	return d.dev.Tx(b, nil)
}

// SetRange10V selects the 0-10V output range for all channels
func (d *GP8403) SetRange10V() error {
	if err := d.write(gp8403RangeRegister, gp8403Range10V); err != nil {
		return fmt.Errorf("error setting dac output range: %w", err)
	}
	return nil
}

// SetVoltage sets the output voltage of channel
func (d *GP8403) SetVoltage(channel int, volts float64) error {
	register, ok := gp8403ChannelRegisters[channel]
	if !ok {
		return util.NewValidationError("channel", "invalid dac channel %d", channel)
	}
	code := VoltageToCode(volts)
	if err := d.write(register, byte(code>>8), byte(code)); err != nil {
		return fmt.Errorf("error writing dac channel %d: %w", channel, err)
	}
	return nil
}

func (d *GP8403) SetPressure(channel int, psi float64) (float64, error) {
	volts := PressureToVoltage(psi)
	if err := d.SetVoltage(channel, volts); err != nil {
		return 0, err
	}
	d.log.WithFields(logrus.Fields{"channel": channel, "psi": psi, "volts": volts}).Info("set pressure")
	return volts, nil
}

func (d *GP8403) Close() error {
	if d.closer == nil {
		return nil
	}
	err := d.closer()
	d.closer = nil
	return err
}
