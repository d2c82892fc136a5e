package gateway

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gsarrafian/PneumaticsApp/datamodel"
	"github.com/gsarrafian/PneumaticsApp/logic"
	"github.com/gsarrafian/PneumaticsApp/pressure"
	"github.com/gsarrafian/PneumaticsApp/util"
	"github.com/sirupsen/logrus"
)

// SettingsStore keeps the last settings of each piston
type SettingsStore interface {
	Settings(pistonID string) (datamodel.SettingsJSON, bool, error)
	UpdateSettings(pistonID string, update func(s *datamodel.SettingsJSON)) error
	AllSettings() (map[string]datamodel.SettingsJSON, error)
}

type commandHandler func(req *datamodel.RequestJSON, c *logic.CycleController) (logic.Status, error)

// Gateway handles piston commands independently of how they are transported. It decodes and validates
// requests, dispatches them to the controller of the requested piston and encodes the result.
type Gateway struct {
	registry  *logic.Registry
	regulator pressure.Regulator
	channels  map[string]int
	settings  SettingsStore

	// startLocks serialize start requests of a piston so the regulator is only changed by a start that
	// the controller will accept
	startLocks map[string]*sync.Mutex

	pressureMu sync.Mutex
	pressures  map[string]datamodel.PressureJSON

	handlers map[string]commandHandler
	log      *logrus.Entry
}

// New creates a Gateway for the controllers in registry. regulator may be nil if no pistons have a pressure
// regulator. channels maps piston ids to their regulator channel. settings may be nil to not keep settings.
func New(registry *logic.Registry, regulator pressure.Regulator, channels map[string]int,
	settings SettingsStore) *Gateway {
	g := &Gateway{
		registry:   registry,
		regulator:  regulator,
		channels:   channels,
		settings:   settings,
		startLocks: make(map[string]*sync.Mutex),
		pressures:  make(map[string]datamodel.PressureJSON),
		log:        util.Logger.WithField("module", "Gateway"),
	}
	for _, id := range registry.IDs() {
		g.startLocks[id] = &sync.Mutex{}
	}
	g.handlers = map[string]commandHandler{
		"start":    g.start,
		"pause":    g.pause,
		"resume":   g.resume,
		"reset":    g.reset,
		"status":   g.status,
		"pressure": g.setPressure,
	}
	return g
}

// HandleBytes parses a JSON request and handles it
func (g *Gateway) HandleBytes(payload []byte) datamodel.ResponseJSON {
	req, err := datamodel.ParseRequest(payload)
	if err != nil {
		g.log.WithError(err).Info("error parsing request")
		return datamodel.NewErrorResponse(&req, err)
	}
	return g.Handle(&req)
}

// Handle runs the command in req and returns its response. Every failure is reported in the response
func (g *Gateway) Handle(req *datamodel.RequestJSON) datamodel.ResponseJSON {
	log := g.log.WithFields(logrus.Fields{"rid": req.Rid, "type": req.Type, "piston": req.PistonID})
	handler, ok := g.handlers[req.Type]
	if !ok {
		err := util.NewError(util.EC_NotImplemented, fmt.Sprintf("invalid request type: '%s'", req.Type))
		log.WithError(err).Info("error processing request")
		return datamodel.NewErrorResponse(req, err)
	}
	if req.PistonID == "" {
		return datamodel.NewErrorResponse(req, util.NewValidationError("pistonId", "pistonId not specified"))
	}
	c, err := g.registry.Get(req.PistonID)
	if err != nil {
		log.WithError(err).Info("error processing request")
		return datamodel.NewErrorResponse(req, err)
	}
	status, err := handler(req, c)
	if err != nil {
		log.WithError(err).Info("error processing request")
		return datamodel.NewErrorResponse(req, err)
	}
	log.WithField("status", status).Debug("processed request")
	res := datamodel.NewStatusResponse(req, status)
	if p, ok := g.Pressure(req.PistonID); ok {
		res.Pressure = &p
	}
	if g.settings != nil {
		settings, ok, err := g.settings.Settings(req.PistonID)
		if err != nil {
			log.WithError(err).Warn("error reading settings")
		} else if ok {
			res.Settings = &settings
		}
	}
	return res
}

// RestorePressures sets the regulator of every piston back to its stored desired pressure
func (g *Gateway) RestorePressures() error {
	if g.settings == nil || g.regulator == nil {
		return nil
	}
	all, err := g.settings.AllSettings()
	if err != nil {
		return err
	}
	var errs []error
	for _, id := range g.registry.IDs() {
		s, ok := all[id]
		if !ok || s.DesiredPressure == nil {
			continue
		}
		if _, hasChannel := g.channels[id]; !hasChannel {
			continue
		}
		if err := g.regulate(id, *s.DesiredPressure); err != nil {
			errs = append(errs, err)
			continue
		}
		g.log.WithFields(logrus.Fields{"piston": id, "desiredPressure": *s.DesiredPressure}).
			Info("restored pressure")
	}
	return errors.Join(errs...)
}

func (g *Gateway) saveSettings(pistonID string, update func(s *datamodel.SettingsJSON)) {
	if g.settings == nil {
		return
	}
	if err := g.settings.UpdateSettings(pistonID, update); err != nil {
		g.log.WithError(err).WithField("piston", pistonID).Warn("error saving settings")
	}
}

// Pressure gets the last desired pressure set for a piston
func (g *Gateway) Pressure(pistonID string) (p datamodel.PressureJSON, ok bool) {
	g.pressureMu.Lock()
	defer g.pressureMu.Unlock()
	p, ok = g.pressures[pistonID]
	return
}

func checkPressure(psi *float64) error {
	if *psi < pressure.MinPressure || *psi > pressure.MaxDesiredPressure {
		return util.NewValidationError("desiredPressure",
			"desiredPressure must be between %v and %v psi, got %v",
			pressure.MinPressure, pressure.MaxDesiredPressure, *psi)
	}
	return nil
}

func (g *Gateway) regulate(pistonID string, psi float64) error {
	channel, ok := g.channels[pistonID]
	if g.regulator == nil || !ok {
		return util.NewNotFoundError("pressure regulator for piston", pistonID)
	}
	volts, err := g.regulator.SetPressure(channel, psi)
	if err != nil {
		return util.NewSinkFailure(fmt.Sprintf("%s pressure regulator", pistonID), err)
	}
	g.pressureMu.Lock()
	g.pressures[pistonID] = datamodel.PressureJSON{DesiredPressure: psi, Voltage: volts}
	g.pressureMu.Unlock()
	return nil
}

func (g *Gateway) applyPressure(pistonID string, psi float64) error {
	if err := g.regulate(pistonID, psi); err != nil {
		return err
	}
	g.saveSettings(pistonID, func(s *datamodel.SettingsJSON) { s.DesiredPressure = &psi })
	return nil
}

func (g *Gateway) start(req *datamodel.RequestJSON, c *logic.CycleController) (status logic.Status, err error) {
	config, err := req.ToCycleConfig()
	if err != nil {
		return
	}
	if err = config.Validate(); err != nil {
		return
	}
	if req.DesiredPressure != nil {
		if err = checkPressure(req.DesiredPressure); err != nil {
			return
		}
	}

	lock := g.startLocks[req.PistonID]
	lock.Lock()
	defer lock.Unlock()
	// only starts change Running to true, so this holds until c.Start below
	if st := c.Status(); st.Running {
		err = util.NewInvalidStateError("start", st.Phase)
		return
	}
	if req.DesiredPressure != nil {
		if err = g.applyPressure(req.PistonID, *req.DesiredPressure); err != nil {
			return
		}
	}
	if status, err = c.Start(config); err != nil {
		return
	}
	g.saveSettings(req.PistonID, func(s *datamodel.SettingsJSON) { s.RecordStart(req) })
	return
}

func (g *Gateway) pause(req *datamodel.RequestJSON, c *logic.CycleController) (logic.Status, error) {
	return c.Pause()
}

func (g *Gateway) resume(req *datamodel.RequestJSON, c *logic.CycleController) (logic.Status, error) {
	return c.Resume()
}

func (g *Gateway) reset(req *datamodel.RequestJSON, c *logic.CycleController) (logic.Status, error) {
	return c.Reset(), nil
}

func (g *Gateway) status(req *datamodel.RequestJSON, c *logic.CycleController) (logic.Status, error) {
	return c.Status(), nil
}

func (g *Gateway) setPressure(req *datamodel.RequestJSON, c *logic.CycleController) (status logic.Status, err error) {
	if req.DesiredPressure == nil {
		err = util.NewValidationError("desiredPressure", "desiredPressure not specified")
		return
	}
	if err = checkPressure(req.DesiredPressure); err != nil {
		return
	}
	if err = g.applyPressure(req.PistonID, *req.DesiredPressure); err != nil {
		return
	}
	return c.Status(), nil
}
