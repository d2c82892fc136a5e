package logic

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gsarrafian/PneumaticsApp/util"
	"github.com/sirupsen/logrus"
)

var errControllerStopped = errors.New("cycle controller is not running")

type ccCommand int

const (
	ccStart ccCommand = iota
	ccPause
	ccResume
	ccReset
)

var ccCommandNames = [...]string{"start", "pause", "resume", "reset"}

func (c ccCommand) String() string {
	return ccCommandNames[c]
}

type ccReply struct {
	status Status
	err    error
}

type ccRequest struct {
	cmd    ccCommand
	config CycleConfig
	reply  chan ccReply
}

// runState is owned by the CycleController goroutine. It is never accessed from elsewhere
type runState struct {
	phase        Phase
	pausedPhase  Phase
	currentCycle int
	totalCycles  int
	// elapsedInPhase is the time already spent in the current On/Off phase before segmentStart
	elapsedInPhase time.Duration
	// segmentStart is when the current phase was entered or last resumed
	segmentStart time.Time
	// deadline is when the phase timer is due. The next phase starts from it, not from when the tick
	// was handled
	deadline time.Time
	config       *CycleConfig
	lastErr      error
}

func (s *runState) String() string {
	return fmt.Sprintf("{phase: %v, cycle: %d/%d, elapsed: %v, config: %v}",
		s.phase, s.currentCycle, s.totalCycles, s.elapsedInPhase, s.config)
}

// CycleController drives one OutputSink through timed on/off cycles. All transitions happen on a single
// goroutine (started with Run) which serializes commands from callers and phase timer expirations.
type CycleController struct {
	ID   string
	sink OutputSink

	requests chan ccRequest
	ticks    chan uint64
	quit     chan struct{}
	quitOnce sync.Once
	updates  chan struct{}

	// owned by the Run goroutine
	state      runState
	generation uint64
	timer      *time.Timer

	snapMu sync.RWMutex
	snap   Status

	log *logrus.Entry
}

// NewCycleController creates a new idle CycleController for sink without starting it
func NewCycleController(id string, sink OutputSink) *CycleController {
	return &CycleController{
		ID:       id,
		sink:     sink,
		requests: make(chan ccRequest),
		ticks:    make(chan uint64, 2),
		quit:     make(chan struct{}),
		updates:  make(chan struct{}, 1),
		log: util.Logger.WithFields(logrus.Fields{
			"module": "CycleController", "piston": id,
		}),
	}
}

// Run starts the background goroutine of the CycleController
func (c *CycleController) Run(wait *sync.WaitGroup) {
	if wait != nil {
		wait.Add(1)
	}
	go c.run(wait)
}

// Quit tells the background goroutine to switch the output off and stop
func (c *CycleController) Quit() {
	c.quitOnce.Do(func() {
		close(c.quit)
	})
}

// Updates receives a value after transitions. Values are coalesced: at most one is pending, and the
// receiver should read Status() to get the latest state.
func (c *CycleController) Updates() <-chan struct{} {
	return c.updates
}

// Status returns a consistent snapshot of the controller. It never blocks on a transition in progress
func (c *CycleController) Status() Status {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()
	return c.snap
}

// LastError returns the sink failure that aborted the last run, or nil
func (c *CycleController) LastError() error {
	return c.Status().LastError
}

// Start begins a run with config. It is only valid while Idle or Completed.
func (c *CycleController) Start(config CycleConfig) (Status, error) {
	return c.send(ccRequest{cmd: ccStart, config: config})
}

// Pause freezes the current On or Off phase, leaving the output as it is
func (c *CycleController) Pause() (Status, error) {
	return c.send(ccRequest{cmd: ccPause})
}

// Resume continues a paused phase for its remaining time
func (c *CycleController) Resume() (Status, error) {
	return c.send(ccRequest{cmd: ccResume})
}

// Reset switches the output off and returns to Idle from any state. It never fails
func (c *CycleController) Reset() Status {
	status, err := c.send(ccRequest{cmd: ccReset})
	if err != nil {
		return c.Status()
	}
	return status
}

func (c *CycleController) send(req ccRequest) (Status, error) {
	req.reply = make(chan ccReply, 1)
	select {
	case c.requests <- req:
	case <-c.quit:
		return c.Status(), errControllerStopped
	}
	reply := <-req.reply
	return reply.status, reply.err
}

func (c *CycleController) run(wait *sync.WaitGroup) {
	if wait != nil {
		defer wait.Done()
	}
	c.log.Debug("starting cycle controller")
	c.stateUpdate()
	for {
		select {
		case <-c.quit:
			c.disarm()
			if err := c.sink.Set(false); err != nil {
				c.log.WithError(err).Error("error switching output off while quitting")
			}
			c.clear()
			c.stateUpdate()
			c.log.Debug("quitting cycle controller")
			return
		case req := <-c.requests:
			var err error
			switch req.cmd {
			case ccStart:
				err = c.start(req.config)
			case ccPause:
				err = c.pause()
			case ccResume:
				err = c.resume()
			case ccReset:
				c.reset()
			}
			if err != nil {
				c.log.WithError(err).WithField("cmd", req.cmd).Info("command rejected")
			}
			c.stateUpdate()
			req.reply <- ccReply{c.Status(), err}
		case gen := <-c.ticks:
			if gen != c.generation {
				c.log.WithField("generation", gen).Debug("ignoring stale phase timer")
				continue
			}
			c.timer = nil
			c.phaseElapsed()
			c.stateUpdate()
		}
	}
}

// arm schedules a tick for the current generation after d
func (c *CycleController) arm(d time.Duration) {
	c.disarm()
	gen := c.generation
	c.timer = time.AfterFunc(d, func() {
		select {
		case c.ticks <- gen:
		case <-c.quit:
		}
	})
}

// disarm invalidates any scheduled tick. A tick that already fired is discarded by its generation
func (c *CycleController) disarm() {
	c.generation++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *CycleController) setOutput(on bool) error {
	if err := c.sink.Set(on); err != nil {
		return util.NewSinkFailure(c.ID, err)
	}
	return nil
}

// enterPhase switches the output for phase p, which began at start, and arms its timer for the end of
// the phase. If that has already passed the phase starts now instead.
func (c *CycleController) enterPhase(p Phase, start time.Time) error {
	s := &c.state
	if err := c.setOutput(p == PhaseOn); err != nil {
		return c.abort(err)
	}
	now := time.Now()
	d := s.config.phaseDuration(p)
	if start.Add(d).Before(now) {
		start = now
	}
	s.phase = p
	s.elapsedInPhase = 0
	s.segmentStart = start
	s.deadline = start.Add(d)
	c.arm(s.deadline.Sub(now))
	return nil
}

// abort stops the run after a sink failure. The output is switched off on a best effort basis
func (c *CycleController) abort(err error) error {
	c.disarm()
	if offErr := c.sink.Set(false); offErr != nil {
		c.log.WithError(offErr).Error("error switching output off after failure")
	}
	c.clear()
	c.state.lastErr = err
	c.log.WithError(err).Error("run aborted")
	return err
}

func (c *CycleController) clear() {
	c.state = runState{lastErr: c.state.lastErr}
}

func (c *CycleController) start(config CycleConfig) error {
	s := &c.state
	if err := config.Validate(); err != nil {
		return err
	}
	switch s.phase {
	case PhaseIdle:
	case PhaseCompleted:
		c.clear()
	default:
		return util.NewInvalidStateError("start", s.phase)
	}
	s.config = &config
	s.currentCycle = 1
	if config.Bounded() {
		s.totalCycles = config.MaxCycles
	}
	s.lastErr = nil
	if err := c.enterPhase(PhaseOn, time.Now()); err != nil {
		return err
	}
	c.log.WithField("state", s).Info("started run")
	return nil
}

// phaseElapsed advances the run after the On or Off phase timer fires
func (c *CycleController) phaseElapsed() {
	s := &c.state
	switch s.phase {
	case PhaseOn:
		if s.config.TimeOff == 0 {
			c.cycleCompleted()
			return
		}
		c.enterPhase(PhaseOff, s.deadline)
	case PhaseOff:
		c.cycleCompleted()
	default:
		c.log.WithField("state", s).Warn("phase timer fired outside of On/Off")
	}
}

func (c *CycleController) cycleCompleted() {
	s := &c.state
	if s.config.Bounded() && s.currentCycle >= s.totalCycles {
		c.disarm()
		if err := c.setOutput(false); err != nil {
			c.abort(err)
			return
		}
		s.phase = PhaseCompleted
		s.elapsedInPhase = 0
		c.log.WithField("state", s).Info("finished run")
		return
	}
	s.currentCycle++
	if c.enterPhase(PhaseOn, s.deadline) == nil {
		c.log.WithField("cycle", s.currentCycle).Debug("started cycle")
	}
}

func (c *CycleController) pause() error {
	s := &c.state
	if s.phase != PhaseOn && s.phase != PhaseOff {
		return util.NewInvalidStateError("pause", s.phase)
	}
	c.disarm()
	s.elapsedInPhase += time.Since(s.segmentStart)
	s.pausedPhase = s.phase
	s.phase = PhasePaused
	c.log.WithField("state", s).Info("paused run")
	return nil
}

func (c *CycleController) resume() error {
	s := &c.state
	if s.phase != PhasePaused {
		return util.NewInvalidStateError("resume", s.phase)
	}
	remaining := s.config.phaseDuration(s.pausedPhase) - s.elapsedInPhase
	if remaining < 0 {
		remaining = 0
	}
	if err := c.setOutput(s.pausedPhase == PhaseOn); err != nil {
		return c.abort(err)
	}
	s.phase = s.pausedPhase
	s.segmentStart = time.Now()
	s.deadline = s.segmentStart.Add(remaining)
	c.arm(remaining)
	c.log.WithFields(logrus.Fields{"remaining": remaining, "state": s}).Info("resumed run")
	return nil
}

func (c *CycleController) reset() {
	c.disarm()
	err := c.setOutput(false)
	c.clear()
	if err != nil {
		c.state.lastErr = err
		c.log.WithError(err).Error("error switching output off while resetting")
	}
	c.log.Info("reset")
}

// stateUpdate publishes the run state as the Status snapshot and signals Updates
func (c *CycleController) stateUpdate() {
	s := &c.state
	status := Status{
		Running:      s.phase == PhaseOn || s.phase == PhaseOff || s.phase == PhasePaused,
		Paused:       s.phase == PhasePaused,
		CurrentCycle: s.currentCycle,
		TotalCycles:  s.totalCycles,
		Phase:        s.phase,
		LastError:    s.lastErr,
	}
	c.snapMu.Lock()
	c.snap = status
	c.snapMu.Unlock()
	select {
	case c.updates <- struct{}{}:
	default:
	}
}
