package gateway

import (
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gsarrafian/PneumaticsApp/datamodel"
	"github.com/gsarrafian/PneumaticsApp/logic"
	"github.com/gsarrafian/PneumaticsApp/pressure"
	"github.com/gsarrafian/PneumaticsApp/store"
	"github.com/gsarrafian/PneumaticsApp/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type mockRegulator struct {
	mock.Mock
}

func (m *mockRegulator) SetPressure(channel int, psi float64) (float64, error) {
	args := m.Called(channel, psi)
	return args.Get(0).(float64), args.Error(1)
}

func (m *mockRegulator) Close() error {
	return m.Called().Error(0)
}

type GatewaySuite struct {
	suite.Suite
	ass       *assert.Assertions
	req       *require.Assertions
	iface     *logic.MockValveInterface
	valves    []*logic.Valve
	registry  *logic.Registry
	dac       *pressure.MockDAC
	gateway   *Gateway
	waitGroup *sync.WaitGroup
}

func (s *GatewaySuite) SetupSuite() {
	util.Logger.Out = io.Discard
	s.ass = assert.New(s.T())
	s.req = require.New(s.T())
	s.waitGroup = &sync.WaitGroup{}
	s.iface = logic.NewMockValveInterface(2)
	s.valves = []*logic.Valve{
		logic.NewValve("piston1", 0, s.iface),
		logic.NewValve("piston2", 1, s.iface),
	}
}

func (s *GatewaySuite) SetupTest() {
	s.req.NoError(s.iface.Initialize())
	var err error
	s.registry, err = logic.NewRegistry(
		logic.NewCycleController("piston1", s.valves[0]),
		logic.NewCycleController("piston2", s.valves[1]),
	)
	s.req.NoError(err)
	s.registry.RunAll(s.waitGroup)
	s.dac = pressure.NewMockDAC()
	s.gateway = New(s.registry, s.dac, map[string]int{"piston1": 1, "piston2": 2}, nil)
}

func (s *GatewaySuite) TearDownTest() {
	s.registry.QuitAll()
	s.waitGroup.Wait()
}

func (s *GatewaySuite) handle(payload string) datamodel.ResponseJSON {
	return s.gateway.HandleBytes([]byte(payload))
}

func (s *GatewaySuite) assertError(res datamodel.ResponseJSON, code util.ErrorCode) {
	s.ass.False(res.OK)
	s.ass.Nil(res.Status)
	if s.ass.NotNil(res.Error) {
		s.ass.Equal(code, res.Error.Code, "unexpected error %+v", res.Error)
		s.ass.Equal(code.Reason(), res.Error.Reason)
	}
}

func (s *GatewaySuite) TestStartAndStatus() {
	res := s.handle(`{"rid": 1, "type": "start", "pistonId": "piston1", "timeOn": 60, "timeOff": 60, "cycles": 3}`)
	s.req.True(res.OK, "error: %+v", res.Error)
	s.ass.Equal(1, res.Rid)
	s.ass.Equal(&datamodel.StatusJSON{Running: true, Paused: false, CurrentCycle: 1, TotalCycles: 3}, res.Status)
	s.ass.Equal("Running", res.State)
	s.ass.Equal("1/3", res.Progress)
	s.iface.AssertOn(s.T(), s.valves[0])
	s.iface.AssertOff(s.T(), s.valves[1])

	res = s.handle(`{"rid": 2, "type": "status", "pistonId": "piston1"}`)
	s.req.True(res.OK)
	s.ass.Equal(2, res.Rid)
	s.ass.Equal(1, res.Status.CurrentCycle)

	res = s.handle(`{"type": "status", "pistonId": "piston2"}`)
	s.req.True(res.OK)
	s.ass.Equal(&datamodel.StatusJSON{}, res.Status)
	s.ass.Equal("Idle", res.State)
	s.ass.Equal("", res.Progress)
}

func (s *GatewaySuite) TestPauseResumeReset() {
	res := s.handle(`{"type": "pause", "pistonId": "piston1"}`)
	s.assertError(res, util.EC_InvalidState)

	res = s.handle(`{"type": "start", "pistonId": "piston1", "timeOn": 60, "timeOff": 60}`)
	s.req.True(res.OK)
	s.ass.Equal(0, res.Status.TotalCycles, "omitted cycles should be unbounded")
	s.ass.Equal("", res.Progress)

	res = s.handle(`{"type": "pause", "pistonId": "piston1"}`)
	s.req.True(res.OK)
	s.ass.True(res.Status.Paused)
	s.ass.Equal("Paused", res.State)

	res = s.handle(`{"type": "start", "pistonId": "piston1", "timeOn": 1, "timeOff": 1}`)
	s.assertError(res, util.EC_InvalidState)

	res = s.handle(`{"type": "resume", "pistonId": "piston1"}`)
	s.req.True(res.OK)
	s.ass.False(res.Status.Paused)

	res = s.handle(`{"type": "reset", "pistonId": "piston1"}`)
	s.req.True(res.OK)
	s.ass.Equal(&datamodel.StatusJSON{}, res.Status)
	s.iface.AssertOff(s.T(), s.valves[0])
}

func (s *GatewaySuite) TestRejections() {
	s.assertError(s.handle(`{"type": "start", "pistonId": "piston1", "timeOn": 0, "timeOff": 1, "cycles": 1}`),
		util.EC_Validation)
	s.assertError(s.handle(`{"type": "start", "pistonId": "piston1", "timeOn": 1, "timeOff": -1, "cycles": 1}`),
		util.EC_Validation)
	s.assertError(s.handle(`{"type": "start", "pistonId": "piston1", "timeOn": 1, "timeOff": 1, "cycles": 0}`),
		util.EC_Validation)
	s.assertError(s.handle(`{"type": "start", "pistonId": "piston1", "timeOff": 1}`), util.EC_Validation)
	s.assertError(s.handle(`{"type": "status", "pistonId": "piston3"}`), util.EC_NotFound)
	s.assertError(s.handle(`{"type": "status"}`), util.EC_Validation)
	s.assertError(s.handle(`{"type": "launch", "pistonId": "piston1"}`), util.EC_NotImplemented)
	s.assertError(s.handle(`{"type": "start", `), util.EC_Parse)

	res := s.handle(`{"type": "status", "pistonId": "piston1"}`)
	s.ass.False(res.Status.Running, "rejected commands should not change state")
	s.iface.AssertNotCalled(s.T(), "Set", logic.ValveID(0), true)
}

func (s *GatewaySuite) TestSinkFailure() {
	s.iface.SetupFailure(s.valves[0], true, errors.New("gpio fault"))
	res := s.handle(`{"type": "start", "pistonId": "piston1", "timeOn": 1, "timeOff": 1, "cycles": 2}`)
	s.assertError(res, util.EC_SinkFailure)
	s.ass.Equal("gpio fault", res.Error.Cause)

	res = s.handle(`{"type": "status", "pistonId": "piston1"}`)
	s.req.True(res.OK)
	s.ass.False(res.Status.Running)
	s.ass.Contains(res.LastError, "gpio fault")
}

func (s *GatewaySuite) TestPressure() {
	res := s.handle(`{"type": "pressure", "pistonId": "piston2", "desiredPressure": 50}`)
	s.req.True(res.OK, "error: %+v", res.Error)
	s.req.NotNil(res.Pressure)
	s.ass.Equal(50.0, res.Pressure.DesiredPressure)
	s.ass.InDelta(5.0, res.Pressure.Voltage, 1e-9)
	s.ass.Equal([]byte{0x04, 0x08, 0x00}, s.dac.Writes()[0])

	res = s.handle(`{"type": "start", "pistonId": "piston1", "timeOn": 60, "timeOff": 60, "desiredPressure": 120}`)
	s.req.True(res.OK)
	s.ass.InDelta(10.0, res.Pressure.Voltage, 1e-9, "pressure above 100 psi should clamp")

	res = s.handle(`{"type": "status", "pistonId": "piston2"}`)
	s.req.NotNil(res.Pressure, "status should report the last desired pressure")
	s.ass.Equal(50.0, res.Pressure.DesiredPressure)

	s.assertError(s.handle(`{"type": "pressure", "pistonId": "piston1", "desiredPressure": 131}`), util.EC_Validation)
	s.assertError(s.handle(`{"type": "pressure", "pistonId": "piston1", "desiredPressure": -1}`), util.EC_Validation)
	s.assertError(s.handle(`{"type": "pressure", "pistonId": "piston1"}`), util.EC_Validation)
	s.ass.Len(s.dac.Writes(), 2)

	s.assertError(s.handle(`{"type": "start", "pistonId": "piston2", "timeOn": 1, "timeOff": 1, "desiredPressure": 200}`),
		util.EC_Validation)
	c, err := s.registry.Get("piston2")
	s.req.NoError(err)
	s.ass.False(c.Status().Running, "start with a bad pressure should not start the run")
}

func (s *GatewaySuite) TestRejectedStartKeepsPressure() {
	res := s.handle(`{"type": "start", "pistonId": "piston1", "timeOn": 60, "timeOff": 60, "desiredPressure": 40}`)
	s.req.True(res.OK, "error: %+v", res.Error)
	s.req.Len(s.dac.Writes(), 1)

	res = s.handle(`{"type": "start", "pistonId": "piston1", "timeOn": 1, "timeOff": 1, "desiredPressure": 90}`)
	s.assertError(res, util.EC_InvalidState)
	s.ass.Len(s.dac.Writes(), 1, "a rejected start should not change the regulator")
	p, ok := s.gateway.Pressure("piston1")
	s.req.True(ok)
	s.ass.Equal(40.0, p.DesiredPressure)

	_, err := s.gateway.registry.Controllers()[0].Pause()
	s.req.NoError(err)
	res = s.handle(`{"type": "start", "pistonId": "piston1", "timeOn": 1, "timeOff": 1, "desiredPressure": 90}`)
	s.assertError(res, util.EC_InvalidState)
	s.ass.Len(s.dac.Writes(), 1, "a start while paused should not change the regulator")
}

func (s *GatewaySuite) TestPressureFailure() {
	regulator := &mockRegulator{}
	regulator.On("SetPressure", 1, 30.0).Return(0.0, errors.New("i2c nack"))
	gateway := New(s.registry, regulator, map[string]int{"piston1": 1}, nil)

	res := gateway.HandleBytes([]byte(`{"type": "pressure", "pistonId": "piston1", "desiredPressure": 30}`))
	s.assertError(res, util.EC_SinkFailure)
	res = gateway.HandleBytes([]byte(`{"type": "pressure", "pistonId": "piston2", "desiredPressure": 30}`))
	s.assertError(res, util.EC_NotFound)
	regulator.AssertExpectations(s.T())

	noRegulator := New(s.registry, nil, nil, nil)
	res = noRegulator.HandleBytes([]byte(`{"type": "pressure", "pistonId": "piston1", "desiredPressure": 30}`))
	s.assertError(res, util.EC_NotFound)
}

func (s *GatewaySuite) TestFullRunThroughGateway() {
	res := s.handle(`{"type": "start", "pistonId": "piston2", "timeOn": 0.01, "timeOff": 0.01, "cycles": 2}`)
	s.req.True(res.OK)
	s.req.Eventually(func() bool {
		res := s.handle(`{"type": "status", "pistonId": "piston2"}`)
		return res.OK && !res.Status.Running
	}, time.Second, 5*time.Millisecond)
	res = s.handle(`{"type": "status", "pistonId": "piston2"}`)
	s.ass.Equal(&datamodel.StatusJSON{Running: false, CurrentCycle: 2, TotalCycles: 2}, res.Status)
	s.ass.Equal("Idle", res.State)
}

func (s *GatewaySuite) openStore() *store.DB {
	db, err := store.Open(filepath.Join(s.T().TempDir(), "pistond.db"))
	s.req.NoError(err)
	return db
}

func (s *GatewaySuite) TestSettingsKept() {
	db := s.openStore()
	defer db.Close()
	gateway := New(s.registry, s.dac, map[string]int{"piston1": 1, "piston2": 2}, db)

	res := gateway.HandleBytes([]byte(`{"type": "status", "pistonId": "piston1"}`))
	s.req.True(res.OK)
	s.ass.Nil(res.Settings, "nothing stored yet")

	res = gateway.HandleBytes([]byte(`{"type": "pressure", "pistonId": "piston1", "desiredPressure": 55}`))
	s.req.True(res.OK)
	s.req.NotNil(res.Settings)
	s.ass.Equal(55.0, *res.Settings.DesiredPressure)

	res = gateway.HandleBytes([]byte(`{"type": "start", "pistonId": "piston1", "timeOn": 60, "timeOff": 30, "cycles": 4}`))
	s.req.True(res.OK, "error: %+v", res.Error)
	s.req.NotNil(res.Settings)
	s.ass.Equal(60.0, *res.Settings.TimeOn)
	s.ass.Equal(30.0, *res.Settings.TimeOff)
	s.ass.Equal(4, *res.Settings.Cycles)
	s.ass.Equal(55.0, *res.Settings.DesiredPressure)

	res = gateway.HandleBytes([]byte(`{"type": "start", "pistonId": "piston1", "timeOn": 5, "timeOff": 5, "desiredPressure": 70}`))
	s.assertError(res, util.EC_InvalidState)
	res = gateway.HandleBytes([]byte(`{"type": "start", "pistonId": "piston2", "timeOn": 0, "timeOff": 5}`))
	s.assertError(res, util.EC_Validation)

	stored, ok, err := db.Settings("piston1")
	s.req.NoError(err)
	s.req.True(ok)
	s.ass.Equal(60.0, *stored.TimeOn, "rejected starts should not be stored")
	s.ass.Equal(55.0, *stored.DesiredPressure)
	_, ok, err = db.Settings("piston2")
	s.req.NoError(err)
	s.ass.False(ok)
}

func (s *GatewaySuite) TestRestorePressures() {
	db := s.openStore()
	defer db.Close()
	p1, p2 := 25.0, 75.0
	s.req.NoError(db.UpdateSettings("piston1", func(st *datamodel.SettingsJSON) { st.DesiredPressure = &p1 }))
	s.req.NoError(db.UpdateSettings("piston2", func(st *datamodel.SettingsJSON) { st.DesiredPressure = &p2 }))
	s.req.NoError(db.UpdateSettings("piston3", func(st *datamodel.SettingsJSON) { st.DesiredPressure = &p2 }))

	gateway := New(s.registry, s.dac, map[string]int{"piston1": 1}, db)
	s.req.NoError(gateway.RestorePressures())
	s.req.Len(s.dac.Writes(), 1, "only pistons with a regulator channel should be restored")
	s.ass.Equal([]byte{0x02, 0x04, 0x00}, s.dac.Writes()[0])
	p, ok := gateway.Pressure("piston1")
	s.req.True(ok)
	s.ass.Equal(25.0, p.DesiredPressure)
	s.ass.InDelta(2.5, p.Voltage, 1e-9)

	regulator := &mockRegulator{}
	regulator.On("SetPressure", 1, 25.0).Return(0.0, errors.New("i2c nack"))
	s.ass.Error(New(s.registry, regulator, map[string]int{"piston1": 1}, db).RestorePressures())
	regulator.AssertExpectations(s.T())

	s.ass.NoError(New(s.registry, s.dac, map[string]int{"piston1": 1}, nil).RestorePressures())
}

func TestGateway(t *testing.T) {
	suite.Run(t, new(GatewaySuite))
}
