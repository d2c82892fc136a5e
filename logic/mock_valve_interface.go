package logic

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockValveInterface struct {
	states []atomic.Bool
	mock.Mock
}

var _ ValveInterface = (*MockValveInterface)(nil)

func NewMockValveInterface(len int) *MockValveInterface {
	return &MockValveInterface{states: make([]atomic.Bool, len)}
}

func (m *MockValveInterface) Name() string {
	return "mock"
}

func (m *MockValveInterface) Initialize() error {
	for i := range m.states {
		m.states[i].Store(false)
	}
	m.ExpectedCalls = nil
	m.Calls = nil
	m.SetupAllReturns()
	return nil
}

func (m *MockValveInterface) Deinitialize() error {
	return m.Initialize()
}

func (m *MockValveInterface) Count() ValveID {
	return (ValveID)(len(m.states))
}

// Set records the call and only changes the state if the expectation returns no error
func (m *MockValveInterface) Set(id ValveID, state bool) error {
	err := m.Called(id, state).Error(0)
	if err == nil {
		m.states[id].Store(state)
	}
	return err
}

func (m *MockValveInterface) Get(id ValveID) bool {
	return m.states[id].Load()
}

func (m *MockValveInterface) SetupReturns(valve *Valve) {
	m.On("Set", valve.InterfaceID, true).Return(nil)
	m.On("Set", valve.InterfaceID, false).Return(nil)
}

func (m *MockValveInterface) SetupAllReturns() {
	for i := range m.states {
		m.On("Set", (ValveID)(i), true).Return(nil)
		m.On("Set", (ValveID)(i), false).Return(nil)
	}
}

func (m *MockValveInterface) replaceSet(valve *Valve, state bool) *mock.Call {
	calls := make([]*mock.Call, 0, len(m.ExpectedCalls))
	for _, call := range m.ExpectedCalls {
		if call.Method != "Set" || !call.Arguments.Is(valve.InterfaceID, state) {
			calls = append(calls, call)
		}
	}
	m.ExpectedCalls = calls
	return m.On("Set", valve.InterfaceID, state)
}

// SetupFailure makes every Set of the valve to state fail with err
func (m *MockValveInterface) SetupFailure(valve *Valve, state bool, err error) {
	m.replaceSet(valve, state).Return(err)
}

// SetupBlock makes every Set of the valve to state block until release is closed
func (m *MockValveInterface) SetupBlock(valve *Valve, state bool, release <-chan time.Time) {
	m.replaceSet(valve, state).Return(nil).WaitUntil(release)
}

func (m *MockValveInterface) AssertOn(t *testing.T, valve *Valve) {
	assert.True(t, valve.State(), "Valve %s should be on", valve.Name)
}

func (m *MockValveInterface) AssertOff(t *testing.T, valve *Valve) {
	assert.False(t, valve.State(), "Valve %s should be off", valve.Name)
}

func (m *MockValveInterface) AssertAllCalled(t *testing.T) {
	m.AssertExpectations(t)
}
