package logic

// ValveID is the index of a valve on a ValveInterface
type ValveID = uint16

// OutputSink physically switches one actuator output. Set must be idempotent and return quickly,
// since it is called from the timing goroutine of a CycleController.
type OutputSink interface {
	Set(on bool) error
}

// ValveInterface is implemented by structs which are able to interface with hardware
// for switching a bank of pneumatic valves. It is not necessarily backed by
// hardware (as in MockValveInterface)
type ValveInterface interface {
	Name() string

	Initialize() error
	Deinitialize() error

	Count() ValveID
	Set(id ValveID, state bool) error
	Get(id ValveID) (state bool)
}
