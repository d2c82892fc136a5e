//go:build !linux

package logic

import "errors"

var errCdevUnsupported = errors.New("gpiocdev: not supported on this platform (requires Linux)")

// CdevValveInterface is not available on non-Linux platforms.
type CdevValveInterface struct {
	offsets []int
}

var _ ValveInterface = (*CdevValveInterface)(nil)

// NewCdevValveInterface returns an interface whose Initialize always fails on non-Linux platforms.
func NewCdevValveInterface(chipName string, offsets []int) *CdevValveInterface {
	return &CdevValveInterface{offsets}
}

func (i *CdevValveInterface) Name() string { return "gpiocdev" }

func (i *CdevValveInterface) Initialize() error { return errCdevUnsupported }

func (i *CdevValveInterface) Deinitialize() error { return nil }

func (i *CdevValveInterface) Count() ValveID { return (ValveID)(len(i.offsets)) }

func (i *CdevValveInterface) Set(id ValveID, state bool) error { return errCdevUnsupported }

func (i *CdevValveInterface) Get(id ValveID) bool { return false }
