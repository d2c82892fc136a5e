package pressure

import (
	"periph.io/x/conn/v3/conntest"
)

// MockDAC is a GP8403 that records its writes instead of talking to hardware
type MockDAC struct {
	*GP8403
	Record *conntest.Record
}

func NewMockDAC() *MockDAC {
	record := &conntest.Record{}
	return &MockDAC{NewGP8403(record), record}
}

// Writes gets every write made so far
func (m *MockDAC) Writes() [][]byte {
	m.Record.Lock()
	defer m.Record.Unlock()
	writes := make([][]byte, len(m.Record.Ops))
	for i, op := range m.Record.Ops {
		writes[i] = op.W
	}
	return writes
}
