package logic

import (
	"sync"
	"time"
)

type sinkSet struct {
	On bool
	At time.Time
}

// recordingSink is an OutputSink that records every Set call
type recordingSink struct {
	mu   sync.Mutex
	on   bool
	sets []sinkSet
	fail func(on bool) error
}

var _ OutputSink = (*recordingSink)(nil)

func (s *recordingSink) Set(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets = append(s.sets, sinkSet{on, time.Now()})
	if s.fail != nil {
		if err := s.fail(on); err != nil {
			return err
		}
	}
	s.on = on
	return nil
}

func (s *recordingSink) On() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.on
}

func (s *recordingSink) Sets() []sinkSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	sets := make([]sinkSet, len(s.sets))
	copy(sets, s.sets)
	return sets
}

func (s *recordingSink) CountSets(on bool) (n int) {
	for _, set := range s.Sets() {
		if set.On == on {
			n++
		}
	}
	return
}

func (s *recordingSink) SetFail(fail func(on bool) error) {
	s.mu.Lock()
	s.fail = fail
	s.mu.Unlock()
}
