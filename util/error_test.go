package util

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type phaseName string

func (p phaseName) String() string { return string(p) }

func TestErrorCodes(t *testing.T) {
	ass := assert.New(t)

	err := NewInvalidStateError("pause", phaseName("Idle"))
	ass.Equal("cannot pause while Idle", err.Error())
	ass.Equal(EC_InvalidState, CodeOf(err))
	ass.True(IsCode(err, EC_InvalidState))
	ass.False(IsCode(err, EC_Validation))
	ass.True(errors.Is(err, &Error{Code: EC_InvalidState}))

	wrapped := fmt.Errorf("handling request: %w", NewNotFoundError("piston", "piston3"))
	ass.Equal(EC_NotFound, CodeOf(wrapped))
	ass.Equal("not_found", CodeOf(wrapped).Reason())

	cause := errors.New("line busy")
	sinkErr := NewSinkFailure("piston1", cause)
	ass.Equal("output 'piston1' failed: line busy", sinkErr.Error())
	ass.ErrorIs(sinkErr, cause)
	ass.Equal("sink_failure", CodeOf(sinkErr).Reason())

	ass.Equal(EC_Internal, CodeOf(errors.New("plain")))
	ass.False(IsCode(nil, EC_Internal))
	ass.Equal("unknown", ErrorCode(999).Reason())
}
