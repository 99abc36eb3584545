package model

import (
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorClassification(t *testing.T) {
	gen := NewGenerationError("bedrock", io.ErrUnexpectedEOF, "invoke model")
	synth := NewSynthesisError("polly", io.ErrUnexpectedEOF, "synthesize speech")
	rec := NewRecognitionError("transcribe", io.ErrUnexpectedEOF, "stream")

	assert.True(t, IsGenerationError(gen))
	assert.False(t, IsGenerationError(synth))
	assert.True(t, IsSynthesisError(errors.Wrap(synth, "turn 3")))
	assert.True(t, IsRecognitionError(rec))
	assert.True(t, errors.Is(gen, io.ErrUnexpectedEOF))
	assert.Contains(t, gen.Error(), "bedrock")
	assert.Contains(t, gen.Error(), "invoke model")
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "LISTENING", Listening.String())
	assert.Equal(t, "STOPPED", Stopped.String())
	assert.Equal(t, "IDLE", Idle.String())
	assert.Equal(t, "PLAYING", Playing.String())
}
