package interpreter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMarkersActiveLineWithSurroundingOutput(t *testing.T) {
	events, done := parseMarkers("before##active_line7##after")
	require.False(t, done)
	require.Len(t, events, 2)
	assert.Equal(t, EventActiveLine, events[0].Type)
	assert.Equal(t, 7, events[0].Line)
	assert.Equal(t, EventOutput, events[1].Type)
	assert.Equal(t, "beforeafter", events[1].Content)
}

func TestParseMarkersBareActiveLine(t *testing.T) {
	events, done := parseMarkers("##active_line3##")
	require.False(t, done)
	require.Len(t, events, 1)
	assert.Equal(t, EventActiveLine, events[0].Type)
	assert.Equal(t, 3, events[0].Line)
}

func TestParseMarkersEndOfExecution(t *testing.T) {
	events, done := parseMarkers("##end_of_execution##")
	assert.True(t, done)
	assert.Empty(t, events)
}

func TestParseMarkersEndOfExecutionWithOutput(t *testing.T) {
	events, done := parseMarkers("tail output##end_of_execution##")
	assert.True(t, done)
	require.Len(t, events, 1)
	assert.Equal(t, EventOutput, events[0].Type)
	assert.Equal(t, "tail output", events[0].Content)
}

func TestParseMarkersExecutionError(t *testing.T) {
	events, done := parseMarkers("##execution_error##")
	assert.True(t, done)
	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0].Type)
}

func TestParseMarkersPlainOutput(t *testing.T) {
	events, done := parseMarkers("hello world")
	assert.False(t, done)
	require.Len(t, events, 1)
	assert.Equal(t, Event{Type: EventOutput, Content: "hello world"}, events[0])
}

func TestParseMarkersEmptyLine(t *testing.T) {
	events, done := parseMarkers("")
	assert.False(t, done)
	assert.Empty(t, events)
}
