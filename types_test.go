package jcl

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseState(t *testing.T) {
	for s := StateCreated; s <= StateErrored; s++ {
		assert.Equal(t, s, ParseState(s.String()))
	}
	assert.Equal(t, StateCreated, ParseState("bogus"))
}

func TestTerminalStates(t *testing.T) {
	terminal := map[State]bool{
		StateCompileFailed: true,
		StateRunOK:         true,
		StateRunFailed:     true,
		StateRunTimedOut:   true,
		StateErrored:       true,
	}
	for s := StateCreated; s <= StateErrored; s++ {
		assert.Equal(t, terminal[s], s.Terminal(), s.String())
	}
}

func TestRunRequestDecode(t *testing.T) {
	var req RunRequest
	require.NoError(t, json.Unmarshal([]byte(`{"code":"x","input_data":["1","2"]}`), &req))
	assert.Equal(t, "x", req.Code)
	assert.Equal(t, []string{"1", "2"}, req.InputData)

	req = RunRequest{}
	require.NoError(t, json.Unmarshal([]byte(`{"code":"y"}`), &req))
	assert.Nil(t, req.InputData)
}

func TestRunRecordFlattensOutcome(t *testing.T) {
	rec := RunRecord{ID: "r1", Outcome: RunFinished("ok", "", 0)}
	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Equal(t, "r1", fields["id"])
	assert.Equal(t, "run", fields["stage"])
	assert.Equal(t, true, fields["ok"])
}
