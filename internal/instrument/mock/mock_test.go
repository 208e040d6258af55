package mock

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/attenuator-bench/internal/instrument"
	"github.com/roman-kulish/attenuator-bench/internal/instrument/scpi"
)

func TestRamp(t *testing.T) {
	assert.Equal(t, "1,2,3,4,5", Ramp(5))
	assert.Equal(t, "-20.5,-20.5", Constant(2, -20.5))
}

func TestAnalyzer_Replies(t *testing.T) {
	ctx := context.Background()
	a := NewAnalyzer(WithPayload("1,2,3"))

	idn, err := a.Query(ctx, "*IDN?")
	require.NoError(t, err)
	id, err := instrument.ParseIdentity(idn)
	require.NoError(t, err)
	assert.True(t, id.MatchesModel([]string{"E8362B"}))

	require.NoError(t, scpi.QueryComplete(ctx, a, "INITiate1"))

	values, err := scpi.FetchTrace(ctx, a, 1, "meas_s22")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, values)

	assert.Len(t, a.Commands(), 5)
}

func TestAnalyzer_Failure(t *testing.T) {
	a := NewAnalyzer(WithFailure("FDATA", errors.New("timeout")))

	require.NoError(t, a.Send(context.Background(), "FORMat ASCII"))
	_, err := a.Query(context.Background(), "CALCulate1:DATA? FDATA")
	assert.True(t, instrument.IsCommunication(err))
}

func TestController_RecordsCodes(t *testing.T) {
	c := NewController()
	require.NoError(t, c.SetCode(context.Background(), 63))
	require.NoError(t, c.SetCode(context.Background(), 32))

	assert.Equal(t, []uint8{63, 32}, c.Codes())
	assert.Equal(t, ControllerIdentity, c.Identity())
}
