package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	cmd, err := Lookup(ReqSkyTemp)
	require.NoError(t, err)
	assert.Equal(t, "Get sky IR temperature", cmd.Description)
	require.NotNil(t, cmd.Expect)

	_, err = Lookup("!J")
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

func TestLookup_Parametrized(t *testing.T) {
	cmd, err := Lookup("P0512!")
	require.NoError(t, err)
	assert.True(t, cmd.Parametrized)
	assert.Equal(t, "Set PWM value", cmd.Description)

	// Malformed P commands are not recognized.
	_, err = Lookup("P512!")
	assert.Error(t, err)
	_, err = Lookup("P05121")
	assert.Error(t, err)
	_, err = Lookup("Pabcd!")
	assert.Error(t, err)
}

func TestSetPWMRequest(t *testing.T) {
	assert.Equal(t, "P0000!", SetPWMRequest(0))
	assert.Equal(t, "P0512!", SetPWMRequest(512))
	assert.Equal(t, "P1023!", SetPWMRequest(1023))

	cmd, err := Lookup(SetPWMRequest(737))
	require.NoError(t, err)
	assert.True(t, cmd.Parametrized)
}

func TestCommandDelays(t *testing.T) {
	rain, err := Lookup(ReqRainFrequency)
	require.NoError(t, err)
	assert.Equal(t, 350*time.Millisecond, rain.Delay)

	pwm, err := Lookup("P0100!")
	require.NoError(t, err)
	assert.Equal(t, 750*time.Millisecond, pwm.Delay)

	sky, err := Lookup(ReqSkyTemp)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), sky.Delay)
}

func TestCommandsWithoutReply(t *testing.T) {
	for _, req := range []string{ReqSwitchOpen, ReqSwitchClosed, ReqResetBuffers} {
		cmd, err := Lookup(req)
		require.NoError(t, err)
		assert.Nil(t, cmd.Expect, req)
	}
}
