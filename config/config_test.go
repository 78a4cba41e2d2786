package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/deltaflow/deltaflow/config"
)

func TestNewAppliesDefaults(t *testing.T) {
	c := config.New()
	require.Equal(t, "info", c.LogLevel)
	require.Equal(t, "info", c.MessageLogLevel)
	require.Equal(t, 16, c.ChannelDefaultCapacity)
	require.Equal(t, time.Second, c.ChannelPollInterval)
	require.Nil(t, c.ThreadSwitchInterval)
}

func TestNewHonorsOptions(t *testing.T) {
	c := config.New(
		config.WithLogLevel("debug"),
		config.WithMessageLogLevel("warning"),
		config.WithChannelDefaultCapacity(4),
		config.WithChannelPollInterval(10*time.Millisecond),
		config.WithThreadSwitchInterval(time.Millisecond),
	)
	require.Equal(t, "debug", c.LogLevel)
	require.Equal(t, "warning", c.MessageLogLevel)
	require.Equal(t, 4, c.ChannelDefaultCapacity)
	require.Equal(t, 10*time.Millisecond, c.ChannelPollInterval)
	require.NotNil(t, c.ThreadSwitchInterval)
	require.Equal(t, time.Millisecond, *c.ThreadSwitchInterval)
}

func TestNormalizeFillsOnlyZeroFields(t *testing.T) {
	c := config.Normalize(config.Config{LogLevel: "debug", ChannelDefaultCapacity: 5})
	require.Equal(t, "debug", c.LogLevel)
	require.Equal(t, 5, c.ChannelDefaultCapacity)
	require.Equal(t, "info", c.MessageLogLevel)
	require.Equal(t, time.Second, c.ChannelPollInterval)
}

func TestNormalizeIgnoresNegativeCapacity(t *testing.T) {
	c := config.Normalize(config.Config{ChannelDefaultCapacity: -1})
	require.Equal(t, 16, c.ChannelDefaultCapacity)
}
