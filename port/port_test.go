package port_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deltaflow/deltaflow/port"
)

func TestNameStringWithoutFanIndex(t *testing.T) {
	n := port.Name{NodeID: "adder", PortID: "a"}
	require.Equal(t, "adder.a", n.String())
}

func TestNameStringWithFanIndex(t *testing.T) {
	n := port.Name{NodeID: "source", PortID: "out", FanIndex: "x"}
	require.Equal(t, "source.out[x]", n.String())
}
