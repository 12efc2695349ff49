package db

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPendingOrdersAndSkipsApplied(t *testing.T) {
	migrations := []Migration{
		{Version: "0003", Name: "c"},
		{Version: "0001", Name: "a"},
		{Version: "0002", Name: "b"},
	}
	pending, err := Pending([]string{"0002"}, migrations)
	require.NoError(t, err)
	require.Equal(t, []Migration{{Version: "0001", Name: "a"}, {Version: "0003", Name: "c"}}, pending)

	pending, err = Pending([]string{"0001", "0002", "0003"}, migrations)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestPendingRejectsBadVersions(t *testing.T) {
	_, err := Pending(nil, []Migration{{Version: "0001"}, {Version: "0001"}})
	require.ErrorContains(t, err, "duplicate")

	_, err = Pending(nil, []Migration{{Name: "orphan"}})
	require.ErrorContains(t, err, "no version")
}
