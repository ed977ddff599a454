package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	all := []ConnState{ConnConnecting, ConnConnected, ConnDisconnected, ConnFailed}

	legal := map[[2]ConnState]bool{
		{ConnConnecting, ConnConnected}:    true,
		{ConnConnecting, ConnDisconnected}: true,
		{ConnConnecting, ConnFailed}:       true,
		{ConnConnected, ConnDisconnected}:  true,
		{ConnConnected, ConnFailed}:        true,
		{ConnDisconnected, ConnConnecting}: true,
		{ConnDisconnected, ConnConnected}:  true,
		{ConnDisconnected, ConnFailed}:     true,
	}

	for _, from := range all {
		for _, to := range all {
			want := legal[[2]ConnState{from, to}]
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestFailedIsTerminal(t *testing.T) {
	for _, to := range []ConnState{ConnConnecting, ConnConnected, ConnDisconnected} {
		assert.False(t, CanTransition(ConnFailed, to))
	}
}
