// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package exchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendDeliversToExactlyOneWorker(t *testing.T) {
	f := NewFabric[int](3, 1)
	f.Send(1, 42)

	select {
	case v := <-f.Recv(1):
		assert.Equal(t, 42, v)
	default:
		t.Fatal("expected delivery to worker 1")
	}
	for _, w := range []int{0, 2} {
		select {
		case <-f.Recv(w):
			t.Fatalf("unexpected delivery to worker %d", w)
		default:
		}
	}
}

func TestBroadcastDeliversToEveryWorker(t *testing.T) {
	f := NewFabric[string](4, 1)
	f.Broadcast("hi")
	for w := 0; w < 4; w++ {
		select {
		case v := <-f.Recv(w):
			assert.Equal(t, "hi", v)
		default:
			t.Fatalf("worker %d did not receive the broadcast", w)
		}
	}
}

func TestPartitionOfIsRoundRobin(t *testing.T) {
	require.Equal(t, 0, PartitionOf(0, 4))
	require.Equal(t, 1, PartitionOf(1, 4))
	require.Equal(t, 3, PartitionOf(7, 4))
}

func TestCloseClosesEveryChannel(t *testing.T) {
	f := NewFabric[int](2, 1)
	f.Close()
	_, ok := <-f.Recv(0)
	assert.False(t, ok)
	_, ok = <-f.Recv(1)
	assert.False(t, ok)
}
