// Package transport provides the in-memory datagram transport used to
// bind two peers in standalone mode and in tests.
package transport

import (
	"context"

	"github.com/alice-sync/presence/logging"
)

// Memory is one endpoint of an in-memory datagram pair. Delivery is
// best-effort: Send drops the payload when the peer's buffer is full,
// matching the unreliable channel contract.
type Memory struct {
	send chan<- []byte
	recv <-chan []byte
}

// Pair returns two connected endpoints with the given per-direction
// buffer.
func Pair(buffer int) (*Memory, *Memory) {
	ab := make(chan []byte, buffer)
	ba := make(chan []byte, buffer)
	return &Memory{send: ab, recv: ba}, &Memory{send: ba, recv: ab}
}

func (m *Memory) Send(ctx context.Context, payload []byte) error {
	data := append([]byte(nil), payload...)
	select {
	case m.send <- data:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		logging.FromContext(ctx).Info("peer buffer full - dropping datagram")
		return nil
	}
}

func (m *Memory) Recv(ctx context.Context) ([]byte, error) {
	select {
	case data := <-m.recv:
		return data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
