package protocol

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"
)

// Transport is the datagram channel collaborator: bidirectional,
// unordered, unreliable, best-effort.
type Transport interface {
	Send(ctx context.Context, payload []byte) error
	Recv(ctx context.Context) ([]byte, error)
}

// Clock provides monotonic wall time in whole seconds.
type Clock interface {
	Now() uint64
}

// Randomness provides 64-bit values unpredictable to any counterparty.
type Randomness interface {
	Uint64() (uint64, error)
}

// SystemClock reads the process clock.
type SystemClock struct{}

func (SystemClock) Now() uint64 {
	return uint64(time.Now().Unix())
}

// CryptoRand draws challenges from the operating system CSPRNG.
type CryptoRand struct{}

func (CryptoRand) Uint64() (uint64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("reading system entropy: %w", err)
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}
