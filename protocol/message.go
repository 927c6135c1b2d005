package protocol

import (
	"bytes"
	"fmt"

	xdr "github.com/nullstyle/go-xdr/xdr3"

	"github.com/alice-sync/presence/identity"
)

// ExchangeMsg is the wire form of the proof triple sent to the peer
// during the exchange phase.
type ExchangeMsg struct {
	Commitment uint64
	Challenge  uint64
	Response   uint64
}

func newExchangeMsg(p identity.Proof) ExchangeMsg {
	return ExchangeMsg{
		Commitment: p.Commitment,
		Challenge:  p.Challenge,
		Response:   p.Response,
	}
}

// Proof converts the message back into its proof form.
func (m ExchangeMsg) Proof() identity.Proof {
	return identity.Proof{
		Commitment: m.Commitment,
		Challenge:  m.Challenge,
		Response:   m.Response,
	}
}

func (m ExchangeMsg) marshal() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, &m); err != nil {
		return nil, fmt.Errorf("marshaling exchange message: %w", err)
	}
	return buf.Bytes(), nil
}

func unmarshalExchangeMsg(data []byte) (ExchangeMsg, error) {
	var m ExchangeMsg
	if _, err := xdr.Unmarshal(bytes.NewReader(data), &m); err != nil {
		return ExchangeMsg{}, fmt.Errorf("unmarshaling exchange message: %w", err)
	}
	return m, nil
}
