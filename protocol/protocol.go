// Package protocol orchestrates a two-party presence exchange: both
// sides sample a challenge, exchange proof triples over a datagram
// transport, verify each other and assemble identical crossing records.
package protocol

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/alice-sync/presence/coord"
	"github.com/alice-sync/presence/identity"
	"github.com/alice-sync/presence/logging"
	"github.com/alice-sync/presence/record"
	"github.com/alice-sync/presence/session"
)

// ErrTransport wraps failures surfaced by the transport collaborator.
// The protocol does not retry; callers may re-enter with a fresh
// session.
var ErrTransport = errors.New("transport failure")

var exchangesMetric = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "presence",
	Subsystem: "protocol",
	Name:      "exchanges_total",
	Help:      "Number of completed exchange attempts",
}, []string{"outcome"})

const defaultReplayCacheSize = 1024

// Peer is one side of a presence exchange. It owns the local identity
// and coordinate, the collaborators, and a replay cache shared by all
// sessions it runs.
type Peer struct {
	id         *identity.Identity
	coord      coord.Coord
	transport  Transport
	clock      Clock
	random     Randomness
	replay     *replayCache
	replaySize int
	cfg        session.Config
}

type PeerOptionFunc func(*Peer)

func WithClock(clock Clock) PeerOptionFunc {
	return func(p *Peer) {
		p.clock = clock
	}
}

func WithRandomness(random Randomness) PeerOptionFunc {
	return func(p *Peer) {
		p.random = random
	}
}

func WithSessionConfig(cfg session.Config) PeerOptionFunc {
	return func(p *Peer) {
		p.cfg = cfg
	}
}

// WithReplayCacheSize bounds the number of remembered peer challenges.
func WithReplayCacheSize(size int) PeerOptionFunc {
	return func(p *Peer) {
		p.replaySize = size
	}
}

// NewPeer creates a peer bound to its transport endpoint.
func NewPeer(
	id *identity.Identity,
	c coord.Coord,
	transport Transport,
	opts ...PeerOptionFunc,
) (*Peer, error) {
	p := &Peer{
		id:         id,
		coord:      c,
		transport:  transport,
		clock:      SystemClock{},
		random:     CryptoRand{},
		replaySize: defaultReplayCacheSize,
		cfg:        session.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(p)
	}
	replay, err := newReplayCache(p.replaySize)
	if err != nil {
		return nil, fmt.Errorf("creating replay cache: %w", err)
	}
	p.replay = replay
	return p, nil
}

func (p *Peer) Commitment() uint64 {
	return p.id.Commitment()
}

func (p *Peer) Coord() coord.Coord {
	return p.coord
}

// Run drives one exchange against a peer at remoteCoord and returns
// the assembled crossing record. Any verification failure is terminal
// for the session; transport errors are surfaced wrapped in
// ErrTransport.
func (p *Peer) Run(ctx context.Context, remoteCoord coord.Coord) (record.Record, error) {
	return p.runAt(ctx, remoteCoord, p.clock.Now())
}

func (p *Peer) runAt(ctx context.Context, remoteCoord coord.Coord, timestamp uint64) (record.Record, error) {
	logger := logging.FromContext(ctx).With(zap.Uint64("commitment", p.id.Commitment()))

	sess := session.New(p.id, p.coord, p.cfg,
		session.WithReplayCache(p.replay),
		session.WithLogger(logger),
	)

	rec, err := p.exchange(ctx, sess, remoteCoord, timestamp)
	if err != nil {
		if sess.State() != session.Closed {
			_ = sess.Abort()
		}
		exchangesMetric.WithLabelValues("failure").Inc()
		return record.Record{}, err
	}
	exchangesMetric.WithLabelValues("success").Inc()
	return rec, nil
}

func (p *Peer) exchange(
	ctx context.Context,
	sess *session.Session,
	remoteCoord coord.Coord,
	timestamp uint64,
) (record.Record, error) {
	if err := sess.Discover(remoteCoord); err != nil {
		return record.Record{}, err
	}

	challenge, err := p.random.Uint64()
	if err != nil {
		return record.Record{}, fmt.Errorf("sampling challenge: %w", err)
	}
	ownProof, err := sess.BeginExchange(challenge)
	if err != nil {
		return record.Record{}, err
	}

	payload, err := newExchangeMsg(ownProof).marshal()
	if err != nil {
		return record.Record{}, err
	}
	if err := p.transport.Send(ctx, payload); err != nil {
		return record.Record{}, fmt.Errorf("%w: sending proof: %v", ErrTransport, err)
	}

	data, err := p.transport.Recv(ctx)
	if err != nil {
		return record.Record{}, fmt.Errorf("%w: awaiting peer proof: %v", ErrTransport, err)
	}
	msg, err := unmarshalExchangeMsg(data)
	if err != nil {
		return record.Record{}, err
	}

	if err := sess.ReceiveProof(msg.Proof()); err != nil {
		return record.Record{}, err
	}
	return sess.Finalize(timestamp)
}

// Execute drives both peers of a transport pair through a full
// exchange concurrently and returns both records. On success the
// records are identical: canonical ordering makes assembly
// deterministic and both sides share the same timestamp.
func Execute(ctx context.Context, a, b *Peer) (record.Record, record.Record, error) {
	timestamp := a.clock.Now()

	var recA, recB record.Record
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		rec, err := a.runAt(ctx, b.coord, timestamp)
		recA = rec
		return err
	})
	eg.Go(func() error {
		rec, err := b.runAt(ctx, a.coord, timestamp)
		recB = rec
		return err
	})
	if err := eg.Wait(); err != nil {
		return record.Record{}, record.Record{}, err
	}
	return recA, recB, nil
}
