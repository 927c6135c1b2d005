// Package session implements the per-peer presence exchange state
// machine: Idle -> Discovered -> Exchanging -> Verified -> Closed.
//
// A session is owned by exactly one goroutine at a time. All operations
// from an invalid state fail with ErrStateViolation and do not mutate;
// Closed is terminal.
package session

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/alice-sync/presence/coord"
	"github.com/alice-sync/presence/event"
	"github.com/alice-sync/presence/identity"
	"github.com/alice-sync/presence/record"
)

var (
	ErrOutOfRange      = errors.New("peer is out of admission range")
	ErrProofFailed     = errors.New("peer proof failed verification")
	ErrChallengeReused = errors.New("peer reused a challenge")
	ErrStateViolation  = errors.New("operation not allowed in current session state")
)

var (
	verifiedSessionsMetric = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "presence",
		Subsystem: "session",
		Name:      "verified_total",
		Help:      "Number of sessions that reached the Verified state",
	})
	failedSessionsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "presence",
		Subsystem: "session",
		Name:      "failed_total",
		Help:      "Number of sessions closed without a record",
	}, []string{"reason"})
)

// State is the session FSM state.
type State uint8

const (
	Idle State = iota
	Discovered
	Exchanging
	Verified
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Discovered:
		return "discovered"
	case Exchanging:
		return "exchanging"
	case Verified:
		return "verified"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// CloseReason records why a session reached Closed.
type CloseReason uint8

const (
	ReasonNone CloseReason = iota
	ReasonSuccess
	ReasonProofFailed
	ReasonChallengeReused
	ReasonAborted
)

func (r CloseReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonSuccess:
		return "success"
	case ReasonProofFailed:
		return "proof_failed"
	case ReasonChallengeReused:
		return "challenge_reused"
	case ReasonAborted:
		return "aborted"
	default:
		return fmt.Sprintf("reason(%d)", uint8(r))
	}
}

// Config holds the session admission tunables.
type Config struct {
	// MaxDistance is the admission bound, in coordinate-space units
	// (interpreted by callers as a one-way latency proxy in seconds).
	MaxDistance float64
}

func DefaultConfig() Config {
	return Config{MaxDistance: 50.0}
}

// ReplayCache tracks challenges already seen from peers, so a repeated
// challenge can be rejected across sessions. Observe reports whether
// the (peer, challenge) pair was seen before and records it.
type ReplayCache interface {
	Observe(peerCommitment, challenge uint64) bool
}

// Session drives one presence exchange with a single peer.
type Session struct {
	id     uuid.UUID
	logger *zap.Logger
	cfg    Config

	local    *identity.Identity
	ownCoord coord.Coord
	replay   ReplayCache

	state       State
	closeReason CloseReason

	remoteCoord coord.Coord
	ownProof    identity.Proof
	remoteProof identity.Proof
	rec         *record.Record
}

type OptionFunc func(*Session)

// WithReplayCache attaches a cross-session challenge replay cache.
func WithReplayCache(cache ReplayCache) OptionFunc {
	return func(s *Session) {
		s.replay = cache
	}
}

// WithLogger attaches a logger for transition logging.
func WithLogger(logger *zap.Logger) OptionFunc {
	return func(s *Session) {
		s.logger = logger
	}
}

// New creates a session in Idle for the given local identity and
// coordinate.
func New(local *identity.Identity, own coord.Coord, cfg Config, opts ...OptionFunc) *Session {
	s := &Session{
		id:       uuid.New(),
		logger:   zap.NewNop(),
		cfg:      cfg,
		local:    local,
		ownCoord: own,
		state:    Idle,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.Stringer("session_id", s.id))
	return s
}

func (s *Session) State() State {
	return s.state
}

func (s *Session) CloseReason() CloseReason {
	return s.closeReason
}

// Record returns the assembled crossing record, if the session
// finalized successfully.
func (s *Session) Record() (record.Record, bool) {
	if s.rec == nil {
		return record.Record{}, false
	}
	return *s.rec, true
}

// Discover admits a peer by coordinate proximity: Idle -> Discovered
// when the Vivaldi distance is within MaxDistance. An out-of-range peer
// leaves the session in Idle untouched.
func (s *Session) Discover(remote coord.Coord) error {
	if s.state != Idle {
		return s.violation("discover")
	}
	distance := s.ownCoord.Distance(remote)
	if distance > s.cfg.MaxDistance {
		return fmt.Errorf("%w: distance %.2f > %.2f", ErrOutOfRange, distance, s.cfg.MaxDistance)
	}
	s.remoteCoord = remote
	s.transition(Discovered, zap.Float64("distance", distance))
	return nil
}

// BeginExchange moves Discovered -> Exchanging and emits the local
// proof for ownChallenge, to be sent to the peer.
func (s *Session) BeginExchange(ownChallenge uint64) (identity.Proof, error) {
	if s.state != Discovered {
		return identity.Proof{}, s.violation("begin exchange")
	}
	s.ownProof = s.local.Prove(ownChallenge)
	s.transition(Exchanging)
	return s.ownProof, nil
}

// ReceiveProof verifies the peer's proof: Exchanging -> Verified on a
// valid proof with a fresh challenge, Closed on failure. Failure is
// terminal.
func (s *Session) ReceiveProof(remote identity.Proof) error {
	if s.state != Exchanging {
		return s.violation("receive proof")
	}
	if s.replay != nil && s.replay.Observe(remote.Commitment, remote.Challenge) {
		s.close(ReasonChallengeReused)
		return fmt.Errorf("%w: challenge %#x", ErrChallengeReused, remote.Challenge)
	}
	if !remote.Verify() {
		s.close(ReasonProofFailed)
		return fmt.Errorf("%w: commitment %#x", ErrProofFailed, remote.Commitment)
	}
	s.remoteProof = remote
	s.transition(Verified, zap.Uint64("remote_commitment", remote.Commitment))
	verifiedSessionsMetric.Inc()
	return nil
}

// Finalize assembles the crossing record: Verified -> Closed (success).
func (s *Session) Finalize(timestamp uint64) (record.Record, error) {
	if s.state != Verified {
		return record.Record{}, s.violation("finalize")
	}
	rec := record.Build(
		s.local.Commitment(),
		s.remoteProof.Commitment,
		s.ownProof,
		s.remoteProof,
		timestamp,
		event.DistanceToCenti(s.ownCoord.Distance(s.remoteCoord)),
	)
	s.rec = &rec
	s.state = Closed
	s.closeReason = ReasonSuccess
	s.logger.Info("session finalized",
		zap.Uint64("record_hash", rec.Hash()),
		zap.Uint64("timestamp", timestamp),
	)
	return rec, nil
}

// Abort closes the session from any non-terminal state.
func (s *Session) Abort() error {
	if s.state == Closed {
		return s.violation("abort")
	}
	s.close(ReasonAborted)
	return nil
}

func (s *Session) close(reason CloseReason) {
	s.state = Closed
	s.closeReason = reason
	failedSessionsMetric.WithLabelValues(reason.String()).Inc()
	s.logger.Info("session closed", zap.Stringer("reason", reason))
}

func (s *Session) transition(to State, fields ...zap.Field) {
	from := s.state
	s.state = to
	s.logger.Debug("session transition",
		append([]zap.Field{zap.Stringer("from", from), zap.Stringer("to", to)}, fields...)...,
	)
}

func (s *Session) violation(op string) error {
	return fmt.Errorf("%w: cannot %s while %s", ErrStateViolation, op, s.state)
}
