// Package group aggregates completed pairwise crossing records into a
// multi-party batch attestation.
package group

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"github.com/minio/sha256-simd"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/spacemeshos/merkle-tree"

	"github.com/alice-sync/presence/hash"
	"github.com/alice-sync/presence/record"
)

// ErrEmptyGroup is returned when an attestation is requested over zero
// records.
var ErrEmptyGroup = errors.New("group holds no records")

var recordsMetric = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "presence",
	Subsystem: "group",
	Name:      "records_total",
	Help:      "Number of records aggregated into groups",
})

// Ordering selects how record hashes are sequenced into the batch
// digest.
type Ordering uint8

const (
	// OrderAscending hashes record hashes in ascending numeric order;
	// the attestation is then independent of insertion order.
	OrderAscending Ordering = iota
	// OrderInsertion hashes record hashes in insertion order.
	OrderInsertion
)

func (o Ordering) String() string {
	switch o {
	case OrderAscending:
		return "ascending"
	case OrderInsertion:
		return "insertion"
	default:
		return fmt.Sprintf("ordering(%d)", uint8(o))
	}
}

// ParseOrdering parses the configuration form of an ordering policy.
func ParseOrdering(s string) (Ordering, error) {
	switch s {
	case "ascending":
		return OrderAscending, nil
	case "insertion":
		return OrderInsertion, nil
	default:
		return 0, fmt.Errorf("unknown batch mix ordering %q", s)
	}
}

type recordKey struct {
	minCommit uint64
	maxCommit uint64
	timestamp uint64
}

// Group is an unordered set of identities connected by completed
// crossing records. Single-writer by convention.
type Group struct {
	ordering Ordering
	records  []record.Record
	index    map[recordKey]struct{}
}

type OptionFunc func(*Group)

func WithOrdering(o Ordering) OptionFunc {
	return func(g *Group) {
		g.ordering = o
	}
}

func New(opts ...OptionFunc) *Group {
	g := &Group{
		ordering: OrderAscending,
		index:    make(map[recordKey]struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// AddRecord inserts a record, keyed by (min commitment, max
// commitment, timestamp). Duplicates are idempotently ignored;
// the return value reports whether the record was added.
func (g *Group) AddRecord(r record.Record) bool {
	key := recordKey{
		minCommit: r.CommitmentA,
		maxCommit: r.CommitmentB,
		timestamp: r.Timestamp,
	}
	if key.maxCommit < key.minCommit {
		key.minCommit, key.maxCommit = key.maxCommit, key.minCommit
	}
	if _, ok := g.index[key]; ok {
		return false
	}
	g.index[key] = struct{}{}
	g.records = append(g.records, r)
	recordsMetric.Inc()
	return true
}

func (g *Group) Len() int {
	return len(g.records)
}

// BatchAttest digests every record hash under the configured ordering.
// With ascending ordering the result is identical for any insertion
// order of the same record set.
func (g *Group) BatchAttest() uint64 {
	hashes := g.recordHashes(g.ordering)
	m := hash.New()
	for _, h := range hashes {
		m.WriteUint64(h)
	}
	return m.Sum64()
}

// Members returns the sorted set of commitments appearing in any
// record.
func (g *Group) Members() []uint64 {
	set := make(map[uint64]struct{}, 2*len(g.records))
	for _, r := range g.records {
		set[r.CommitmentA] = struct{}{}
		set[r.CommitmentB] = struct{}{}
	}
	members := make([]uint64, 0, len(set))
	for m := range set {
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
	return members
}

// MembershipRoot builds a merkle root over the record hashes (in
// ascending order, regardless of the batch ordering policy), giving
// external attestors a standard inclusion-proof anchor.
func (g *Group) MembershipRoot() ([]byte, error) {
	if len(g.records) == 0 {
		return nil, ErrEmptyGroup
	}
	tree, err := merkle.NewTreeBuilder().
		WithHashFunc(hashAttestTreeNode).
		Build()
	if err != nil {
		return nil, fmt.Errorf("initializing merkle tree: %w", err)
	}
	for _, h := range g.recordHashes(OrderAscending) {
		var leaf [8]byte
		binary.LittleEndian.PutUint64(leaf[:], h)
		digest := sha256.Sum256(leaf[:])
		if err := tree.AddLeaf(digest[:]); err != nil {
			return nil, fmt.Errorf("adding record leaf: %w", err)
		}
	}
	return tree.Root(), nil
}

func (g *Group) recordHashes(ordering Ordering) []uint64 {
	hashes := make([]uint64, 0, len(g.records))
	for _, r := range g.records {
		hashes = append(hashes, r.Hash())
	}
	if ordering == OrderAscending {
		sort.Slice(hashes, func(i, j int) bool { return hashes[i] < hashes[j] })
	}
	return hashes
}

// hashAttestTreeNode computes an internal node of the membership tree.
func hashAttestTreeNode(lChild, rChild []byte) []byte {
	hasher := sha256.New()
	_, _ = hasher.Write([]byte{0x01})
	_, _ = hasher.Write(lChild)
	_, _ = hasher.Write(rChild)
	return hasher.Sum(nil)
}
