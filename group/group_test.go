package group

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alice-sync/presence/identity"
	"github.com/alice-sync/presence/record"
)

func testRecords(t *testing.T) []record.Record {
	t.Helper()

	ids := []*identity.Identity{
		identity.NewIdentity([]byte("alice-secret"), 1),
		identity.NewIdentity([]byte("bob-secret"), 2),
		identity.NewIdentity([]byte("carol-secret"), 3),
	}
	var records []record.Record
	challenge := uint64(100)
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			pa := ids[i].Prove(challenge)
			pb := ids[j].Prove(challenge + 1)
			challenge += 2
			records = append(records,
				record.Build(pa.Commitment, pb.Commitment, pa, pb, uint64(1000+i*10+j), 100))
		}
	}
	return records
}

func TestAddRecordDeduplicates(t *testing.T) {
	req := require.New(t)

	records := testRecords(t)
	g := New()
	req.True(g.AddRecord(records[0]))
	req.Equal(1, g.Len())

	// Same (commitments, timestamp) key is idempotently ignored.
	req.False(g.AddRecord(records[0]))
	req.Equal(1, g.Len())

	req.True(g.AddRecord(records[1]))
	req.Equal(2, g.Len())
}

func TestBatchAttestOrderIndependent(t *testing.T) {
	req := require.New(t)

	records := testRecords(t)

	g1 := New()
	for _, r := range records {
		g1.AddRecord(r)
	}
	g2 := New()
	for i := len(records) - 1; i >= 0; i-- {
		g2.AddRecord(records[i])
	}

	req.Equal(g1.BatchAttest(), g2.BatchAttest())
}

func TestBatchAttestInsertionOrdering(t *testing.T) {
	req := require.New(t)

	records := testRecords(t)

	g1 := New(WithOrdering(OrderInsertion))
	g2 := New(WithOrdering(OrderInsertion))
	g1.AddRecord(records[0])
	g1.AddRecord(records[1])
	g2.AddRecord(records[1])
	g2.AddRecord(records[0])

	// Insertion ordering is sensitive to the insertion sequence.
	req.NotEqual(g1.BatchAttest(), g2.BatchAttest())

	g3 := New(WithOrdering(OrderInsertion))
	g3.AddRecord(records[0])
	g3.AddRecord(records[1])
	req.Equal(g1.BatchAttest(), g3.BatchAttest())
}

func TestBatchAttestChangesWithSet(t *testing.T) {
	req := require.New(t)

	records := testRecords(t)
	g := New()
	g.AddRecord(records[0])
	before := g.BatchAttest()
	g.AddRecord(records[1])
	req.NotEqual(before, g.BatchAttest())
}

func TestMembersTransitiveClosure(t *testing.T) {
	req := require.New(t)

	records := testRecords(t)
	g := New()
	for _, r := range records {
		g.AddRecord(r)
	}

	members := g.Members()
	req.Len(members, 3)
	for i := 1; i < len(members); i++ {
		req.Less(members[i-1], members[i])
	}
}

func TestMembershipRoot(t *testing.T) {
	req := require.New(t)

	records := testRecords(t)

	g1 := New()
	g2 := New(WithOrdering(OrderInsertion))
	for _, r := range records {
		g1.AddRecord(r)
	}
	for i := len(records) - 1; i >= 0; i-- {
		g2.AddRecord(records[i])
	}

	r1, err := g1.MembershipRoot()
	req.NoError(err)
	r2, err := g2.MembershipRoot()
	req.NoError(err)
	// The anchor is insertion- and policy-independent.
	req.Equal(r1, r2)
	req.NotEmpty(r1)

	_, err = New().MembershipRoot()
	req.ErrorIs(err, ErrEmptyGroup)
}

func TestParseOrdering(t *testing.T) {
	req := require.New(t)

	o, err := ParseOrdering("ascending")
	req.NoError(err)
	req.Equal(OrderAscending, o)

	o, err = ParseOrdering("insertion")
	req.NoError(err)
	req.Equal(OrderInsertion, o)

	_, err = ParseOrdering("random")
	req.Error(err)
}
