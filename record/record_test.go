package record

import (
	"bytes"
	"testing"

	"github.com/spacemeshos/go-scale"
	"github.com/stretchr/testify/require"

	"github.com/alice-sync/presence/hash"
	"github.com/alice-sync/presence/identity"
)

func testProofs(t *testing.T) (identity.Proof, identity.Proof) {
	t.Helper()
	alice := identity.Prove([]byte("alice-secret"), 0x1111111111111111, 0xAAAAAAAAAAAAAAAA)
	bob := identity.Prove([]byte("bob-secret"), 0x2222222222222222, 0xBBBBBBBBBBBBBBBB)
	return alice, bob
}

func TestBuildCanonicalOrder(t *testing.T) {
	req := require.New(t)

	alice, bob := testProofs(t)

	r1 := Build(alice.Commitment, bob.Commitment, alice, bob, 1000, 700)
	r2 := Build(bob.Commitment, alice.Commitment, bob, alice, 1000, 700)

	// Both orders of the same exchange yield identical records.
	req.Equal(r1, r2)
	req.Less(r1.CommitmentA, r1.CommitmentB)
	req.Equal(r1.CommitmentA, r1.ProofA.Commitment)
	req.Equal(r1.CommitmentB, r1.ProofB.Commitment)
	req.NoError(r1.Verify())
}

func TestSharedNonceDerivation(t *testing.T) {
	alice, bob := testProofs(t)
	r := Build(alice.Commitment, bob.Commitment, alice, bob, 1000, 700)
	require.Equal(t, hash.SumUint64s(r.ProofA.Challenge, r.ProofB.Challenge), r.SharedNonce)
}

func TestVerifyReportsAllViolations(t *testing.T) {
	req := require.New(t)

	alice, bob := testProofs(t)
	r := Build(alice.Commitment, bob.Commitment, alice, bob, 1000, 700)

	bad := r
	bad.ProofA.Response ^= 1
	req.ErrorIs(bad.Verify(), ErrProofInvalid)

	bad = r
	bad.CommitmentA, bad.CommitmentB = bad.CommitmentB, bad.CommitmentA
	err := bad.Verify()
	req.ErrorIs(err, ErrNotCanonical)
	req.ErrorIs(err, ErrCommitmentMismatch)

	bad = r
	bad.SharedNonce++
	req.ErrorIs(bad.Verify(), ErrNonceMismatch)
}

func TestHash(t *testing.T) {
	req := require.New(t)

	alice, bob := testProofs(t)
	r := Build(alice.Commitment, bob.Commitment, alice, bob, 1000, 700)
	req.Equal(hash.SumUint64s(r.CommitmentA, r.CommitmentB, r.SharedNonce, r.Timestamp), r.Hash())

	later := Build(alice.Commitment, bob.Commitment, alice, bob, 1001, 700)
	req.NotEqual(r.Hash(), later.Hash())
}

func TestEventProjection(t *testing.T) {
	req := require.New(t)

	alice, bob := testProofs(t)
	r := Build(alice.Commitment, bob.Commitment, alice, bob, 1000, 700)
	e := r.Event()
	req.Equal(r.CommitmentA, e.CommitmentA)
	req.Equal(r.CommitmentB, e.CommitmentB)
	req.Equal(uint16(700), e.DistanceCenti)
}

func TestScaleRoundTrip(t *testing.T) {
	req := require.New(t)

	alice, bob := testProofs(t)
	r := Build(alice.Commitment, bob.Commitment, alice, bob, 12345, 700)

	var buf bytes.Buffer
	_, err := r.EncodeScale(scale.NewEncoder(&buf))
	req.NoError(err)

	var decoded Record
	_, err = decoded.DecodeScale(scale.NewDecoder(&buf))
	req.NoError(err)
	req.Equal(r, decoded)
	req.NoError(decoded.Verify())
}
