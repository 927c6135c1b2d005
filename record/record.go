// Package record implements the crossing record: the mutually-signed
// artifact proving two identities completed a presence exchange.
package record

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/alice-sync/presence/event"
	"github.com/alice-sync/presence/hash"
	"github.com/alice-sync/presence/identity"
)

var (
	ErrProofInvalid       = errors.New("proof does not verify")
	ErrNotCanonical       = errors.New("identities are not in canonical order")
	ErrCommitmentMismatch = errors.New("proof commitment does not match identity")
	ErrNonceMismatch      = errors.New("shared nonce does not match the challenges")
)

// Record is a completed crossing: both parties' commitments and proofs,
// the nonce derived from both challenges, and the crossing metadata.
// Identities are held in canonical order (CommitmentA < CommitmentB).
type Record struct {
	CommitmentA   uint64
	CommitmentB   uint64
	ProofA        identity.Proof
	ProofB        identity.Proof
	SharedNonce   uint64
	Timestamp     uint64
	DistanceCenti uint16
}

// Build assembles a record from both sides of an exchange. The sides
// are swapped into canonical order before the shared nonce is derived,
// so both parties assemble bit-identical records regardless of which
// side they saw first.
func Build(
	idA, idB uint64,
	proofA, proofB identity.Proof,
	timestamp uint64,
	distanceCenti uint16,
) Record {
	if idB < idA {
		idA, idB = idB, idA
		proofA, proofB = proofB, proofA
	}
	return Record{
		CommitmentA:   idA,
		CommitmentB:   idB,
		ProofA:        proofA,
		ProofB:        proofB,
		SharedNonce:   hash.SumUint64s(proofA.Challenge, proofB.Challenge),
		Timestamp:     timestamp,
		DistanceCenti: distanceCenti,
	}
}

// Verify checks the record's invariants: both proofs verify, canonical
// ordering holds, proof commitments match the record commitments and
// the shared nonce is the digest of both challenges. All violations
// are reported, not just the first one.
func (r Record) Verify() error {
	var result *multierror.Error
	if !r.ProofA.Verify() {
		result = multierror.Append(result, fmt.Errorf("proof A: %w", ErrProofInvalid))
	}
	if !r.ProofB.Verify() {
		result = multierror.Append(result, fmt.Errorf("proof B: %w", ErrProofInvalid))
	}
	if r.CommitmentA >= r.CommitmentB {
		result = multierror.Append(result, ErrNotCanonical)
	}
	if r.ProofA.Commitment != r.CommitmentA {
		result = multierror.Append(result, fmt.Errorf("side A: %w", ErrCommitmentMismatch))
	}
	if r.ProofB.Commitment != r.CommitmentB {
		result = multierror.Append(result, fmt.Errorf("side B: %w", ErrCommitmentMismatch))
	}
	if hash.SumUint64s(r.ProofA.Challenge, r.ProofB.Challenge) != r.SharedNonce {
		result = multierror.Append(result, ErrNonceMismatch)
	}
	return result.ErrorOrNil()
}

// Hash returns the record digest used by external attestations:
// Mix(commitment_a_le || commitment_b_le || shared_nonce_le || timestamp_le).
func (r Record) Hash() uint64 {
	return hash.SumUint64s(r.CommitmentA, r.CommitmentB, r.SharedNonce, r.Timestamp)
}

// Event projects the record onto its 18-byte sync form.
func (r Record) Event() event.Event {
	return event.Event{
		CommitmentA:   r.CommitmentA,
		CommitmentB:   r.CommitmentB,
		DistanceCenti: r.DistanceCenti,
	}
}
