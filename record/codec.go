package record

import (
	"github.com/spacemeshos/go-scale"
)

// Scale codecs are written by hand: the record is small and flat, and
// hand-rolling keeps the wire layout explicit.

func (r *Record) EncodeScale(enc *scale.Encoder) (total int, err error) {
	for _, v := range []uint64{
		r.CommitmentA,
		r.CommitmentB,
		r.ProofA.Commitment, r.ProofA.Challenge, r.ProofA.Response,
		r.ProofB.Commitment, r.ProofB.Challenge, r.ProofB.Response,
		r.SharedNonce,
		r.Timestamp,
	} {
		n, err := scale.EncodeCompact64(enc, v)
		if err != nil {
			return total, err
		}
		total += n
	}
	n, err := scale.EncodeCompact16(enc, r.DistanceCenti)
	if err != nil {
		return total, err
	}
	total += n
	return total, nil
}

func (r *Record) DecodeScale(dec *scale.Decoder) (total int, err error) {
	fields := []*uint64{
		&r.CommitmentA,
		&r.CommitmentB,
		&r.ProofA.Commitment, &r.ProofA.Challenge, &r.ProofA.Response,
		&r.ProofB.Commitment, &r.ProofB.Challenge, &r.ProofB.Response,
		&r.SharedNonce,
		&r.Timestamp,
	}
	for _, field := range fields {
		v, n, err := scale.DecodeCompact64(dec)
		if err != nil {
			return total, err
		}
		total += n
		*field = v
	}
	v, n, err := scale.DecodeCompact16(dec)
	if err != nil {
		return total, err
	}
	total += n
	r.DistanceCenti = v
	return total, nil
}
