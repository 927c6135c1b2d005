// Package identity implements the commitment scheme and the
// challenge-response proof of knowledge used by presence exchanges.
//
// A commitment binds a secret to a public 64-bit digest. The proof is a
// knowledge-of-commitment construction over the mixing function: it is
// structural, not hiding, and the mixing primitive is pluggable (see the
// hash package).
package identity

import "github.com/alice-sync/presence/hash"

// Commit binds a secret to its owner nonce:
// Mix(secret || ownerNonce_le).
func Commit(secret []byte, ownerNonce uint64) uint64 {
	m := hash.New()
	m.Write(secret)
	m.WriteUint64(ownerNonce)
	return m.Sum64()
}

// VerifyOpening reports whether (secret, ownerNonce) opens commitment.
func VerifyOpening(commitment uint64, secret []byte, ownerNonce uint64) bool {
	return Commit(secret, ownerNonce) == commitment
}

// Identity holds a party's secret material. The secret never leaves the
// struct; only the commitment and proofs derived from it are exported.
type Identity struct {
	secret     []byte
	ownerNonce uint64
	commitment uint64
}

// NewIdentity creates an identity from a secret and the owner nonce
// bound at identity creation. The secret is copied.
func NewIdentity(secret []byte, ownerNonce uint64) *Identity {
	s := append([]byte(nil), secret...)
	return &Identity{
		secret:     s,
		ownerNonce: ownerNonce,
		commitment: Commit(s, ownerNonce),
	}
}

func (id *Identity) Commitment() uint64 {
	return id.commitment
}

// Prove produces this identity's proof for the given challenge.
func (id *Identity) Prove(challenge uint64) Proof {
	return Prove(id.secret, id.ownerNonce, challenge)
}

// Proof is a self-contained challenge-response proof. It carries its
// own commitment so a verifier needs no side channel.
type Proof struct {
	Commitment uint64
	Challenge  uint64
	Response   uint64
}

// Prove derives the proof of knowledge of secret for a challenge:
// the response is Mix(commitment_le || challenge_le).
func Prove(secret []byte, ownerNonce, challenge uint64) Proof {
	commitment := Commit(secret, ownerNonce)
	return Proof{
		Commitment: commitment,
		Challenge:  challenge,
		Response:   response(commitment, challenge),
	}
}

// Verify reports whether the proof is internally consistent under the
// canonical recomputation rule. A zero challenge is legal and not
// special-cased; challenge freshness is the session's concern.
func (p Proof) Verify() bool {
	return response(p.Commitment, p.Challenge) == p.Response
}

func response(commitment, challenge uint64) uint64 {
	return hash.SumUint64s(commitment, challenge)
}
