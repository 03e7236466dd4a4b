package fsd

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
)

// generateAuthChallenge produces a 32-hex challenge key. The real
// VATSIM client ships a vendor-supplied, closed-source routine for this;
// this client returns the MD5 digest of the caller-supplied nonce, so the
// same nonce always yields the same key.
// Callers never interpret the string's bits, only compose and compare it,
// so any routine producing 32 lowercase hex characters satisfies the wire
// contract (see DESIGN.md).
func generateAuthChallenge(nonce string) string {
	sum := md5.Sum([]byte(nonce))
	return hex.EncodeToString(sum[:])
}

// generateAuthResponse answers a challenge for the given client id and
// key, as composed by the rolling-auth handshake in client.go.
func generateAuthResponse(challenge string, clientID uint16, key string) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s:%04x:%s", challenge, clientID, key)))
	return hex.EncodeToString(sum[:])
}

// md5Hex is the generic md5(bytes) -> 32-hex primitive used to derive the
// next rolling_challenge_key after every $ZC/$ZR exchange.
func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
