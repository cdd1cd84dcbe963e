// Package util holds small helpers shared by the synthetic series generator
// and the DICOMDIR writer.
package util

import (
	"crypto/sha256"
	"math/big"
)

// UIDRoot is the prefix of every UID the tool creates.
const UIDRoot = "1.2.826.0.1.3680043.8.498"

// maxUIDLength is the DICOM limit for UI values.
const maxUIDLength = 64

// GenerateDeterministicUID derives a UID from seed. The same seed always
// gives the same UID, which keeps generated series reproducible.
func GenerateDeterministicUID(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	n := new(big.Int).SetBytes(sum[:16]).String()
	uid := UIDRoot + "." + trimLeadingZeros(n)
	if len(uid) > maxUIDLength {
		uid = uid[:maxUIDLength]
	}
	return uid
}

// UID components must not start with 0 unless they are exactly "0".
func trimLeadingZeros(s string) string {
	for len(s) > 1 && s[0] == '0' {
		s = s[1:]
	}
	return s
}
