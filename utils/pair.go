package utils

import (
	"peerlearn_server/apperrors"
)

// CanonicalPair orders two user ids byte-wise so that (a, b) and (b, a) map to
// the same (lo, hi) pair.
func CanonicalPair(userA, userB string) (lo, hi string, err error) {
	if userA == "" || userB == "" {
		return "", "", apperrors.InvalidArg("both user ids are required")
	}
	if userA == userB {
		return "", "", apperrors.ErrInvalidPair
	}
	if userA < userB {
		return userA, userB, nil
	}
	return userB, userA, nil
}

// PairKey is the uniqueness key of a match inside a community.
func PairKey(communityID, lo, hi string) string {
	return "PAIR#" + communityID + "#" + lo + "#" + hi
}
