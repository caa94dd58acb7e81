package tracking

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"

	"chanlinks-go/internal/common/models"
)

const bucketCount = 100

// Bucket maps a visitor of a link onto [0, 100). The result is stable for a
// given (ip, shortCode) pair and uniform across visitors.
func Bucket(ip, shortCode string) int {
	sum := blake2b.Sum256([]byte(ip + "|" + shortCode))
	return int(binary.BigEndian.Uint64(sum[:8]) % bucketCount)
}

// AssignGroup walks the groups in stored order and returns the first one whose
// cumulative weight exceeds bucket. Buckets past the total weight keep fallback.
func AssignGroup(groups models.GroupWeights, bucket int, fallback *string) *string {
	cumulative := 0
	for _, g := range groups {
		cumulative += g.Weight
		if bucket < cumulative {
			group := g.Group
			return &group
		}
	}
	return fallback
}
