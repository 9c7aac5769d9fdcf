// Package ordercode generates human-readable order codes of the form
// ORD-YYYYMMDD-XXXX-NNNN, where XXXX is derived from the owning user
// and NNNN is a random token. Codes are not guaranteed unique by
// construction; callers must retry generation when the store reports a
// collision.
package ordercode

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Prefix is the constant leading segment of every order code.
const Prefix = "ORD"

// Generate builds a new order code for the given user at the given time.
func Generate(userID uuid.UUID, now time.Time) string {
	return fmt.Sprintf("%s-%s-%s-%04d", Prefix, now.Format("20060102"), userSuffix(userID), randomToken())
}

// userSuffix takes the first four hex characters of the user ID,
// uppercased, so that codes for the same user share a recognisable stem.
func userSuffix(userID uuid.UUID) string {
	hex := strings.ReplaceAll(userID.String(), "-", "")
	return strings.ToUpper(hex[:4])
}

// randomToken returns a number in [0, 10000). crypto/rand keeps codes
// unguessable; collisions within a day are resolved by caller retry.
func randomToken() int64 {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		// rand.Reader failing means the process is in a bad way; fall
		// back to a time-derived token rather than aborting checkout.
		return time.Now().UnixNano() % 10000
	}
	return n.Int64()
}
