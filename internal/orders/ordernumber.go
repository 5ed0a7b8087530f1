package orders

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// NewOrderNumber returns a human-readable order number in the
// LUX-YYYYMMDD-XXXX format. The suffix is a random 4-digit number; the
// unique index on orders.number catches the rare same-day collision.
func NewOrderNumber(now time.Time) string {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	suffix := int64(1000)
	if err == nil {
		suffix += n.Int64()
	}
	return fmt.Sprintf("LUX-%s-%04d", now.UTC().Format("20060102"), suffix)
}
