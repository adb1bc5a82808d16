package orders

import (
	"math/rand/v2"
	"time"
)

const idAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NewOrderID returns ORD-YYYYMMDD-XXXX with four random base36 characters.
func NewOrderID(t time.Time) string {
	suffix := make([]byte, 4)
	for i := range suffix {
		suffix[i] = idAlphabet[rand.IntN(len(idAlphabet))]
	}
	return "ORD-" + t.Format("20060102") + "-" + string(suffix)
}
