package order

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
)

const trackingAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// trackingCodeLen is the length of customer-facing tracking codes.
const trackingCodeLen = 10

// NewOrderCode builds a human-facing order code: the "AL" storefront prefix,
// the UTC date, and a 4-digit random suffix. Codes are not collision-free by
// construction; the ledger's unique index plus regenerate-on-conflict retry
// closes the gap.
func NewOrderCode(now time.Time) string {
	var b strings.Builder
	b.Grow(2 + 8 + 4)
	b.WriteString("AL")
	b.WriteString(now.UTC().Format("20060102"))
	b.WriteString(strconv.Itoa(1000 + rand.IntN(9000)))
	return b.String()
}

// NewTrackingCode builds a 10-character upper-alphanumeric tracking code for
// anonymous order lookup.
func NewTrackingCode() string {
	var b [trackingCodeLen]byte
	for i := range b {
		b[i] = trackingAlphabet[rand.IntN(len(trackingAlphabet))]
	}
	return string(b[:])
}
