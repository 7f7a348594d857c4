package mandates

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

var entropy io.Reader = rand.Reader

// NewOrderID returns a merchant order id of the form MO_<unixms>_<6 base36>.
func NewOrderID(now time.Time) string {
	return fmt.Sprintf("MO_%d_%s", now.UnixMilli(), randomSuffix(6))
}

// NewSubscriptionID returns a merchant subscription id of the form MS_<unixms>_<6 base36>.
func NewSubscriptionID(now time.Time) string {
	return fmt.Sprintf("MS_%d_%s", now.UnixMilli(), randomSuffix(6))
}

func randomSuffix(n int) string {
	buf := make([]byte, n)
	if _, err := io.ReadFull(entropy, buf); err != nil {
		fillFromClock(buf)
	}
	for i := range buf {
		buf[i] = base36[int(buf[i])%len(base36)]
	}
	return string(buf)
}

// fillFromClock folds a version 1 uuid (timestamp plus clock sequence) into buf.
func fillFromClock(buf []byte) {
	id, err := uuid.NewUUID()
	if err != nil {
		binary.BigEndian.PutUint64(id[:8], uint64(time.Now().UnixNano()))
	}
	for i, b := range id {
		buf[i%len(buf)] ^= b
	}
}
