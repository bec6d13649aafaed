package collection

import (
	"strconv"
	"sync"
	"time"
)

var (
	idMu   sync.Mutex
	lastID int64
)

// NextID returns a timestamp-derived record id, base-36 encoded. Ids are
// strictly increasing across the process even when the clock does not
// advance between calls, so they double as an insertion-order tiebreaker.
func NextID() string {
	idMu.Lock()
	defer idMu.Unlock()
	n := time.Now().UnixNano()
	if n <= lastID {
		n = lastID + 1
	}
	lastID = n
	return strconv.FormatInt(n, 36)
}
