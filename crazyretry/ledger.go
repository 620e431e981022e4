package crazyretry

// Ledger counts retry attempts per answer fingerprint. Entries of superseded
// answers are dropped so a new answer always starts with a fresh budget.
type Ledger struct {
	limit  int
	counts map[string]int
}

// NewLedger creates a Ledger whose entries freeze at limit.
func NewLedger(limit int) *Ledger {
	if limit <= 0 {
		limit = ElementRetryLimit
	}
	return &Ledger{limit: limit, counts: make(map[string]int)}
}

// Count returns the attempts recorded for fp, 0 if absent.
func (l *Ledger) Count(fp string) int {
	return l.counts[fp]
}

// Increment records one attempt and returns the new count. The count never
// exceeds the limit; the empty fingerprint is never recorded.
func (l *Ledger) Increment(fp string) int {
	if fp == "" {
		return 0
	}
	n := l.counts[fp]
	if n < l.limit {
		n++
		l.counts[fp] = n
	}
	return n
}

// OverLimit reports whether fp has used its whole budget.
func (l *Ledger) OverLimit(fp string) bool {
	return l.counts[fp] >= l.limit
}

// ForgetIfDifferent drops prev's entry when prev is set and differs from cur.
// It reports whether an entry was dropped.
func (l *Ledger) ForgetIfDifferent(prev, cur string) bool {
	if prev == "" || prev == cur {
		return false
	}
	if _, ok := l.counts[prev]; !ok {
		return false
	}
	delete(l.counts, prev)
	return true
}

// Limit returns the per-answer budget.
func (l *Ledger) Limit() int { return l.limit }

// Len returns the number of tracked fingerprints.
func (l *Ledger) Len() int { return len(l.counts) }
