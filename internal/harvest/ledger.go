package harvest

import "sync"

// CreditLedger tracks metered search spend for one pipeline run. It is
// constructed per run, never shared process-wide, so tests get isolated
// instances. Used never decreases.
type CreditLedger struct {
	mu      sync.Mutex
	ceiling int
	used    int
}

// NewCreditLedger builds a ledger with the given ceiling.
func NewCreditLedger(ceiling int) *CreditLedger {
	return &CreditLedger{ceiling: ceiling}
}

// Spend records n credits of consumption.
func (l *CreditLedger) Spend(n int) {
	if n <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.used += n
}

// Used returns total credits consumed so far.
func (l *CreditLedger) Used() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.used
}

// Ceiling returns the configured limit.
func (l *CreditLedger) Ceiling() int {
	return l.ceiling
}

// Exhausted reports whether no further metered calls may be issued.
func (l *CreditLedger) Exhausted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.used >= l.ceiling
}
