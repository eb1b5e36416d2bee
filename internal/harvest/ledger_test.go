package harvest

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreditLedger_SpendAndExhaustion(t *testing.T) {
	t.Parallel()

	l := NewCreditLedger(3)
	require.Equal(t, 3, l.Ceiling())
	require.False(t, l.Exhausted())

	l.Spend(1)
	l.Spend(1)
	require.Equal(t, 2, l.Used())
	require.False(t, l.Exhausted())

	l.Spend(1)
	require.True(t, l.Exhausted())

	// Spend past the ceiling still accumulates; the ledger records, the
	// caller enforces.
	l.Spend(2)
	require.Equal(t, 5, l.Used())
}

func TestCreditLedger_IgnoresNonPositiveSpend(t *testing.T) {
	t.Parallel()

	l := NewCreditLedger(10)
	l.Spend(0)
	l.Spend(-4)
	require.Equal(t, 0, l.Used())
}

func TestCreditLedger_ZeroCeilingStartsExhausted(t *testing.T) {
	t.Parallel()

	require.True(t, NewCreditLedger(0).Exhausted())
}

func TestCreditLedger_ConcurrentSpend(t *testing.T) {
	t.Parallel()

	l := NewCreditLedger(1000)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				l.Spend(1)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 500, l.Used())
}
