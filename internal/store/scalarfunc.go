package store

import (
	"database/sql/driver"
	"sync/atomic"

	"modernc.org/sqlite"

	"github.com/shellmem/shellmem/internal/scorer"
	"github.com/shellmem/shellmem/internal/weights"
)

// rankFuncName is the SQL scalar function the context builder calls to
// turn ten raw factor columns into a single rank value, keeping the
// network evaluation itself out of the generated SQL text.
const rankFuncName = "shellmem_rank"

var (
	rankRegistered atomic.Bool
	activeWeights  atomic.Pointer[weights.Store]
)

// registerRankFunction wires shellmem_rank into the sqlite driver so it
// reads the current weights at call time. modernc.org/sqlite keeps this
// registry process-global and keyed by name, not per-connection, so the
// function is registered only on the first call. Every call records ws
// in activeWeights, and the registered closure reads through it: the
// most recently opened store's weights are always the ones
// shellmem_rank reads, matching what that store's own Open call expects.
func registerRankFunction(ws *weights.Store) {
	activeWeights.Store(ws)
	if !rankRegistered.CompareAndSwap(false, true) {
		return
	}
	sqlite.RegisterDeterministicScalarFunction(rankFuncName, 10,
		func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			f := scorer.Features{
				Age:                 toFloat(args[0]),
				Length:              toFloat(args[1]),
				Exit:                toFloat(args[2]),
				RecentFailure:       toFloat(args[3]),
				SelectedDir:         toFloat(args[4]),
				Dir:                 toFloat(args[5]),
				Overlap:             toFloat(args[6]),
				ImmediateOverlap:    toFloat(args[7]),
				SelectedOccurrences: toFloat(args[8]),
				Occurrences:         toFloat(args[9]),
			}
			return scorer.Score(activeWeights.Load().Current(), f), nil
		})
}

func toFloat(v driver.Value) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	default:
		return 0
	}
}
