package exploration

import (
	"fmt"
	"sync/atomic"
)

var clamped atomic.Int64

// CheckAction verifies that action a indexes one of n actions.
//
// Builds with the debug tag panic on an out of range action. Other
// builds clamp the action into [0, n) and count the violation, see
// Clamped.
func CheckAction(a, n int) int {
	if a >= 0 && a < n {
		return a
	}

	if failFast {
		panic(fmt.Sprintf("checkaction: action %d out of range [0, %d)", a,
			n))
	}

	clamped.Add(1)
	if a < 0 {
		return 0
	}
	return n - 1
}

// Clamped returns the number of out of range actions clamped by
// CheckAction since the process started
func Clamped() int64 {
	return clamped.Load()
}
