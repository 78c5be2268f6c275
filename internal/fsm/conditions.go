package fsm

// Not negates a condition.
func Not(cond func() bool) func() bool {
	return func() bool { return !cond() }
}

// Always is a condition that always holds.
func Always() bool { return true }
