package scheduling

// transitions is the full lifecycle: pending is the initial state, cancelled,
// attended and not_attended are terminal.
var transitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusConfirmed:   true,
		StatusCancelled:   true,
		StatusAttended:    true,
		StatusNotAttended: true,
	},
	StatusConfirmed: {
		StatusCancelled:   true,
		StatusAttended:    true,
		StatusNotAttended: true,
	},
}

// CanTransition reports whether from -> to is a legal lifecycle step.
func CanTransition(from, to Status) bool {
	return transitions[from][to]
}
