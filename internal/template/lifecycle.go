package template

// legalTransitions is the complete transition table. ACTIVE -> DEPRECATED only
// happens as a side effect of activating a successor; ARCHIVED is terminal.
var legalTransitions = map[Status][]Status{
	StatusDraft:      {StatusTested, StatusArchived},
	StatusTested:     {StatusActive, StatusArchived},
	StatusActive:     {StatusDeprecated},
	StatusDeprecated: {StatusArchived},
	StatusArchived:   {},
}

// ValidStatus reports whether s is a known lifecycle status.
func ValidStatus(s Status) bool {
	_, ok := legalTransitions[s]
	return ok
}

// CanTransition reports whether from -> to is in the allowed set.
func CanTransition(from, to Status) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns an IllegalTransitionError when from -> to is not
// allowed.
func ValidateTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return &IllegalTransitionError{From: from, To: to}
	}
	return nil
}

// Editable reports whether content fields of a row in the given status may be
// changed in place. Everything else is frozen and edits must fork.
func Editable(s Status) bool {
	return s == StatusDraft
}
