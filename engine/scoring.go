package engine

// ScoreChoice awards points for a multiple-choice answer: the full weight on an
// exact match, nothing otherwise. A missing selection scores zero.
func ScoreChoice(selected *int, correct, points int) int {
	if selected == nil || *selected != correct || points < 0 {
		return 0
	}
	return points
}

// IsCorrectChoice reports whether the selection matches the correct option.
func IsCorrectChoice(selected *int, correct int) bool {
	return selected != nil && *selected == correct
}
