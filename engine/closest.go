package engine

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// Guess is one team's raw free-text answer to an open-ended question.
type Guess struct {
	TeamID string `json:"team_id"`
	Raw    string `json:"raw"`
}

type RankedGuess struct {
	TeamID   string `json:"team_id"`
	Raw      string `json:"raw"`
	Value    int    `json:"value"`
	Distance int    `json:"distance"`
	Over     bool   `json:"over"`
}

// Resolution is the outcome of a closest-without-going-over contest.
type Resolution struct {
	Target       int           `json:"target"`
	Winners      []string      `json:"winners"`
	WinningValue int           `json:"winning_value,omitempty"`
	Ranked       []RankedGuess `json:"ranked"`
	AllOver      bool          `json:"all_over"`
}

const maxGuess = 1 << 62

// ParseGuess turns free text such as "26,196 applications" into a whole
// number. Every character other than a digit or a decimal point is dropped,
// the longest decimal prefix is read and truncated. ok is false when nothing
// parses or the result is not positive.
func ParseGuess(raw string) (value int, ok bool) {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, raw)

	prefix := decimalPrefix(cleaned)
	if prefix == "" {
		return 0, false
	}

	f, err := strconv.ParseFloat(prefix, 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	f = math.Trunc(f)
	if f <= 0 {
		return 0, false
	}
	if f >= maxGuess {
		return maxGuess, true
	}
	return int(f), true
}

// decimalPrefix returns the leading "digits[.digits]" run of s, or "" when it
// holds no digit at all.
func decimalPrefix(s string) string {
	i := 0
	digits := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		j := i + 1
		for j < len(s) && s[j] >= '0' && s[j] <= '9' {
			j++
			digits++
		}
		if j > i+1 {
			i = j
		}
	}
	if digits == 0 {
		return ""
	}
	return s[:i]
}

// ResolveClosest picks the teams whose guess is closest to target without
// exceeding it. Guesses that do not parse are ignored. Every team sharing the
// winning value wins. When nobody is in bounds there is no winner and AllOver
// is set.
func ResolveClosest(guesses []Guess, target int) Resolution {
	res := Resolution{
		Target:  target,
		Winners: []string{},
		Ranked:  []RankedGuess{},
	}

	best := -1
	for _, g := range guesses {
		v, ok := ParseGuess(g.Raw)
		if !ok {
			continue
		}
		rg := RankedGuess{
			TeamID:   g.TeamID,
			Raw:      g.Raw,
			Value:    v,
			Distance: distance(v, target),
			Over:     v > target,
		}
		res.Ranked = append(res.Ranked, rg)
		if !rg.Over && v > best {
			best = v
		}
	}

	if best < 0 {
		res.AllOver = true
		sort.SliceStable(res.Ranked, func(i, j int) bool {
			return res.Ranked[i].Distance < res.Ranked[j].Distance
		})
		return res
	}

	res.WinningValue = best
	for _, rg := range res.Ranked {
		if !rg.Over && rg.Value == best {
			res.Winners = append(res.Winners, rg.TeamID)
		}
	}

	sort.SliceStable(res.Ranked, func(i, j int) bool {
		a, b := res.Ranked[i], res.Ranked[j]
		if a.Over != b.Over {
			return !a.Over
		}
		return a.Distance < b.Distance
	})

	return res
}

func distance(v, target int) int {
	if v > target {
		return v - target
	}
	return target - v
}
