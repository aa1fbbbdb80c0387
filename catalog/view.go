package catalog

// PublicQuestion is what teams see while a question is open. The correct
// option and the target value are left out.
type PublicQuestion struct {
	ID      int          `json:"id"`
	Text    string       `json:"text"`
	Type    QuestionType `json:"type"`
	Options []string     `json:"options"`
}

type PublicRound struct {
	Index             int              `json:"index"`
	Title             string           `json:"title"`
	Theme             string           `json:"theme"`
	Emoji             string           `json:"emoji,omitempty"`
	PointsPerQuestion int              `json:"points_per_question"`
	TimerSeconds      int              `json:"timer_seconds"`
	Questions         []PublicQuestion `json:"questions"`
}

func (q *Question) Public() PublicQuestion {
	options := make([]string, len(q.Options))
	copy(options, q.Options)
	return PublicQuestion{
		ID:      q.ID,
		Text:    q.Text,
		Type:    q.Type,
		Options: options,
	}
}

func (c *Catalog) PublicRounds() []PublicRound {
	rounds := make([]PublicRound, 0, len(c.Rounds))
	for i, r := range c.Rounds {
		pr := PublicRound{
			Index:             i,
			Title:             r.Title,
			Theme:             r.Theme,
			Emoji:             r.Emoji,
			PointsPerQuestion: r.PointsPerQuestion,
			TimerSeconds:      r.TimerSeconds,
			Questions:         make([]PublicQuestion, 0, len(r.Questions)),
		}
		for qi := range r.Questions {
			pr.Questions = append(pr.Questions, r.Questions[qi].Public())
		}
		rounds = append(rounds, pr)
	}
	return rounds
}
