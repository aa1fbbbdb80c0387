package catalog

import (
	"errors"
	"fmt"
	"os"

	"teamtrivia/engine"

	"gopkg.in/yaml.v3"
)

type QuestionType string

const (
	MultipleChoice QuestionType = "multiple-choice"
	OpenEnded      QuestionType = "open-ended"
)

const (
	DefaultTimerSeconds = 30
	FinalTimerSeconds   = 60
)

type Question struct {
	ID           int          `json:"id" yaml:"id"`
	Text         string       `json:"text" yaml:"text"`
	Type         QuestionType `json:"type" yaml:"type"`
	Options      []string     `json:"options,omitempty" yaml:"options"`
	CorrectIndex int          `json:"correct_index" yaml:"correct_index"`
	Target       int          `json:"target,omitempty" yaml:"target"`
	Explanation  string       `json:"explanation,omitempty" yaml:"explanation"`
}

func (q *Question) IsOpenEnded() bool {
	return q.Type == OpenEnded
}

type Round struct {
	Title             string     `json:"title" yaml:"title"`
	Theme             string     `json:"theme" yaml:"theme"`
	Emoji             string     `json:"emoji,omitempty" yaml:"emoji"`
	PointsPerQuestion int        `json:"points_per_question" yaml:"points_per_question"`
	TimerSeconds      int        `json:"timer_seconds" yaml:"timer_seconds"`
	Questions         []Question `json:"questions" yaml:"questions"`
}

// Catalog is the fixed set of rounds a game is played with. It is addressed
// by round index and question index and never changes once loaded.
type Catalog struct {
	Rounds []Round `json:"rounds" yaml:"rounds"`
}

// LoadFile reads a YAML catalog from disk and validates it.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) applyDefaults() {
	for ri := range c.Rounds {
		r := &c.Rounds[ri]
		openEnded := false
		for qi := range r.Questions {
			q := &r.Questions[qi]
			if q.Type == "" {
				q.Type = MultipleChoice
			}
			if q.Type == OpenEnded {
				openEnded = true
			}
		}
		if r.TimerSeconds == 0 {
			r.TimerSeconds = DefaultTimerSeconds
			if openEnded {
				r.TimerSeconds = FinalTimerSeconds
			}
		}
	}
}

func (c *Catalog) Validate() error {
	if len(c.Rounds) == 0 {
		return errors.New("catalog has no rounds")
	}
	for ri, r := range c.Rounds {
		if len(r.Questions) == 0 {
			return fmt.Errorf("round %d (%q) has no questions", ri, r.Title)
		}
		if r.PointsPerQuestion <= 0 {
			return fmt.Errorf("round %d (%q) must award positive points", ri, r.Title)
		}
		if r.TimerSeconds <= 0 {
			return fmt.Errorf("round %d (%q) has no timer duration", ri, r.Title)
		}
		for qi, q := range r.Questions {
			switch q.Type {
			case MultipleChoice:
				if len(q.Options) < 2 {
					return fmt.Errorf("round %d question %d needs at least two options", ri, qi)
				}
				if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
					return fmt.Errorf("round %d question %d: correct index %d out of range", ri, qi, q.CorrectIndex)
				}
			case OpenEnded:
				if len(q.Options) != 0 {
					return fmt.Errorf("round %d question %d: open-ended questions take no options", ri, qi)
				}
				if q.Target <= 0 {
					return fmt.Errorf("round %d question %d: open-ended target must be positive", ri, qi)
				}
			default:
				return fmt.Errorf("round %d question %d: unknown type %q", ri, qi, q.Type)
			}
		}
	}
	return nil
}

// Shape is the per-round question count the phase machine walks.
func (c *Catalog) Shape() engine.Shape {
	shape := make(engine.Shape, len(c.Rounds))
	for i, r := range c.Rounds {
		shape[i] = len(r.Questions)
	}
	return shape
}

func (c *Catalog) Round(round int) (*Round, error) {
	if round < 0 || round >= len(c.Rounds) {
		return nil, engine.NotFoundf("round %d not found", round)
	}
	return &c.Rounds[round], nil
}

func (c *Catalog) Question(round, question int) (*Round, *Question, error) {
	r, err := c.Round(round)
	if err != nil {
		return nil, nil, err
	}
	if question < 0 || question >= len(r.Questions) {
		return nil, nil, engine.NotFoundf("question %d not found in round %d", question, round)
	}
	return r, &r.Questions[question], nil
}

// FinalQuestion locates the last open-ended question, the one the
// closest-without-going-over contest is played on.
func (c *Catalog) FinalQuestion() (round, question int, ok bool) {
	for ri := len(c.Rounds) - 1; ri >= 0; ri-- {
		qs := c.Rounds[ri].Questions
		for qi := len(qs) - 1; qi >= 0; qi-- {
			if qs[qi].IsOpenEnded() {
				return ri, qi, true
			}
		}
	}
	return 0, 0, false
}

func (c *Catalog) TotalQuestions() int {
	n := 0
	for _, r := range c.Rounds {
		n += len(r.Questions)
	}
	return n
}
