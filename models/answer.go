package models

import (
	"time"
)

// Answer is a team's single submission for one question. The composite
// unique index makes the database the arbiter of at-most-once submission.
type Answer struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	GameID        string    `json:"game_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_answer_tuple,priority:1"`
	TeamID        string    `json:"team_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_answer_tuple,priority:2"`
	RoundIndex    int       `json:"round_id" gorm:"not null;uniqueIndex:idx_answer_tuple,priority:3"`
	QuestionIndex int       `json:"question_id" gorm:"not null;uniqueIndex:idx_answer_tuple,priority:4"`
	QuestionRef   int       `json:"question_ref" gorm:"not null"` // catalog question id
	AnswerIndex   *int      `json:"answer_index"`
	TextAnswer    *string   `json:"text_answer"`
	IsCorrect     bool      `json:"is_correct" gorm:"not null"`
	PointsAwarded int       `json:"points_awarded" gorm:"not null;default:0"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	// Relationships
	Team Team `json:"-"`
}
