package models

import (
	"time"

	"teamtrivia/engine"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Game struct {
	ID              string         `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Code            string         `json:"code" gorm:"uniqueIndex;size:6;not null"`
	HostName        string         `json:"host_name" gorm:"not null"`
	Phase           engine.Phase   `json:"game_phase" gorm:"not null;default:'LOBBY'"` // LOBBY, PLAYING, BETWEEN_ROUNDS, FINISHED
	CurrentRound    int            `json:"current_round" gorm:"not null;default:0"`
	CurrentQuestion int            `json:"current_question" gorm:"not null;default:0"`
	TimerEndsAt     *time.Time     `json:"timer_ends_at"`
	ShowResults     bool           `json:"show_results" gorm:"not null;default:false"`
	FinalResolvedAt *time.Time     `json:"final_resolved_at"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	Teams   []Team   `json:"teams,omitempty" gorm:"foreignKey:GameID"`
	Answers []Answer `json:"answers,omitempty" gorm:"foreignKey:GameID"`
}

func (g *Game) BeforeCreate(tx *gorm.DB) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.Phase == "" {
		g.Phase = engine.PhaseLobby
	}
	return nil
}

// State returns the phase machine's view of the game.
func (g *Game) State() engine.State {
	return engine.State{
		Phase:           g.Phase,
		CurrentRound:    g.CurrentRound,
		CurrentQuestion: g.CurrentQuestion,
		TimerEndsAt:     g.TimerEndsAt,
		ShowResults:     g.ShowResults,
	}
}

func (g *Game) ApplyState(s engine.State) {
	g.Phase = s.Phase
	g.CurrentRound = s.CurrentRound
	g.CurrentQuestion = s.CurrentQuestion
	g.TimerEndsAt = s.TimerEndsAt
	g.ShowResults = s.ShowResults
}

// StateColumns are the columns written when a phase transition is saved.
var StateColumns = []string{"Phase", "CurrentRound", "CurrentQuestion", "TimerEndsAt", "ShowResults"}
