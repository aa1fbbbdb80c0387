package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Team struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	GameID    string    `json:"game_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_team_name"`
	Name      string    `json:"name" gorm:"not null"`
	NameKey   string    `json:"-" gorm:"not null;uniqueIndex:idx_team_name"`
	Color     string    `json:"color" gorm:"not null"`
	Score     int       `json:"score" gorm:"not null;default:0"`
	JoinedAt  time.Time `json:"joined_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (t *Team) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.NameKey = TeamNameKey(t.Name)
	return nil
}

// TeamNameKey is the case-insensitive form team names are compared by.
func TeamNameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// TeamColor spreads team colors around the hue wheel in join order.
func TeamColor(existing int) string {
	return fmt.Sprintf("hsl(%d, 70%%, 50%%)", (existing*45)%360)
}
