package models

import (
	"time"
)

// ClockLayout is the format of Challenge.Time.
const ClockLayout = "15:04"

// Challenge is a scheduled competitive event. ParticipantsCount is a cached
// count of the roster and is maintained in the same transaction as every
// roster mutation.
type Challenge struct {
	ID                string    `json:"id" gorm:"primaryKey;type:uuid"`
	Name              string    `json:"name" gorm:"not null"`
	Description       string    `json:"description" gorm:"type:text"`
	Date              time.Time `json:"date" gorm:"not null;index"`
	Time              string    `json:"time" gorm:"type:varchar(5);not null"`
	MaxPayout         int64     `json:"max_payout" gorm:"not null;check:max_payout >= 0"`
	MaxScore          int64     `json:"max_score" gorm:"not null;check:max_score > 0"`
	IsActive          bool      `json:"is_active" gorm:"not null;default:true;index"`
	ParticipantsCount int       `json:"participants_count" gorm:"not null;default:0"`
	GameID            string    `json:"game_id" gorm:"type:uuid;not null;index"`

	Game         *Game         `json:"game,omitempty" gorm:"foreignKey:GameID"`
	Participants []Participant `json:"participants,omitempty" gorm:"foreignKey:ChallengeID;constraint:OnDelete:CASCADE"`

	Timestamps
}

// StartsAt combines Date and Time. A malformed Time falls back to midnight.
func (c Challenge) StartsAt() time.Time {
	y, m, d := c.Date.Date()
	clock, err := time.Parse(ClockLayout, c.Time)
	if err != nil {
		return time.Date(y, m, d, 0, 0, 0, 0, c.Date.Location())
	}
	return time.Date(y, m, d, clock.Hour(), clock.Minute(), 0, 0, c.Date.Location())
}

// Participant is one user's entry in a challenge roster.
type Participant struct {
	ID           string    `json:"id" gorm:"primaryKey;type:uuid"`
	ChallengeID  string    `json:"challenge_id" gorm:"type:uuid;not null;uniqueIndex:idx_participant_challenge_user"`
	UserID       string    `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_participant_challenge_user"`
	Position     int64     `json:"position" gorm:"not null;index"` // insertion order within the roster
	Score        int64     `json:"score" gorm:"not null;default:0"`
	Payout       int64     `json:"payout" gorm:"not null;default:0"`
	HasCompleted bool      `json:"has_completed" gorm:"not null;default:false"`
	JoinedAt     time.Time `json:"joined_at" gorm:"autoCreateTime"`

	User *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

func (Participant) TableName() string {
	return "challenge_participants"
}
