package models

// Game is a board or puzzle game that challenges are played on.
type Game struct {
	ID                   string `json:"id" gorm:"primaryKey;type:uuid"`
	Name                 string `json:"name" gorm:"not null"`
	Description          string `json:"description" gorm:"type:text"`
	ParticipantsRequired int    `json:"participants_required" gorm:"default:1"`
	ImageURL             string `json:"image_url"`
	ImageKey             string `json:"-"`

	Timestamps
}
