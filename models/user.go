package models

type Role string

const (
	RoleUser     Role = "user"
	RoleEmployee Role = "employee"
	RoleAdmin    Role = "admin"
)

// IsStaff reports whether the role may manage orders and challenges.
func (r Role) IsStaff() bool {
	return r == RoleEmployee || r == RoleAdmin
}

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleEmployee, RoleAdmin:
		return true
	}
	return false
}

// User is a bar customer or staff member. Puzzles is the loyalty balance
// and never goes negative.
type User struct {
	ID        string `json:"id" gorm:"primaryKey;type:uuid"`
	Username  string `json:"username" gorm:"uniqueIndex;not null"`
	Email     string `json:"email" gorm:"uniqueIndex;not null"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	Role      Role   `json:"role" gorm:"type:varchar(16);not null;default:'user'"`
	Puzzles   int64  `json:"puzzles" gorm:"not null;default:0;check:puzzles >= 0"`
	ImageURL  string `json:"image_url,omitempty"`

	Timestamps
}
