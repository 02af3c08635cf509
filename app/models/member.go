package models

import "time"

// Member is a club member who can enroll in activities.
type Member struct {
	ID                  uint       `gorm:"primaryKey" json:"id"`
	Name                string     `gorm:"type:varchar(150);not null" json:"name" validate:"required,max=150"`
	Gender              string     `gorm:"type:varchar(10)" json:"gender"`
	Age                 *int       `json:"age"`
	Nation              string     `gorm:"type:varchar(64)" json:"nation"`
	Avatar              string     `gorm:"type:varchar(255)" json:"avatar"`
	MemberGroup         string     `gorm:"type:varchar(64);index" json:"group"`
	TotalParticipations int        `gorm:"not null;default:0" json:"total_participations"`
	Disabled            bool       `gorm:"default:false" json:"disabled"`
	RegisteredAt        *time.Time `gorm:"type:datetime" json:"registered_at"`
	CreatedAt           time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
