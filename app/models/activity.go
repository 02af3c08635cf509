package models

import (
	"encoding/json"
	"time"
)

// Activity is a capacity-limited event members can enroll in.
// Enrolled must never exceed Max; Waitlist absorbs the overflow.
type Activity struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Title       string     `gorm:"type:varchar(200);not null" json:"title" validate:"required,max=200"`
	Start       *time.Time `gorm:"type:datetime;index" json:"start"`
	End         *time.Time `gorm:"type:datetime;index" json:"end"`
	Place       string     `gorm:"type:varchar(200)" json:"place"`
	CategoryIDs string     `gorm:"type:json" json:"category_ids"` // JSON array of category ids
	GroupTags   string     `gorm:"type:json" json:"group_tags"`   // JSON array of eligible member groups
	Min         int        `gorm:"not null;default:0" json:"min"`
	Max         int        `gorm:"not null;default:1" json:"max"`
	Enrolled    int        `gorm:"not null;default:0" json:"enrolled"`
	Waitlist    int        `gorm:"not null;default:0" json:"waitlist"`
	Price       int64      `gorm:"not null;default:0" json:"price"`
	Status      string     `gorm:"type:varchar(20);default:'draft'" json:"status"`
	IsTop       bool       `gorm:"default:false" json:"is_top"`
	IsHot       bool       `gorm:"default:false" json:"is_hot"`
	MainImage   string     `gorm:"type:varchar(255)" json:"main_image"`
	Content     string     `gorm:"type:text" json:"content"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// Categories parses the CategoryIDs JSON column. Malformed data counts as none.
func (a *Activity) Categories() []uint {
	if a.CategoryIDs == "" {
		return nil
	}
	var ids []uint
	if err := json.Unmarshal([]byte(a.CategoryIDs), &ids); err != nil {
		return nil
	}
	return ids
}

// Groups parses the GroupTags JSON column.
func (a *Activity) Groups() []string {
	if a.GroupTags == "" {
		return nil
	}
	var groups []string
	if err := json.Unmarshal([]byte(a.GroupTags), &groups); err != nil {
		return nil
	}
	return groups
}

// SignupOpen reports whether new signups are still accepted at the given time.
func (a *Activity) SignupOpen(now time.Time) bool {
	return a.Start == nil || now.Before(*a.Start)
}

// AllowsGroup reports whether a member group qualifies for this activity.
// An activity with no group tags is open to everyone.
func (a *Activity) AllowsGroup(group string) bool {
	groups := a.Groups()
	if len(groups) == 0 {
		return true
	}
	for _, g := range groups {
		if g == group {
			return true
		}
	}
	return false
}
