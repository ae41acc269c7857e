package models

import "strings"

/** --------------------ENTITIES-------------------- */
// User is owned by the marketplace account service. This service only reads it.
type User struct {
	ID        string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	FirstName string `gorm:"type:varchar(100)" json:"firstName"`
	LastName  string `gorm:"type:varchar(100)" json:"lastName"`
	Username  string `gorm:"type:varchar(100)" json:"username"`
	Avatar    string `json:"avatar,omitempty"`
}

func (User) TableName() string {
	return "users"
}

// DisplayName prefers the full name, then the username.
func (u *User) DisplayName() string {
	full := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if full != "" {
		return full
	}
	if u.Username != "" {
		return u.Username
	}
	return "Someone"
}
