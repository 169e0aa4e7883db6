package models

import "time"

const USER_STATUS_AVAILABLE = 0
const USER_STATUS_BLOCKED = 2

// User is an operator account for the admin API (pause/resume,
// follow-up control, health/metrics). The dispatcher itself is
// single-tenant, so this carries only what the admin surface needs.
type User struct {
	ID        int64      `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	Name      string     `gorm:"not null" json:"name" form:"name"`
	Email     string     `gorm:"not null;unique" json:"email" form:"email"`
	Password  string     `gorm:"not null" json:"password" form:"password"`
	Status    int        `gorm:"default:0" json:"status" form:"status"`
	Admin     bool       `gorm:"not null;default:false" json:"admin" form:"admin"`
	CreatedAt *time.Time `json:"created_at" form:"created_at"`
	UpdatedAt *time.Time `json:"updated_at" form:"updated_at"`
}

func (user User) MissingFields() string {
	if user.Name == "" {
		return "name"
	} else if user.Email == "" {
		return "email"
	} else if user.Password == "" {
		return "password"
	}
	return ""
}
