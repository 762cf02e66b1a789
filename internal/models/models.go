package models

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"gorm.io/gorm"
)

// Division is a service counter customers queue for (e.g. "Billing").
type Division struct {
	gorm.Model
	Name        string `gorm:"not null"`
	QueuePrefix string // Optional; falls back to the first letter of Name
}

// Prefix returns the queue-number prefix of the division.
func (d *Division) Prefix() string {
	if p := strings.TrimSpace(d.QueuePrefix); p != "" {
		return p
	}
	r, _ := utf8.DecodeRuneInString(strings.TrimSpace(d.Name))
	if r == utf8.RuneError {
		return "Q"
	}
	return string(unicode.ToUpper(r))
}

// Terminal is a staff serving station inside a division.
type Terminal struct {
	gorm.Model
	DivisionID uint     `gorm:"index;not null"`
	Division   Division `gorm:"foreignKey:DivisionID"`
	Number     int      `gorm:"not null"` // Counter number shown to customers
	Name       string
}
