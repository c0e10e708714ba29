package domain

import "time"

// Sequence is a named counter. NextValue is the value the next allocation returns.
type Sequence struct {
	Name      string    `gorm:"primaryKey;type:varchar(128)"`
	NextValue int64     `gorm:"column:next_value;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (Sequence) TableName() string { return "sequences" }
