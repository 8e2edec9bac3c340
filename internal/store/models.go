package store

import "time"

// DayLayout is the format of DecisionTally.Day.
const DayLayout = "2006-01-02"

// DecisionTally counts decisions per UTC day and risk level. It carries no applicant data.
type DecisionTally struct {
	ID        uint   `gorm:"primaryKey"`
	Day       string `gorm:"size:10;not null;uniqueIndex:idx_decision_tallies_day_level"`
	Level     string `gorm:"size:16;not null;uniqueIndex:idx_decision_tallies_day_level"`
	Decision  string `gorm:"size:64;not null"`
	Total     int64  `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DayOf returns the tally day for t.
func DayOf(t time.Time) string {
	return t.UTC().Format(DayLayout)
}
