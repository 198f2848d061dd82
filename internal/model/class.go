package model

import "time"

// Class represents a school class group. A class is the scope boundary for
// leaderboards: scores never leak across classes.
type Class struct {
	ID         int       `json:"id"`
	Name       string    `json:"name"`
	GradeLevel int       `json:"grade_level"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
