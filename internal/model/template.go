package model

import (
	"time"

	"gorm.io/datatypes"
)

// Frequency is a template's recurrence rule kind.
type Frequency string

const (
	FrequencyDaily    Frequency = "daily"
	FrequencyWeekly   Frequency = "weekly"
	FrequencyBiweekly Frequency = "biweekly"
	FrequencyMonthly  Frequency = "monthly"
)

// Valid reports whether f is a known frequency.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly:
		return true
	}
	return false
}

// RecurringTaskTemplate defines a recurrence rule plus the content stamped
// onto every task instance generated from it.
//
// Version is an explicit monotonic counter bumped transactionally on every
// field edit; instances record the version they were generated from (or
// last synced to), which is how staleness is detected.
type RecurringTaskTemplate struct {
	ID          uint   `gorm:"primaryKey"`
	Title       string `gorm:"not null"`
	Description string
	Type        string `gorm:"index"`
	Location    string `gorm:"index"`
	Priority    string `gorm:"default:medium"`

	Frequency  Frequency                      `gorm:"type:varchar(16);not null"`
	DaysOfWeek datatypes.JSONSlice[string]    // weekly only, weekday names
	DayOfMonth int                            // monthly; kept in schema, occurrence logic fires on last day of month
	StartDate  time.Time                      `gorm:"not null"`
	IsActive   bool                           `gorm:"default:true"`

	ChecklistTemplate datatypes.JSONSlice[ChecklistStep]
	Automation        datatypes.JSONType[AutomationSettings]

	Version   int `gorm:"not null;default:1"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Instances []TaskInstance `gorm:"foreignKey:RecurringTaskID"`
}

// AutomationSettings carries the template's tray-generation flags and flow
// stages, copied opaquely onto generated instances.
type AutomationSettings struct {
	GenerateTrays bool     `json:"generateTrays"`
	TrayCount     int      `json:"trayCount,omitempty"`
	FlowStages    []string `json:"flowStages,omitempty"`
}
