package stream

import "time"

// Level grades a user-facing notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is a transient message for the user, shown outside the log.
type Notification struct {
	Level     Level
	Message   string
	Timestamp time.Time
}
