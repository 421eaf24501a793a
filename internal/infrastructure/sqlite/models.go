package sqlite

import "time"

// TabModel represents a row of the tabs table. Times are Unix seconds.
type TabModel struct {
	Scope      string
	TabID      string
	CreatedAt  int64
	LastSeenAt int64
}

// Created returns CreatedAt as a time.Time.
func (m TabModel) Created() time.Time {
	return time.Unix(m.CreatedAt, 0)
}

// LastSeen returns LastSeenAt as a time.Time.
func (m TabModel) LastSeen() time.Time {
	return time.Unix(m.LastSeenAt, 0)
}
