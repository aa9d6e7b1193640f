package model

import "time"

// Session identifies one logical client connection. The generation is drawn
// from a store-wide monotonic counter at session creation, so two sessions
// for the same identity can always be ordered without parsing identifier
// formats: the higher generation is the newer session.
type Session struct {
	ID         string    `json:"id"`
	Generation int64     `json:"generation"`
	IssuedAt   time.Time `json:"issued_at"`
}

// Newer reports whether s supersedes the session that produced generation
// other. Records written before generations existed carry 0 and lose
// against any real session.
func (s Session) Newer(other int64) bool { return s.Generation > other }
