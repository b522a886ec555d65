package scoreboardservice

import "time"

// Clock abstracts wall time so cache expiry and backend refresh can be tested.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }
