package analysis

import "time"

// TimeoutPolicy decides when a job has waited long enough.
type TimeoutPolicy interface {
	Exceeded(elapsed time.Duration) bool
}

// NoTimeout never gives up.
type NoTimeout struct{}

func (NoTimeout) Exceeded(time.Duration) bool { return false }

// MaxWait gives up once a job has been pending or running for longer than
// the duration. A non-positive MaxWait behaves like NoTimeout.
type MaxWait time.Duration

func (m MaxWait) Exceeded(elapsed time.Duration) bool {
	return m > 0 && elapsed > time.Duration(m)
}
