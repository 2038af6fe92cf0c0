// Package clock abstracts wall-clock access so time-dependent logic stays testable.
package clock

import "time"

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}
