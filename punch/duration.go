package punch

import (
	"math"
	"time"
)

// DurationMinutes is the rounded whole-minute length of a punch. ok is false
// when out precedes in.
func DurationMinutes(in, out time.Time) (minutes int, ok bool) {
	if out.Before(in) {
		return 0, false
	}
	return int(math.Round(out.Sub(in).Seconds() / 60)), true
}
