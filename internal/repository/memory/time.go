package memory

import "time"

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// firstTime keeps an already-set timestamp.
func firstTime(current, next *time.Time) *time.Time {
	if current != nil {
		return current
	}
	return copyTime(next)
}
