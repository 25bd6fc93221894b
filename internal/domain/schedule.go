package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// ScheduleSentinel is the wire value for "now" (provision) and "never" (remove).
const ScheduleSentinel int64 = -1

// ScheduleTime is either the sentinel (provision now / never remove) or a
// fixed point in time. The zero value is the sentinel.
type ScheduleTime struct {
	at  time.Time
	set bool
}

// Now schedules provisioning immediately.
func Now() ScheduleTime { return ScheduleTime{} }

// Never leaves a circuit in place indefinitely.
func Never() ScheduleTime { return ScheduleTime{} }

// At schedules for a specific time, truncated to whole seconds.
func At(t time.Time) ScheduleTime {
	return ScheduleTime{at: time.Unix(t.Unix(), 0).UTC(), set: true}
}

// ScheduleFromEpoch decodes the wire representation.
func ScheduleFromEpoch(v int64) ScheduleTime {
	if v < 0 {
		return ScheduleTime{}
	}
	return At(time.Unix(v, 0))
}

// IsSentinel reports whether the value is "now" or "never".
func (s ScheduleTime) IsSentinel() bool { return !s.set }

// Time returns the scheduled time and false for the sentinel.
func (s ScheduleTime) Time() (time.Time, bool) { return s.at, s.set }

// Epoch returns epoch seconds, or -1 for the sentinel.
func (s ScheduleTime) Epoch() int64 {
	if !s.set {
		return ScheduleSentinel
	}
	return s.at.Unix()
}

// BeforeEpoch reports whether a fixed time has no wire encoding because it
// would read back as the sentinel.
func (s ScheduleTime) BeforeEpoch() bool { return s.set && s.at.Unix() < 0 }

// Resolve returns the scheduled time, or fallback for the sentinel.
func (s ScheduleTime) Resolve(fallback time.Time) time.Time {
	if !s.set {
		return fallback
	}
	return s.at
}

func (s ScheduleTime) Equal(o ScheduleTime) bool {
	return s.set == o.set && s.at.Equal(o.at)
}

func (s ScheduleTime) String() string {
	if !s.set {
		return "-1"
	}
	return s.at.Format(time.RFC3339)
}

// MarshalJSON encodes as epoch seconds or -1.
func (s ScheduleTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Epoch())
}

// UnmarshalJSON accepts whole epoch seconds or -1. A float is accepted when
// it has no fractional part.
func (s *ScheduleTime) UnmarshalJSON(data []byte) error {
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("schedule time: %w", err)
	}
	if v != math.Trunc(v) {
		return fmt.Errorf("schedule time %s is not whole seconds: %w", data, ErrInvalidInput)
	}
	if v < 0 && v != float64(ScheduleSentinel) {
		return fmt.Errorf("schedule time %s is before 1970: %w", data, ErrInvalidInput)
	}
	*s = ScheduleFromEpoch(int64(v))
	return nil
}
