package domain

import "fmt"

// User is the per-chat reminder preference. ReminderHour is an hour of the
// day in UTC.
type User struct {
	ChatID       string
	UserName     string
	FirstName    string
	LastName     string
	ReminderHour int
}

// Sender describes who issued a command.
type Sender struct {
	UserName  string
	FirstName string
	LastName  string
}

// ValidateReminderHour checks that hour is in 0..23.
func ValidateReminderHour(hour int) error {
	if hour < 0 || hour > 23 {
		return fmt.Errorf("reminder hour %d out of range", hour)
	}
	return nil
}
