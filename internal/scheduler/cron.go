package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser — парсер cron-выражений (5 полей, без секунд).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseCron разбирает cron-выражение.
func ParseCron(expr string) (cron.Schedule, error) {
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return schedule, nil
}

// NextRun вычисляет следующее время запуска после from в часовом поясе loc.
// Результат в UTC.
func NextRun(schedule cron.Schedule, loc *time.Location, from time.Time) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return schedule.Next(from.In(loc)).UTC()
}

// ValidateCronExpr проверяет валидность cron-выражения.
func ValidateCronExpr(expr string) error {
	_, err := ParseCron(expr)
	return err
}
