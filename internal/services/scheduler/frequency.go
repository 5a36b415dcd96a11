package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/vantage/internal/models"
)

// biweeklyMinGap is the minimum gap between biweekly runs. Cron has no
// fortnight field, so biweekly schedules fire on the weekly cadence and a
// gate skips fires that land inside the gap.
const biweeklyMinGap = 13 * 24 * time.Hour

// CronExprFor maps a schedule frequency to a cron expression. Named
// frequencies fire at the given hour; custom schedules pass through their
// validated expression.
func CronExprFor(config *models.ScheduleConfig, fireHour int) (string, error) {
	switch config.Frequency {
	case models.FrequencyDaily:
		return fmt.Sprintf("0 %d * * *", fireHour), nil
	case models.FrequencyWeekly, models.FrequencyBiweekly:
		return fmt.Sprintf("0 %d * * 1", fireHour), nil
	case models.FrequencyMonthly:
		return fmt.Sprintf("0 %d 1 * *", fireHour), nil
	case models.FrequencyCustom:
		if config.CronExpr == "" {
			return "", fmt.Errorf("custom frequency requires a cron expression")
		}
		return config.CronExpr, nil
	default:
		return "", fmt.Errorf("unknown frequency: %s", config.Frequency)
	}
}

// NextRun computes the next fire time for a schedule after now. Pure
// function of the frequency, the configured fire hour and now.
func NextRun(config *models.ScheduleConfig, fireHour int, now time.Time) (time.Time, error) {
	expr, err := CronExprFor(config, fireHour)
	if err != nil {
		return time.Time{}, err
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron expression '%s': %w", expr, err)
	}

	return schedule.Next(now), nil
}

// biweeklyGateOpen reports whether a biweekly schedule may fire given the
// start time of its last successful run. A zero lastSuccess always opens the
// gate.
func biweeklyGateOpen(lastSuccess, now time.Time) bool {
	if lastSuccess.IsZero() {
		return true
	}
	return now.Sub(lastSuccess) >= biweeklyMinGap
}
