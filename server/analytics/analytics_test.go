package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/habitloop/habitloop/models"
)

var today = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

// logAt builds a daily log offset days before today.
func logAt(offset int, completed bool) models.DailyLog {
	return models.DailyLog{
		Date:      today.AddDate(0, 0, -offset).Format("2006-01-02"),
		Completed: completed,
	}
}

func TestComputeEmptyHistory(t *testing.T) {
	snapshot := Compute(nil, today)
	assert.Equal(t, 0, snapshot.Streak)
	assert.Equal(t, 0.0, snapshot.CompletionRate)
}

func TestComputeStreakStopsAtFirstGap(t *testing.T) {
	logs := []models.DailyLog{
		logAt(0, true),
		logAt(1, true),
		logAt(2, true),
		// no log for offset 3
		logAt(4, true),
	}

	snapshot := Compute(logs, today)
	assert.Equal(t, 3, snapshot.Streak)
}

func TestComputeStreakZeroWithoutToday(t *testing.T) {
	logs := []models.DailyLog{
		logAt(1, true),
		logAt(2, true),
		logAt(3, true),
	}

	snapshot := Compute(logs, today)
	assert.Equal(t, 0, snapshot.Streak)
}

func TestComputeUncompletedLogBreaksStreak(t *testing.T) {
	logs := []models.DailyLog{
		logAt(0, false),
		logAt(1, true),
	}

	snapshot := Compute(logs, today)
	assert.Equal(t, 0, snapshot.Streak)
	assert.Equal(t, 50.0, snapshot.CompletionRate)
}

func TestCompletionRate(t *testing.T) {
	var logs []models.DailyLog
	for i := 0; i < 10; i++ {
		logs = append(logs, logAt(i, i < 7))
	}

	snapshot := Compute(logs, today)
	assert.Equal(t, 70.0, snapshot.CompletionRate)
}

func TestComputeStreakNeverPassesLookbackBoundary(t *testing.T) {
	var logs []models.DailyLog
	for i := 0; i < 40; i++ {
		logs = append(logs, logAt(i, true))
	}

	snapshot := Compute(logs, today)
	assert.Equal(t, LookbackDays+1, snapshot.Streak)
}

func TestComputeMergesHabitsPerDay(t *testing.T) {
	// Two habits checked in on the same day count that day once for the streak.
	logs := []models.DailyLog{
		logAt(0, true),
		logAt(0, true),
		logAt(1, true),
	}

	snapshot := Compute(logs, today)
	assert.Equal(t, 2, snapshot.Streak)
	assert.Equal(t, 100.0, snapshot.CompletionRate)
}
