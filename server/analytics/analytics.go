package analytics

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/habitloop/habitloop/models"
	storage "github.com/habitloop/habitloop/storage/persistent"
)

// LookbackDays bounds how far back analytics look. Logs older than the window
// contribute to neither the streak nor the completion rate.
const LookbackDays = 30

// store holds an interface to the storage system (database).
var store storage.StorageInterface

// InitAnalytics initializes the analytics service with its storage backend.
// It is required to be called before any other function in this package.
func InitAnalytics(s storage.StorageInterface) {
	store = s
}

// Compute derives the analytics snapshot from a set of daily logs. It is a
// pure function of the logs and the given day, so the snapshot can always be
// re-derived from history; no counter is ever stored.
//
// The completion rate is the percentage of logs in the set that are completed,
// 0 when the set is empty. The streak walks backward from today one calendar
// day at a time and counts consecutive days with a completed log, stopping at
// the first gap; a day without a completed log today means a streak of 0
// regardless of prior history. The walk never passes the lookback boundary.
func Compute(logs []models.DailyLog, today time.Time) models.Snapshot {
	completedDates := make(map[string]bool)
	completedCount := 0
	for _, dailyLog := range logs {
		if dailyLog.Completed {
			completedDates[dailyLog.Date] = true
			completedCount++
		}
	}

	completionRate := 0.0
	if len(logs) > 0 {
		completionRate = 100 * float64(completedCount) / float64(len(logs))
	}

	streak := 0
	day := today
	for i := 0; i <= LookbackDays; i++ {
		if !completedDates[day.Format("2006-01-02")] {
			break
		}
		streak++
		day = day.AddDate(0, 0, -1)
	}

	return models.Snapshot{
		Streak:         streak,
		CompletionRate: completionRate,
	}
}

// CurrentSnapshot loads the principal's logs within the lookback window and
// computes the snapshot for today. The read has no side effects.
func CurrentSnapshot(ctx context.Context, principal models.Principal) (*models.Snapshot, error) {
	uid, err := primitive.ObjectIDFromHex(principal.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid principal id: %v", err)
	}

	today := time.Now().UTC()
	windowStart := today.AddDate(0, 0, -LookbackDays).Format("2006-01-02")

	logs, err := store.FindDailyLogs(ctx, bson.M{
		"user_id": uid,
		"date":    bson.M{"$gte": windowStart},
	})
	if err != nil {
		return nil, fmt.Errorf("loading log history: %w", err)
	}

	snapshot := Compute(logs, today)
	return &snapshot, nil
}
