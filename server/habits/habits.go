package habits

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/habitloop/habitloop/models"
	storage "github.com/habitloop/habitloop/storage/persistent"
)

// store holds an interface to the storage system (database).
var store storage.StorageInterface

// ErrHabitNotFound is returned when a habit does not exist or is owned by a
// different user. The two cases are indistinguishable on purpose: a caller
// must not be able to probe for the existence of someone else's habits.
var ErrHabitNotFound = errors.New("habit not found")

// InitHabits initializes the habit service with its storage backend.
// It is required to be called before any other function in this package.
func InitHabits(s storage.StorageInterface) {
	store = s
}

// ownedHabit fetches a habit by id and enforces that it belongs to the given
// principal. Every mutation and check-in goes through this gate before
// touching any state.
func ownedHabit(ctx context.Context, principal models.Principal, habitID string) (*models.Habit, error) {
	hid, err := primitive.ObjectIDFromHex(habitID)
	if err != nil {
		return nil, ErrHabitNotFound
	}
	uid, err := primitive.ObjectIDFromHex(principal.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid principal id: %v", err)
	}

	habit, err := store.FindHabit(ctx, bson.M{"_id": hid})
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrHabitNotFound
		}
		return nil, fmt.Errorf("looking up habit: %w", err)
	}

	if habit.UserID != uid {
		return nil, ErrHabitNotFound
	}

	return habit, nil
}

// CreateHabit creates a new habit owned by the principal.
func CreateHabit(ctx context.Context, principal models.Principal, name, description string, targetFrequency int) (*models.Habit, error) {
	uid, err := primitive.ObjectIDFromHex(principal.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid principal id: %v", err)
	}

	now := time.Now().UTC()
	habit := &models.Habit{
		UserID:          uid,
		Name:            name,
		Description:     description,
		TargetFrequency: targetFrequency,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	habit, err = store.AddHabit(ctx, habit)
	if err != nil {
		return nil, fmt.Errorf("creating habit: %w", err)
	}
	return habit, nil
}

// ListHabits returns the principal's habits, newest first.
func ListHabits(ctx context.Context, principal models.Principal) ([]models.Habit, error) {
	uid, err := primitive.ObjectIDFromHex(principal.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid principal id: %v", err)
	}

	habitList, err := store.FindHabits(ctx, bson.M{"user_id": uid})
	if err != nil {
		return nil, fmt.Errorf("listing habits: %w", err)
	}
	return habitList, nil
}

// UpdateHabit updates a habit owned by the principal.
// Returns ErrHabitNotFound if the habit does not exist or belongs to someone else.
func UpdateHabit(ctx context.Context, principal models.Principal, habitID, name, description string, targetFrequency int) (*models.Habit, error) {
	habit, err := ownedHabit(ctx, principal, habitID)
	if err != nil {
		return nil, err
	}

	update := bson.M{
		"$set": bson.M{
			"name":             name,
			"description":      description,
			"target_frequency": targetFrequency,
			"updated_at":       time.Now().UTC(),
		},
	}

	if _, err := store.UpdateHabit(ctx, bson.M{"_id": habit.ID}, update); err != nil {
		return nil, fmt.Errorf("updating habit: %w", err)
	}

	updated, err := store.FindHabit(ctx, bson.M{"_id": habit.ID})
	if err != nil {
		return nil, fmt.Errorf("reloading habit: %w", err)
	}
	return updated, nil
}

// DeleteHabit deletes a habit owned by the principal along with its daily logs.
// Returns ErrHabitNotFound if the habit does not exist or belongs to someone else.
func DeleteHabit(ctx context.Context, principal models.Principal, habitID string) error {
	habit, err := ownedHabit(ctx, principal, habitID)
	if err != nil {
		return err
	}

	if _, err := store.DeleteHabit(ctx, bson.M{"_id": habit.ID}); err != nil {
		return fmt.Errorf("deleting habit: %w", err)
	}
	return nil
}

// LogCompletion records the completion state of a habit for one calendar day.
//
// The ownership check runs before any log mutation. The write itself is a
// single atomic insert-or-update keyed on the unique (habit_id, date) pair, so
// the operation is idempotent: repeating it leaves exactly one log, and
// repeating it with a different completed value toggles that log in place.
//
// Returns the resulting log and whether it was newly created.
func LogCompletion(ctx context.Context, principal models.Principal, habitID, date string, completed bool) (*models.DailyLog, bool, error) {
	habit, err := ownedHabit(ctx, principal, habitID)
	if err != nil {
		return nil, false, err
	}

	dailyLog, created, err := store.UpsertDailyLog(ctx, habit.ID, habit.UserID, date, completed)
	if err != nil {
		return nil, false, fmt.Errorf("upserting daily log: %w", err)
	}
	return dailyLog, created, nil
}

// TodayLogs returns the principal's daily logs for the current calendar day.
func TodayLogs(ctx context.Context, principal models.Principal) ([]models.DailyLog, error) {
	uid, err := primitive.ObjectIDFromHex(principal.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid principal id: %v", err)
	}

	today := time.Now().UTC().Format("2006-01-02")
	logs, err := store.FindDailyLogs(ctx, bson.M{"user_id": uid, "date": today})
	if err != nil {
		return nil, fmt.Errorf("listing daily logs: %w", err)
	}
	return logs, nil
}
