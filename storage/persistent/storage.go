package storage

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/habitloop/habitloop/models"
)

// DeleteResult represents the result of a deletion operation in MongoDB,
// specifically the count of documents deleted.
type DeleteResult struct {
	DeletedCount int64
}

// UpdateResult represents the result of an update operation in MongoDB,
// specifically the count of documents matched and modified.
type UpdateResult struct {
	MatchedCount  int64
	ModifiedCount int64
}

// StorageInterface defines the set of methods that any persistent storage
// backend needs to implement.
type StorageInterface interface {
	// Establishes a connection to the storage backend.
	Connect(dbName, uri string) error
	// Disconnects from the storage backend.
	Disconnect() error
	// Adds a new user to the storage backend.
	AddUser(ctx context.Context, user *models.User) (*models.User, error)
	// Finds a user in the storage backend using a filter.
	FindUser(ctx context.Context, filter interface{}) (*models.User, error)
	// Adds a new habit to the storage backend.
	AddHabit(ctx context.Context, habit *models.Habit) (*models.Habit, error)
	// Finds a single habit in the storage backend using a filter.
	FindHabit(ctx context.Context, filter interface{}) (*models.Habit, error)
	// Finds habits in the storage backend using a filter, newest first.
	FindHabits(ctx context.Context, filter interface{}) ([]models.Habit, error)
	// Updates an existing habit in the storage backend using a filter and update instructions.
	UpdateHabit(ctx context.Context, filter interface{}, update interface{}) (*UpdateResult, error)
	// Deletes habits in the storage backend using a filter, cascading to their daily logs.
	DeleteHabit(ctx context.Context, filter interface{}) (*DeleteResult, error)
	// Atomically inserts or updates the single daily log identified by
	// (habitID, date). Reports whether a new log was created.
	UpsertDailyLog(ctx context.Context, habitID, userID primitive.ObjectID, date string, completed bool) (*models.DailyLog, bool, error)
	// Finds daily logs in the storage backend using a filter.
	FindDailyLogs(ctx context.Context, filter interface{}) ([]models.DailyLog, error)
}

// NewStorage creates a new StorageInterface with a MongoDB backend,
// using the provided URI to connect to the MongoDB server.
func NewStorage(dbName, uri string) (StorageInterface, error) {
	storage := NewMongoStorage()
	err := storage.Connect(dbName, uri)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return storage, nil
}
