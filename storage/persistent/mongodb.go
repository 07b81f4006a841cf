package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/habitloop/habitloop/models"
)

// MongoStorage is a struct representing a MongoDB storage.
// It provides an interface to perform CRUD operations on various collections in the MongoDB database.
type MongoStorage struct {
	client *mongo.Client
	dbName string
}

// NewMongoStorage creates a new instance of MongoStorage.
// This function doesn't establish a connection to the MongoDB server.
// To connect to the server, use the Connect method of the returned MongoStorage instance.
func NewMongoStorage() *MongoStorage {
	return &MongoStorage{}
}

// Connect establishes a connection to the MongoDB server at the given URI and database name.
// Sets up indexes and unique constraints as necessary.
// Returns an error if any issues are encountered.
func (m *MongoStorage) Connect(dbName, uri string) error {

	// Set a timeout for the connection
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Create the client options for the connection
	clientOptions := options.Client().ApplyURI(uri)
	// Connect to the MongoDB server
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return fmt.Errorf("error connecting to MongoDB: %v", err)
	}

	// Save the client in the MongoStorage structure
	// Save the database name that we are connecting to
	m.client = client
	m.dbName = dbName

	// Initializing users collection
	usersCollection := m.client.Database(m.dbName).Collection("users")

	// Create an index on the "email" field. This is to ensure that every user has a unique email.
	// It will also speed up queries on the "email" field
	emailIndexModel := mongo.IndexModel{
		Keys: bson.M{
			"email": 1, // 1 for ascending order
		},
		Options: options.Index().SetUnique(true),
	}

	// Create the email index
	_, err = usersCollection.Indexes().CreateOne(ctx, emailIndexModel)
	if err != nil {
		return fmt.Errorf("error creating email index: %v", err)
	}

	// Initializing habits collection
	habitsCollection := m.client.Database(m.dbName).Collection("habits")

	// Create an index on the "user_id" field. This will speed up queries on the "user_id" field
	userIdIndexModel := mongo.IndexModel{
		Keys: bson.M{
			"user_id": 1, // 1 for ascending order
		},
		Options: options.Index(),
	}

	// Create the user_id index
	_, err = habitsCollection.Indexes().CreateOne(ctx, userIdIndexModel)
	if err != nil {
		return fmt.Errorf("error creating user_id index: %v", err)
	}

	// Initializing dailyLogs collection
	dailyLogsCollection := m.client.Database(m.dbName).Collection("daily_logs")

	// Create a compound unique index on the "habit_id" and "date" fields.
	// This is the invariant the check-in path relies on: at most one log per
	// habit per calendar day. Concurrent check-ins for the same pair are
	// serialized here, by the database, not by any in-process lock.
	habitIdDateIndexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "habit_id", Value: 1}, // 1 for ascending order
			{Key: "date", Value: 1},     // 1 for ascending order
		},
		Options: options.Index().SetUnique(true),
	}

	// Create the habit_id and date index
	_, err = dailyLogsCollection.Indexes().CreateOne(ctx, habitIdDateIndexModel)
	if err != nil {
		return fmt.Errorf("error creating habit_id and date index: %v", err)
	}

	// Create a compound index on the "user_id" and "date" fields.
	// This speeds up the windowed analytics query and the daily log listing.
	userIdDateIndexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "user_id", Value: 1},
			{Key: "date", Value: 1},
		},
		Options: options.Index(),
	}

	// Create the user_id and date index
	_, err = dailyLogsCollection.Indexes().CreateOne(ctx, userIdDateIndexModel)
	if err != nil {
		return fmt.Errorf("error creating user_id and date index: %v", err)
	}

	return nil
}

// Disconnect closes the connection to the MongoDB server.
// It should be called when the MongoStorage instance is no longer needed.
// Returns an error if the disconnection process fails.
func (m *MongoStorage) Disconnect() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := m.client.Disconnect(ctx)
	if err != nil {
		return fmt.Errorf("error disconnecting from MongoDB: %v", err)
	}

	return nil
}

// AddUser adds a new user document to the 'users' collection.
// The user is provided as a pointer to a User instance.
// Returns the added user instance and an error if the insert operation fails.
// A duplicate email surfaces as a mongo duplicate key error for the caller to map.
func (m *MongoStorage) AddUser(ctx context.Context, user *models.User) (*models.User, error) {
	collection := m.client.Database(m.dbName).Collection("users")
	result, err := collection.InsertOne(ctx, user)
	if err != nil {
		return nil, err
	}

	user.ID = result.InsertedID.(primitive.ObjectID)
	return user, nil
}

// FindUser finds a user document in the 'users' collection that matches the given filter.
// Returns the found user as a User instance and an error if the find operation fails.
func (m *MongoStorage) FindUser(ctx context.Context, filter interface{}) (*models.User, error) {
	collection := m.client.Database(m.dbName).Collection("users")
	result := collection.FindOne(ctx, filter)
	user := &models.User{}
	err := result.Decode(user)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// AddHabit adds a new habit document to the 'habits' collection.
// The habit is provided as a pointer to a Habit instance.
// Returns the added habit instance and an error if the insert operation fails.
func (m *MongoStorage) AddHabit(ctx context.Context, habit *models.Habit) (*models.Habit, error) {
	collection := m.client.Database(m.dbName).Collection("habits")
	result, err := collection.InsertOne(ctx, habit)
	if err != nil {
		return nil, err
	}

	habit.ID = result.InsertedID.(primitive.ObjectID)
	return habit, nil
}

// FindHabit finds a single habit document in the 'habits' collection that matches the given filter.
// Returns mongo.ErrNoDocuments if no habit matches.
func (m *MongoStorage) FindHabit(ctx context.Context, filter interface{}) (*models.Habit, error) {
	collection := m.client.Database(m.dbName).Collection("habits")
	habit := &models.Habit{}
	err := collection.FindOne(ctx, filter).Decode(habit)
	if err != nil {
		return nil, err
	}
	return habit, nil
}

// FindHabits finds habit documents in the 'habits' collection that match the given filter,
// ordered newest first.
// Returns the found habits as a slice of Habit instances and an error if the find operation fails.
func (m *MongoStorage) FindHabits(ctx context.Context, filter interface{}) ([]models.Habit, error) {
	collection := m.client.Database(m.dbName).Collection("habits")
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var habits []models.Habit
	for cursor.Next(ctx) {
		var habit models.Habit
		err := cursor.Decode(&habit)
		if err != nil {
			return nil, err
		}
		habits = append(habits, habit)
	}

	return habits, cursor.Err()
}

// UpdateHabit updates a habit document in the 'habits' collection that matches the given filter with the provided update.
// Returns the result of the update operation as an UpdateResult instance and an error if the update operation fails.
func (m *MongoStorage) UpdateHabit(ctx context.Context, filter interface{}, update interface{}) (*UpdateResult, error) {
	collection := m.client.Database(m.dbName).Collection("habits")
	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return nil, err
	}
	return &UpdateResult{MatchedCount: result.MatchedCount, ModifiedCount: result.ModifiedCount}, nil
}

// DeleteHabit deletes habit documents from the 'habits' collection that match the given filter.
// Daily logs belonging to the deleted habits are removed as a cascade.
// Returns the result of the delete operation as a DeleteResult instance and an error if the delete operation fails.
func (m *MongoStorage) DeleteHabit(ctx context.Context, filter interface{}) (*DeleteResult, error) {
	collection := m.client.Database(m.dbName).Collection("habits")

	cursor, err := collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	var habitIDs []primitive.ObjectID
	for cursor.Next(ctx) {
		var habit models.Habit
		if err := cursor.Decode(&habit); err != nil {
			cursor.Close(ctx)
			return nil, err
		}
		habitIDs = append(habitIDs, habit.ID)
	}
	cursor.Close(ctx)
	if err := cursor.Err(); err != nil {
		return nil, err
	}

	if len(habitIDs) > 0 {
		logsCollection := m.client.Database(m.dbName).Collection("daily_logs")
		_, err = logsCollection.DeleteMany(ctx, bson.M{"habit_id": bson.M{"$in": habitIDs}})
		if err != nil {
			return nil, err
		}
	}

	result, err := collection.DeleteMany(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &DeleteResult{DeletedCount: result.DeletedCount}, nil
}

// UpsertDailyLog performs a single conditional write keyed on the unique
// (habit_id, date) pair: the log is inserted when absent, otherwise its
// completed flag and created_at are overwritten in place. There is no
// read-then-insert window, so concurrent check-ins for the same pair can never
// produce two documents.
//
// Two truly simultaneous upserts may still both take the insert path; the
// unique index rejects the second with a duplicate key error, and that writer's
// operation is completed as a plain update against the now-existing document.
// Returns the resulting log and whether it was newly created.
func (m *MongoStorage) UpsertDailyLog(ctx context.Context, habitID, userID primitive.ObjectID, date string, completed bool) (*models.DailyLog, bool, error) {
	collection := m.client.Database(m.dbName).Collection("daily_logs")

	filter := bson.M{"habit_id": habitID, "date": date}
	update := bson.M{
		"$set": bson.M{
			"completed":  completed,
			"created_at": time.Now().UTC(),
		},
		"$setOnInsert": bson.M{
			"user_id": userID,
		},
	}

	result, err := collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		if !mongo.IsDuplicateKeyError(err) {
			return nil, false, err
		}
		// Lost the insert race; the document exists now, so a plain update
		// completes the operation.
		result, err = collection.UpdateOne(ctx, filter, update)
		if err != nil {
			return nil, false, err
		}
	}

	created := result.UpsertedCount > 0

	log := &models.DailyLog{}
	if err := collection.FindOne(ctx, filter).Decode(log); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, false, fmt.Errorf("daily log for habit %s on %s vanished after upsert", habitID.Hex(), date)
		}
		return nil, false, err
	}

	return log, created, nil
}

// FindDailyLogs finds daily log documents in the 'daily_logs' collection that match the given filter,
// ordered by date descending.
// Returns the found logs as a slice of DailyLog instances and an error if the find operation fails.
func (m *MongoStorage) FindDailyLogs(ctx context.Context, filter interface{}) ([]models.DailyLog, error) {
	collection := m.client.Database(m.dbName).Collection("daily_logs")
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}})
	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var logs []models.DailyLog
	for cursor.Next(ctx) {
		var log models.DailyLog
		err := cursor.Decode(&log)
		if err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}

	return logs, cursor.Err()
}
