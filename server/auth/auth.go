package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"github.com/habitloop/habitloop/models"
	"github.com/habitloop/habitloop/queue"
	storage "github.com/habitloop/habitloop/storage/persistent"
)

// store holds an interface to the storage system (database).
var store storage.StorageInterface

// jwtSigningKey holds the key used for signing and verifying JWT tokens.
var jwtSigningKey string

// emailQueue stores a reference to the messaging queue used to process and
// send welcome emails. It may be nil, in which case registration skips the
// email.
var emailQueue *queue.Queue

// Sentinel failures of the authentication service. The handler layer maps
// these to status codes; everything else is treated as a persistence failure.
var (
	ErrInvalidCredentials = errors.New("authentication failed")
	ErrEmailTaken         = errors.New("an account with this email already exists")
	ErrUserNotFound       = errors.New("user not found")
)

// InitAuth initializes the authentication service.
//
// It accepts three arguments:
// - s: the storage backend holding user records.
// - signingKey: the key used to sign JWT tokens.
// - q: the queue used to deliver welcome emails, or nil to disable them.
//
// It is required to be called before any other function in this package.
func InitAuth(s storage.StorageInterface, signingKey string, q *queue.Queue) {
	store = s
	jwtSigningKey = signingKey
	emailQueue = q
}

// SignUp registers a new user with the provided name, email, password and role.
//
// It checks that no account exists for the email, hashes the password, creates
// the user record, publishes a welcome email onto the queue, and issues a
// session token for the new principal.
//
// The function returns the created user, a signed session token, and an error
// if there was a problem with any step of the process.
func SignUp(ctx context.Context, name, email, password, role string) (*models.User, string, error) {

	foundUser, err := store.FindUser(ctx, bson.M{"email": email})
	if err != nil && err != mongo.ErrNoDocuments {
		return nil, "", fmt.Errorf("looking up email: %w", err)
	}

	if foundUser != nil {
		return nil, "", ErrEmailTaken
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", err
	}

	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hashedPassword),
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}

	user, err = store.AddUser(ctx, user)
	if err != nil {
		// The unique index on email closes the race between the existence
		// check above and this insert.
		if mongo.IsDuplicateKeyError(err) {
			return nil, "", ErrEmailTaken
		}
		return nil, "", fmt.Errorf("creating user: %w", err)
	}

	if emailQueue != nil {
		emailMsg := &queue.EmailMessage{
			Id:   user.ID.Hex(),
			Name: user.Name,
			To:   user.Email,
		}
		// Delivery is asynchronous; a queueing problem must not fail the
		// registration that already committed.
		if err := queue.ProcessEmail(emailMsg, emailQueue); err != nil {
			log.Printf("failed to enqueue welcome email for %s: %v", user.ID.Hex(), err)
		}
	}

	token, err := IssueToken(models.Principal{ID: user.ID.Hex(), Email: user.Email, Role: user.Role})
	if err != nil {
		return nil, "", err
	}

	return user, token, nil
}

// SignIn authenticates a user by email and password.
//
// It finds the user in the database by their email and compares the stored
// hash with the provided password. Both an unknown email and a wrong password
// collapse to ErrInvalidCredentials so the response never reveals which one
// failed.
//
// The function returns the user, a signed session token, and an error if there
// was a problem with any step of the process.
func SignIn(ctx context.Context, email, password string) (*models.User, string, error) {

	foundUser, err := store.FindUser(ctx, bson.M{"email": email})
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("looking up user: %w", err)
	}

	err = bcrypt.CompareHashAndPassword([]byte(foundUser.PasswordHash), []byte(password))
	if err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := IssueToken(models.Principal{ID: foundUser.ID.Hex(), Email: foundUser.Email, Role: foundUser.Role})
	if err != nil {
		return nil, "", err
	}

	return foundUser, token, nil
}

// CurrentUser loads the stored user record behind an authenticated principal.
func CurrentUser(ctx context.Context, principal models.Principal) (*models.User, error) {
	objectID, err := primitive.ObjectIDFromHex(principal.ID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	foundUser, err := store.FindUser(ctx, bson.M{"_id": objectID})
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	return foundUser, nil
}
