package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/habitloop/habitloop/queue"
	"github.com/habitloop/habitloop/server"
	"github.com/habitloop/habitloop/server/analytics"
	"github.com/habitloop/habitloop/server/auth"
	"github.com/habitloop/habitloop/server/habits"
	"github.com/habitloop/habitloop/server/notifications/email"
	cache "github.com/habitloop/habitloop/storage/cache"
	storage "github.com/habitloop/habitloop/storage/persistent"
)

func main() {
	// Load the .env file
	err := godotenv.Load()
	if err != nil {
		fmt.Println("Error loading .env file")
	}

	// Read the environment variables
	signingKey := os.Getenv("JWT_SIGNING_KEY") // JWT signing key for token generation
	serverURL := os.Getenv("SERVER_URL")       // The URL where the server is running
	dbURI := os.Getenv("MONGODB_URI")          // MongoDB database URI
	dbName := os.Getenv("DB_NAME")             // The name of the MongoDB database
	smtpEmail := os.Getenv("SMTP_EMAIL")       // The email address used for sending welcome emails
	smtpPassword := os.Getenv("SMTP_PASS")     // The password for the email account
	redisURL := os.Getenv("REDIS_URL")         // The Redis URL for the email dedup cache
	rabbitMQURL := os.Getenv("RABBITMQ_URL")   // The URL for the RabbitMQ message broker
	numEmailProducers := 1                     // The number of email producers
	numEmailConsumers := 2                     // The number of email consumers
	ctx := context.Background()

	// The signing key gates every protected operation. There is no compiled-in
	// fallback: a deployment without one must not come up.
	if signingKey == "" {
		log.Fatal("JWT_SIGNING_KEY is required")
	}
	if dbURI == "" {
		log.Fatal("MONGODB_URI is required")
	}
	if dbName == "" {
		dbName = "habitloop"
	}
	if serverURL == "" {
		serverURL = "http://localhost:8080"
	}

	// Initialize the storage backend
	store, err := storage.NewStorage(dbName, dbURI)
	if err != nil {
		log.Fatalf("error initializing storage: %v", err)
	}

	// The welcome email pipeline is optional; without broker configuration the
	// API still serves every endpoint and registration simply skips the email.
	var emailQueue *queue.Queue
	if smtpEmail != "" && smtpPassword != "" && redisURL != "" && rabbitMQURL != "" {
		if _, err := email.InitEmailService(smtpEmail, smtpPassword); err != nil {
			log.Fatalf("error initializing email service: %v", err)
		}

		emailCache, err := cache.NewCache(redisURL, 72*time.Hour)
		if err != nil {
			log.Fatalf("error connecting to cache: %v", err)
		}

		emailQueue = queue.BuildEmailQueue(rabbitMQURL, numEmailProducers, numEmailConsumers, emailCache)

		// Start the queue consumers
		if _, err := emailQueue.StartConsumers(ctx); err != nil {
			log.Fatalf("error starting queue consumers: %v", err)
		}
	} else {
		log.Println("email configuration incomplete, welcome emails disabled")
	}

	// Initialize the services
	auth.InitAuth(store, signingKey, emailQueue)
	habits.InitHabits(store)
	analytics.InitAnalytics(store)

	// Start the API server
	go server.Start(serverURL)

	// Setting up the signal interrupt handler to gracefully shut down the server
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigs
	fmt.Println()
	fmt.Println(sig)

	if err := store.Disconnect(); err != nil {
		log.Printf("error disconnecting from storage: %v", err)
	}
}
