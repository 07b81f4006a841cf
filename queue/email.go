package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/streadway/amqp"

	"github.com/habitloop/habitloop/server/notifications/email"
	storage "github.com/habitloop/habitloop/storage/cache"
)

// globalCount is used in the round robin algorithm to assign producers to each email message.
var globalCount int

// EmailProducerFactory is a struct for creating new EmailProducer instances.
type EmailProducerFactory struct{}

// EmailConsumerFactory is a struct for creating new EmailConsumer instances.
// It contains a Cache which is an interface to the cache service.
type EmailConsumerFactory struct {
	Cache storage.CacheInterface
}

// EmailProducer manages the connection, channel, and queue of the AMQP message producer for emails.
type EmailProducer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   *amqp.Queue
}

// EmailConsumer manages the connection, channel, queue and cache of the AMQP message consumer for emails.
type EmailConsumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   *amqp.Queue
	cache   storage.CacheInterface
}

// EmailMessage is the content of a queued welcome email.
type EmailMessage struct {
	Id   string `json:"id"`   // the id of the message, used for once-only processing
	Name string `json:"name"` // the display name of the new user
	To   string `json:"to"`   // the recipient of the message
}

// CreateProducer creates a new EmailProducer bound to the given connection, channel and queue.
func (f *EmailProducerFactory) CreateProducer(conn *amqp.Connection, ch *amqp.Channel, queue *amqp.Queue) (Producer, error) {
	return &EmailProducer{
		conn:    conn,
		channel: ch,
		queue:   queue,
	}, nil
}

// CreateConsumer creates a new EmailConsumer bound to the given connection, channel, queue and cache.
func (f *EmailConsumerFactory) CreateConsumer(conn *amqp.Connection, ch *amqp.Channel, queue *amqp.Queue) (Consumer, error) {
	return &EmailConsumer{
		conn:    conn,
		channel: ch,
		queue:   queue,
		cache:   f.Cache,
	}, nil
}

// Publish publishes a message body to the email queue.
// Returns an error if there was a problem with publishing the message.
func (ep *EmailProducer) Publish(body []byte) error {
	err := ep.channel.Publish(
		"",            // exchange
		ep.queue.Name, // routing key
		false,         // mandatory
		false,         // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		})
	if err != nil {
		return fmt.Errorf("failed to publish a message: %w", err)
	}

	return nil
}

// Consume sets up a consumer on the queue and launches a goroutine that continuously reads from it.
// Each message is unmarshalled, checked against the cache for once-only processing, and either
// delivered as a welcome email or discarded.
// The function returns the channel of deliveries from the queue and an error if there was a problem setting up the consumer.
func (ec *EmailConsumer) Consume(ctx context.Context) (<-chan amqp.Delivery, error) {
	msgs, err := ec.channel.Consume(
		ec.queue.Name,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, err
	}

	// Deploy the consumer worker to read messages from the queue.
	go func() {
		for {
			select {
			case d, ok := <-msgs:

				if !ok {
					return
				}

				message := &EmailMessage{}
				if err := json.Unmarshal(d.Body, message); err != nil {
					log.Printf("failed to unmarshal email message: %v", err)
					d.Nack(false, true) // requeue the message in case of transient error.
					continue
				}

				// Fetch processed state from cache
				processed, err := ec.cache.Get(ctx, "welcome_"+message.Id)
				if err != nil {
					// Ignore cache misses, handle other errors
					if err.Error() != "key does not exist" {
						log.Printf("error checking cache: %v", err)
						d.Nack(false, true) // requeue the message in case of transient error.
						continue
					}
				}

				if processed != nil {
					d.Ack(false)
					continue
				}

				// At this point, we know the message has not been processed, so we can send the email.
				if err := email.SendWelcome(message.To, message.Name); err != nil {
					log.Printf("failed to send email: %v", err)
					d.Nack(false, true) // requeue the message in case of transient error.
				} else {
					d.Ack(false)
					if err := ec.cache.Set(ctx, "welcome_"+message.Id, true); err != nil {
						log.Printf("failed to set key in cache: %v", err)
					}
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	return msgs, nil
}

// BuildEmailQueue initializes a new Queue for handling welcome email messages
// with the given number of producers and consumers. The consumers share the
// provided cache for once-only processing.
func BuildEmailQueue(rabbitMQURL string, numProducers int, numConsumers int, emailCache storage.CacheInterface) *Queue {

	// Producer factories
	prodFactories := make([]ProducerFactory, numProducers)
	for i := 0; i < numProducers; i++ {
		prodFactories[i] = &EmailProducerFactory{}
	}

	// Consumer factories
	consFactories := make([]ConsumerFactory, numConsumers)
	for i := 0; i < numConsumers; i++ {
		consFactories[i] = &EmailConsumerFactory{Cache: emailCache}
	}

	// Initialize the queue
	queue := InitQueue(rabbitMQURL, "emailQueue", prodFactories, consFactories)
	return queue
}

// ProcessEmail serializes the email message to JSON and publishes it onto the
// queue using one of the producers in a round-robin manner.
// Returns an error if there was a problem with any step of the process.
func ProcessEmail(emailMsg *EmailMessage, emailQueue *Queue) error {

	body, err := json.Marshal(emailMsg)
	if err != nil {
		return errors.New("failed to marshal email message: " + err.Error())
	}

	producerCount := len(emailQueue.Producers)
	if producerCount == 0 {
		return errors.New("no producers available")
	}

	producer := emailQueue.Producers[globalCount%producerCount]
	globalCount++

	if err := producer.Publish(body); err != nil {
		return errors.New("failed to publish email message: " + err.Error())
	}

	return nil
}
