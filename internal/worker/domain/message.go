package domain

import (
	"github.com/cuongbtq/workflow-guardian/internal/retryqueue"
	amqp "github.com/rabbitmq/amqp091-go"
)

// RetryMessage is a decoded retry request together with its delivery
type RetryMessage struct {
	Request  *retryqueue.RetryRequest
	Delivery amqp.Delivery
}
