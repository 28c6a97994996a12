package domain

import (
	"github.com/HerbertGourout/IntuitionConcept-sub005/internal/render/pipeline"
	amqp "github.com/rabbitmq/amqp091-go"
)

// BatchMessage is a parsed batch request together with the delivery it
// arrived on, which the pool acks or nacks once the batch is done.
type BatchMessage struct {
	Request  pipeline.BatchRequest
	Delivery amqp.Delivery
}

// Outcome summarises a finished batch for logging
type Outcome struct {
	BatchID   string
	Total     int
	Completed int
	Failed    int
	Cancelled int
}
