package mailer

import (
	"context"

	"github.com/florelle/auth-service/pkg/helpers"
)

// QueueSender dispatches email jobs onto the RabbitMQ queue consumed by the
// email worker. It satisfies the application's EmailDispatcher port.
type QueueSender struct {
	Pub *helpers.RabbitPublisher
}

func NewQueueSender(pub *helpers.RabbitPublisher) *QueueSender {
	return &QueueSender{Pub: pub}
}

func (s *QueueSender) Dispatch(ctx context.Context, job EmailJob) error {
	return s.Pub.PublishJSON(ctx, job)
}
