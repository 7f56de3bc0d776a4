package service

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/immob/internal/limiter"
	"github.com/and161185/immob/internal/model"
	"github.com/and161185/immob/internal/validation"
)

// MessageService prepares conversation messages.
type MessageService interface {
	// Compose throttles, validates and sanitizes content for conversationID.
	Compose(ctx context.Context, conversationID string, in model.MessageInput) (model.Message, error)
}

type MessageServiceImpl struct {
	lim *limiter.Window
	now func() time.Time
	log *zap.Logger
}

var _ MessageService = (*MessageServiceImpl)(nil)

// NewMessageService constructs MessageService on the message limiter.
func NewMessageService(lim *limiter.Window, opts ...Option) *MessageServiceImpl {
	o := buildOptions(opts)
	return &MessageServiceImpl{lim: lim, now: o.now, log: o.log}
}

func (s *MessageServiceImpl) Compose(ctx context.Context, conversationID string, in model.MessageInput) (model.Message, error) {
	if conversationID == "" {
		return model.Message{}, &validation.Error{Issues: []validation.Issue{
			{Field: "conversationId", Message: "conversation is required"},
		}}
	}
	if err := Gate(ctx, s.lim, limiter.KeyMessage, "messages", s.log); err != nil {
		return model.Message{}, err
	}
	res := validation.ValidateAndSanitize(validation.Message, in)
	if err := res.Err(); err != nil {
		return model.Message{}, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return model.Message{}, err
	}
	return model.Message{
		ID:             id.String(),
		ConversationID: conversationID,
		Content:        validation.Sanitize(res.Value.Content),
		Timestamp:      s.now(),
	}, nil
}
