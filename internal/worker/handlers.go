package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"studybot/internal/ingestion"
	"studybot/internal/model"
)

type TaskHandler interface {
	HandleTask(ctx context.Context, task ingestion.Task) error
}

// IngestionHandler runs the pipeline for one queued document. Failures the
// pipeline recorded on the document are acked; an interrupted run or an
// unrecorded status goes back to the queue.
func IngestionHandler(pipeline TaskHandler, logger *zap.Logger) Handler {
	return func(ctx context.Context, body []byte) error {
		var task ingestion.Task
		if err := json.Unmarshal(body, &task); err != nil {
			return fmt.Errorf("%w: decode ingestion task: %v", ErrDiscard, err)
		}
		err := pipeline.HandleTask(ctx, task)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, ingestion.ErrInterrupted), errors.Is(err, ingestion.ErrStatusNotRecorded):
			return err
		case errors.Is(err, ingestion.ErrInvalidTask):
			return fmt.Errorf("%w: %v", ErrDiscard, err)
		}
		logger.Warn("ingestion finished with error",
			zap.Uint("document_id", task.DocumentID),
			zap.Error(err),
		)
		return nil
	}
}

type MessageStore interface {
	Create(ctx context.Context, message *model.Message) error
}

type ChatToucher interface {
	Touch(ctx context.Context, chatID uint, added int, at time.Time) error
}

// MessagePersistHandler stores a chat message and bumps its chat counters.
func MessagePersistHandler(messages MessageStore, chats ChatToucher) Handler {
	return func(ctx context.Context, body []byte) error {
		var msg model.Message
		if err := json.Unmarshal(body, &msg); err != nil {
			return fmt.Errorf("%w: decode message: %v", ErrDiscard, err)
		}
		if msg.ChatID == 0 || msg.UserID == 0 {
			return fmt.Errorf("%w: message without chat or user", ErrDiscard)
		}
		msg.ID = 0
		if err := messages.Create(ctx, &msg); err != nil {
			return err
		}
		return chats.Touch(ctx, msg.ChatID, 1, msg.CreatedAt)
	}
}
