package app

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"studybot/internal/query"
)

type Answerer interface {
	Answer(ctx context.Context, q string, userID uint) (*query.Result, error)
}

type QueryResponse struct {
	*query.Result
	ProcessingTimeMs int64 `json:"processing_time_ms"`
}

type QueryService struct {
	engine Answerer
	logger *zap.Logger
}

func NewQueryService(engine Answerer, logger *zap.Logger) *QueryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryService{engine: engine, logger: logger}
}

func (s *QueryService) Ask(ctx context.Context, userID uint, q string) (*QueryResponse, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	res, err := s.engine.Answer(ctx, q, userID)
	if err != nil {
		if !errors.Is(err, query.ErrInvalidQuery) {
			s.logger.Error("query failed", zap.Uint("user_id", userID), zap.Error(err))
		}
		return nil, err
	}
	s.logger.Info("query answered",
		zap.Uint("user_id", userID),
		zap.Int("sources", res.SourceCount),
		zap.Duration("elapsed", res.ProcessingTime),
	)
	return &QueryResponse{Result: res, ProcessingTimeMs: res.ProcessingTime.Milliseconds()}, nil
}
