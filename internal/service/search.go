package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/and161185/immob/internal/limiter"
	"github.com/and161185/immob/internal/model"
	"github.com/and161185/immob/internal/validation"
)

// SearchService vets property search queries.
type SearchService interface {
	// Check throttles and validates q, returning it with a sanitized destination.
	Check(ctx context.Context, q model.PropertySearch) (model.PropertySearch, error)
}

type SearchServiceImpl struct {
	lim *limiter.Window
	log *zap.Logger
}

var _ SearchService = (*SearchServiceImpl)(nil)

func NewSearchService(lim *limiter.Window, opts ...Option) *SearchServiceImpl {
	o := buildOptions(opts)
	return &SearchServiceImpl{lim: lim, log: o.log}
}

func (s *SearchServiceImpl) Check(ctx context.Context, q model.PropertySearch) (model.PropertySearch, error) {
	if err := Gate(ctx, s.lim, limiter.KeySearch, "searches", s.log); err != nil {
		return model.PropertySearch{}, err
	}
	res := validation.ValidateAndSanitize(validation.PropertySearch, q)
	if err := res.Err(); err != nil {
		return model.PropertySearch{}, err
	}
	out := res.Value
	out.Destination = validation.Sanitize(out.Destination)
	return out, nil
}
