package service

import (
	"context"

	"ryxel/internal/model"
	"ryxel/internal/repository"

	"github.com/rs/zerolog"
)

// discountService implements DiscountService.
type discountService struct {
	discountRepo repository.DiscountRepository
	logger       zerolog.Logger
}

// NewDiscountService creates a new discount service.
func NewDiscountService(discountRepo repository.DiscountRepository, logger zerolog.Logger) DiscountService {
	return &discountService{
		discountRepo: discountRepo,
		logger:       logger.With().Str("service", "discount").Logger(),
	}
}

func (s *discountService) GetByCode(ctx context.Context, code string) (*model.Discount, error) {
	d, err := s.discountRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, model.ErrInvalidDiscount
	}
	return d, nil
}

func (s *discountService) Update(ctx context.Context, code string, upd model.DiscountUpdate) error {
	if err := validateDiscountUpdate(upd); err != nil {
		return err
	}

	if err := s.discountRepo.Update(ctx, code, upd); err != nil {
		return err
	}

	s.logger.Info().Str("code", code).Msg("discount updated")
	return nil
}

func validateDiscountUpdate(upd model.DiscountUpdate) error {
	if upd.DiscountPercentage != nil && (*upd.DiscountPercentage < 0 || *upd.DiscountPercentage > 100) {
		return model.NewDomainError(model.ErrCodeValidation, "discount percentage must be between 0 and 100")
	}
	if upd.MaxUse != nil && *upd.MaxUse < 0 {
		return model.NewDomainError(model.ErrCodeValidation, "max use must not be negative")
	}
	if upd.MaxUsePerUser != nil && *upd.MaxUsePerUser < 0 {
		return model.NewDomainError(model.ErrCodeValidation, "max use per user must not be negative")
	}
	if upd.MinOrderValue != nil && *upd.MinOrderValue < 0 {
		return model.NewDomainError(model.ErrCodeValidation, "minimum order value must not be negative")
	}
	if upd.DiscountMaxValue != nil && *upd.DiscountMaxValue < 0 {
		return model.NewDomainError(model.ErrCodeValidation, "discount cap must not be negative")
	}
	return nil
}
