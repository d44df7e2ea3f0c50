package dto

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/vidinfra/subflow/internal/domain/addon"
	ierr "github.com/vidinfra/subflow/internal/errors"
	"github.com/vidinfra/subflow/internal/types"
	"github.com/vidinfra/subflow/internal/validator"
)

type CreateAddonRequest struct {
	PlanID        string                `json:"plan_id" validate:"required"`
	Name          string                `json:"name" validate:"required"`
	Description   string                `json:"description"`
	Price         decimal.Decimal       `json:"price"`
	Interval      types.BillingInterval `json:"interval" validate:"required"`
	IntervalCount int                   `json:"interval_count" validate:"omitempty,min=1"`
	FixedQuantity *int                  `json:"fixed_quantity,omitempty" validate:"omitempty,min=1"`
}

func (r *CreateAddonRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}

	if err := r.Interval.Validate(); err != nil {
		return err
	}

	if r.Price.IsNegative() {
		return ierr.NewError("price must be non negative").
			WithHint("Please provide a non negative addon price").
			WithReportableDetails(map[string]any{"price": r.Price}).
			Mark(ierr.ErrValidation)
	}

	return nil
}

func (r *CreateAddonRequest) ToAddon(ctx context.Context) *addon.Addon {
	intervalCount := r.IntervalCount
	if intervalCount == 0 {
		intervalCount = 1
	}

	return &addon.Addon{
		ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_ADDON),
		PlanID:        r.PlanID,
		Name:          r.Name,
		Description:   r.Description,
		Price:         r.Price,
		Interval:      r.Interval,
		IntervalCount: intervalCount,
		FixedQuantity: r.FixedQuantity,
		BaseModel:     types.GetDefaultBaseModel(ctx),
	}
}

type UpdateAddonRequest struct {
	Name          *string          `json:"name,omitempty"`
	Description   *string          `json:"description,omitempty"`
	Price         *decimal.Decimal `json:"price,omitempty"`
	FixedQuantity *int             `json:"fixed_quantity,omitempty" validate:"omitempty,min=1"`
}

func (r *UpdateAddonRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}

	if r.Price != nil && r.Price.IsNegative() {
		return ierr.NewError("price must be non negative").
			WithHint("Please provide a non negative addon price").
			WithReportableDetails(map[string]any{"price": *r.Price}).
			Mark(ierr.ErrValidation)
	}

	return nil
}

type AddonResponse struct {
	*addon.Addon
}
