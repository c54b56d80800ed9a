package mappers

import (
	"fmt"
	"time"

	"github.com/jaxspot/billing/internal/domain/subscription"
	vo "github.com/jaxspot/billing/internal/domain/subscription/valueobjects"
	"github.com/jaxspot/billing/internal/infrastructure/persistence/models"
	"github.com/jaxspot/billing/internal/shared/mapper"
)

type SubscriptionMapper interface {
	ToEntity(model *models.SubscriptionModel) (*subscription.Subscription, error)
	ToModel(entity *subscription.Subscription) (*models.SubscriptionModel, error)
	// ToEntities leaves out rows that cannot be mapped, reporting each to skip.
	ToEntities(models []*models.SubscriptionModel, skip func(*models.SubscriptionModel, error)) []*subscription.Subscription
}

type SubscriptionMapperImpl struct{}

func NewSubscriptionMapper() SubscriptionMapper {
	return &SubscriptionMapperImpl{}
}

func (m *SubscriptionMapperImpl) ToEntity(model *models.SubscriptionModel) (*subscription.Subscription, error) {
	if model == nil {
		return nil, nil
	}

	provider, err := vo.ParseProvider(model.Provider)
	if err != nil {
		return nil, fmt.Errorf("subscription %d: %w", model.ID, err)
	}
	status, err := vo.ParseSubscriptionStatus(model.Status)
	if err != nil {
		return nil, fmt.Errorf("subscription %d: %w", model.ID, err)
	}

	var expiresAt *time.Time
	if model.ExpiresAt != nil {
		t := model.ExpiresAt.UTC()
		expiresAt = &t
	}

	entity, err := subscription.ReconstructSubscription(
		model.ID,
		model.Code,
		provider,
		status,
		model.Renewable,
		expiresAt,
		model.MemberID,
		model.Version,
		model.CreatedAt,
		model.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct subscription entity: %w", err)
	}

	return entity, nil
}

func (m *SubscriptionMapperImpl) ToModel(entity *subscription.Subscription) (*models.SubscriptionModel, error) {
	if entity == nil {
		return nil, nil
	}

	var liveSlot *string
	if slot := entity.LiveSlot(); slot != "" {
		liveSlot = &slot
	}

	return &models.SubscriptionModel{
		ID:        entity.ID(),
		Provider:  entity.Provider().String(),
		Code:      entity.Code(),
		Status:    entity.Status().String(),
		Renewable: entity.Renewable(),
		ExpiresAt: entity.ExpiresAt(),
		MemberID:  entity.MemberID(),
		LiveSlot:  liveSlot,
		Version:   entity.Version(),
		CreatedAt: entity.CreatedAt(),
		UpdatedAt: entity.UpdatedAt(),
	}, nil
}

func (m *SubscriptionMapperImpl) ToEntities(models []*models.SubscriptionModel, skip func(*models.SubscriptionModel, error)) []*subscription.Subscription {
	return mapper.MapSliceSkipErrors(models, m.ToEntity, skip)
}
