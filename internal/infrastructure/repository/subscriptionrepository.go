package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/jaxspot/billing/internal/domain/subscription"
	vo "github.com/jaxspot/billing/internal/domain/subscription/valueobjects"
	"github.com/jaxspot/billing/internal/infrastructure/persistence/mappers"
	"github.com/jaxspot/billing/internal/infrastructure/persistence/models"
	"github.com/jaxspot/billing/internal/shared/db"
	apperrors "github.com/jaxspot/billing/internal/shared/errors"
	"github.com/jaxspot/billing/internal/shared/logger"
)

var liveStatuses = []string{vo.StatusPending.String(), vo.StatusActive.String()}

type SubscriptionRepositoryImpl struct {
	db     *gorm.DB
	mapper mappers.SubscriptionMapper
	logger logger.Interface
}

func NewSubscriptionRepository(
	db *gorm.DB,
	logger logger.Interface,
) subscription.SubscriptionRepository {
	return &SubscriptionRepositoryImpl{
		db:     db,
		mapper: mappers.NewSubscriptionMapper(),
		logger: logger,
	}
}

func (r *SubscriptionRepositoryImpl) Create(ctx context.Context, subscriptionEntity *subscription.Subscription) error {
	model, err := r.mapper.ToModel(subscriptionEntity)
	if err != nil {
		r.logger.Errorw("failed to map subscription entity to model", "error", err)
		return fmt.Errorf("failed to map subscription entity: %w", err)
	}

	tx := db.GetTxFromContext(ctx, r.db)
	if err := tx.Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || apperrors.IsDuplicateError(err) {
			r.logger.Warnw("subscription conflicts with an existing one",
				"member_id", model.MemberID,
				"provider", model.Provider,
				"code", model.Code,
			)
			return fmt.Errorf("%w: member %d provider %s code %s",
				subscription.ErrSubscriptionConflict, model.MemberID, model.Provider, model.Code)
		}
		r.logger.Errorw("failed to create subscription in database", "error", err)
		return fmt.Errorf("failed to create subscription: %w", err)
	}

	if err := subscriptionEntity.SetID(model.ID); err != nil {
		r.logger.Errorw("failed to set subscription ID", "error", err)
		return fmt.Errorf("failed to set subscription ID: %w", err)
	}

	r.logger.Infow("subscription created successfully",
		"id", model.ID,
		"member_id", model.MemberID,
		"provider", model.Provider,
		"code", model.Code,
	)
	return nil
}

// Update persists one state change. The stored row must still carry the
// version the entity was loaded with.
func (r *SubscriptionRepositoryImpl) Update(ctx context.Context, subscriptionEntity *subscription.Subscription) error {
	model, err := r.mapper.ToModel(subscriptionEntity)
	if err != nil {
		r.logger.Errorw("failed to map subscription entity to model", "id", subscriptionEntity.ID(), "error", err)
		return fmt.Errorf("failed to map subscription entity: %w", err)
	}

	tx := db.GetTxFromContext(ctx, r.db)
	result := tx.Model(&models.SubscriptionModel{}).
		Where("id = ? AND version = ?", model.ID, model.Version-1).
		Updates(map[string]interface{}{
			"status":     model.Status,
			"expires_at": model.ExpiresAt,
			"live_slot":  model.LiveSlot,
			"version":    model.Version,
			"updated_at": model.UpdatedAt,
		})

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) || apperrors.IsDuplicateError(result.Error) {
			return fmt.Errorf("%w: member %d provider %s", subscription.ErrSubscriptionConflict, model.MemberID, model.Provider)
		}
		r.logger.Errorw("failed to update subscription", "id", model.ID, "error", result.Error)
		return fmt.Errorf("failed to update subscription: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: subscription %d at version %d", subscription.ErrConcurrentModification, model.ID, model.Version-1)
	}

	r.logger.Infow("subscription updated successfully", "id", model.ID, "status", model.Status)
	return nil
}

func (r *SubscriptionRepositoryImpl) ActiveOrPendingFor(ctx context.Context, memberID uint, provider vo.Provider) (*subscription.Subscription, error) {
	query := db.GetTxFromContext(ctx, r.db).
		Where("member_id = ? AND provider = ?", memberID, provider.String()).
		Where("status IN ?", liveStatuses).
		Order("id DESC")

	return r.first(query, "member_id", memberID, "provider", provider)
}

func (r *SubscriptionRepositoryImpl) FindByCode(ctx context.Context, provider vo.Provider, code string) (*subscription.Subscription, error) {
	query := db.GetTxFromContext(ctx, r.db).
		Where("provider = ? AND code = ?", provider.String(), code)

	return r.first(query, "provider", provider, "code", code)
}

func (r *SubscriptionRepositoryImpl) RenewableExpiredAt(ctx context.Context, now time.Time) ([]*subscription.Subscription, error) {
	return r.expiredAt(ctx, now, true)
}

func (r *SubscriptionRepositoryImpl) NonRenewableExpiredAt(ctx context.Context, now time.Time) ([]*subscription.Subscription, error) {
	return r.expiredAt(ctx, now, false)
}

func (r *SubscriptionRepositoryImpl) expiredAt(ctx context.Context, now time.Time, renewable bool) ([]*subscription.Subscription, error) {
	query := db.GetTxFromContext(ctx, r.db).
		Where("status = ?", vo.StatusActive.String()).
		Where("renewable = ?", renewable).
		Where("expires_at IS NOT NULL AND expires_at <= ?", now.UTC()).
		Order("expires_at ASC, id ASC")

	return r.find(query, "renewable", renewable)
}

func (r *SubscriptionRepositoryImpl) PendingFor(ctx context.Context, provider vo.Provider) ([]*subscription.Subscription, error) {
	query := db.GetTxFromContext(ctx, r.db).
		Where("provider = ? AND status = ?", provider.String(), vo.StatusPending.String()).
		Order("id ASC")

	return r.find(query, "provider", provider)
}

func (r *SubscriptionRepositoryImpl) PendingCreatedBefore(ctx context.Context, cutoff time.Time) ([]*subscription.Subscription, error) {
	query := db.GetTxFromContext(ctx, r.db).
		Where("status = ? AND created_at < ?", vo.StatusPending.String(), cutoff.UTC()).
		Order("created_at ASC, id ASC")

	return r.find(query, "created_before", cutoff)
}

func (r *SubscriptionRepositoryImpl) first(query *gorm.DB, keysAndValues ...interface{}) (*subscription.Subscription, error) {
	var model models.SubscriptionModel
	if err := query.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, subscription.ErrSubscriptionNotFound
		}
		r.logger.Errorw("failed to get subscription", append(keysAndValues, "error", err)...)
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	entity, err := r.mapper.ToEntity(&model)
	if err != nil {
		r.logger.Errorw("failed to map subscription model to entity", "id", model.ID, "error", err)
		return nil, fmt.Errorf("failed to map subscription: %w", err)
	}
	return entity, nil
}

func (r *SubscriptionRepositoryImpl) find(query *gorm.DB, keysAndValues ...interface{}) ([]*subscription.Subscription, error) {
	var subscriptionModels []*models.SubscriptionModel
	if err := query.Find(&subscriptionModels).Error; err != nil {
		r.logger.Errorw("failed to list subscriptions", append(keysAndValues, "error", err)...)
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	// One unreadable row must not hide the rest of the batch.
	return r.mapper.ToEntities(subscriptionModels, func(model *models.SubscriptionModel, err error) {
		r.logger.Warnw("skipping unreadable subscription",
			append(keysAndValues, "id", model.ID, "error", err)...)
	}), nil
}
