package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/jaxspot/billing/internal/domain/member"
	"github.com/jaxspot/billing/internal/infrastructure/persistence/mappers"
	"github.com/jaxspot/billing/internal/infrastructure/persistence/models"
	"github.com/jaxspot/billing/internal/shared/db"
	"github.com/jaxspot/billing/internal/shared/logger"
)

type MemberRepositoryImpl struct {
	db     *gorm.DB
	mapper mappers.MemberMapper
	logger logger.Interface
}

func NewMemberRepository(db *gorm.DB, logger logger.Interface) member.Repository {
	return &MemberRepositoryImpl{
		db:     db,
		mapper: mappers.NewMemberMapper(),
		logger: logger,
	}
}

func (r *MemberRepositoryImpl) GetByID(ctx context.Context, id uint) (*member.Member, error) {
	var model models.MemberModel
	if err := db.GetTxFromContext(ctx, r.db).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, member.ErrMemberNotFound
		}
		r.logger.Errorw("failed to get member by ID", "id", id, "error", err)
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

func (r *MemberRepositoryImpl) GetByFacebookID(ctx context.Context, facebookID string) (*member.Member, error) {
	if facebookID == "" {
		return nil, member.ErrMemberNotFound
	}

	var model models.MemberModel
	if err := db.GetTxFromContext(ctx, r.db).Where("facebook_id = ?", facebookID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, member.ErrMemberNotFound
		}
		r.logger.Errorw("failed to get member by facebook ID", "facebook_id", facebookID, "error", err)
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return r.mapper.ToEntity(&model)
}
