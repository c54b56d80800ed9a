package mappers

import (
	"github.com/jaxspot/billing/internal/domain/member"
	"github.com/jaxspot/billing/internal/infrastructure/persistence/models"
)

type MemberMapper interface {
	ToEntity(model *models.MemberModel) (*member.Member, error)
}

type MemberMapperImpl struct{}

func NewMemberMapper() MemberMapper {
	return &MemberMapperImpl{}
}

func (m *MemberMapperImpl) ToEntity(model *models.MemberModel) (*member.Member, error) {
	if model == nil {
		return nil, nil
	}

	var facebookID string
	if model.FacebookID != nil {
		facebookID = *model.FacebookID
	}

	return member.ReconstructMember(
		model.ID,
		model.Email,
		model.Name,
		model.Locale,
		model.Anonymous,
		facebookID,
		model.Operator,
	)
}
