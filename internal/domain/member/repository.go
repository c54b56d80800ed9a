package member

import (
	"context"
	"errors"
)

var ErrMemberNotFound = errors.New("member not found")

// Repository defines read access to members.
type Repository interface {
	// GetByID returns ErrMemberNotFound when no member has the ID.
	GetByID(ctx context.Context, id uint) (*Member, error)

	// GetByFacebookID returns ErrMemberNotFound when no member is linked to
	// the Facebook account.
	GetByFacebookID(ctx context.Context, facebookID string) (*Member, error)
}
