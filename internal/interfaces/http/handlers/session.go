package handlers

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/jaxspot/billing/internal/domain/member"
	"github.com/jaxspot/billing/internal/infrastructure/auth"
	"github.com/jaxspot/billing/internal/shared/config"
	"github.com/jaxspot/billing/internal/shared/utils"
)

// cookieSession logs a member in on the current response by setting the
// member session cookie.
type cookieSession struct {
	c      *gin.Context
	cfg    config.ServerConfig
	tokens *auth.JWTService
}

func (s *cookieSession) EstablishSession(_ context.Context, m *member.Member) error {
	token, err := s.tokens.Generate(m.ID())
	if err != nil {
		return fmt.Errorf("failed to issue session token: %w", err)
	}
	utils.SetMemberCookie(s.c, s.cfg, token, int(s.tokens.MaxAge().Seconds()))
	return nil
}
