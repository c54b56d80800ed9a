package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jaxspot/billing/internal/infrastructure/auth"
	"github.com/jaxspot/billing/internal/shared/constants"
	"github.com/jaxspot/billing/internal/shared/logger"
	"github.com/jaxspot/billing/internal/shared/utils"
)

// MemberMiddleware resolves the calling member. The fronting membership
// service passes it in the X-Member-ID header; a member logged in by this
// service after a purchase carries the member session cookie instead.
//
// The header is trusted as is. It is only honoured when trustHeader is set,
// which requires the edge proxy to strip X-Member-ID from client requests.
type MemberMiddleware struct {
	tokens      *auth.JWTService
	trustHeader bool
	logger      logger.Interface
}

func NewMemberMiddleware(tokens *auth.JWTService, trustHeader bool, logger logger.Interface) *MemberMiddleware {
	return &MemberMiddleware{
		tokens:      tokens,
		trustHeader: trustHeader,
		logger:      logger,
	}
}

// Resolve sets member_id in the context when a member is known.
func (m *MemberMiddleware) Resolve() gin.HandlerFunc {
	return func(c *gin.Context) {
		if memberID := m.memberID(c); memberID != 0 {
			c.Set(constants.ContextKeyMemberID, memberID)
		}
		c.Next()
	}
}

// RequireMember aborts with 401 when no member is known.
func (m *MemberMiddleware) RequireMember() gin.HandlerFunc {
	return func(c *gin.Context) {
		memberID := m.memberID(c)
		if memberID == 0 {
			utils.ErrorResponse(c, http.StatusUnauthorized, constants.ErrMsgUnauthorized)
			c.Abort()
			return
		}
		c.Set(constants.ContextKeyMemberID, memberID)
		c.Next()
	}
}

func (m *MemberMiddleware) memberID(c *gin.Context) uint {
	if header := c.GetHeader(constants.HeaderMemberID); header != "" && m.trustHeader {
		id, err := strconv.ParseUint(header, 10, 64)
		if err == nil {
			return uint(id)
		}
		return 0
	}

	token := utils.GetTokenFromCookie(c, utils.MemberCookie)
	if token == "" {
		return 0
	}
	claims, err := m.tokens.Verify(token)
	if err != nil {
		m.logger.Debugw("ignoring invalid member session", "error", err)
		return 0
	}
	return claims.MemberID
}

// MemberIDFrom returns the member resolved for the request, or 0.
func MemberIDFrom(c *gin.Context) uint {
	if v, ok := c.Get(constants.ContextKeyMemberID); ok {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}
