package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jaxspot/billing/internal/application/subscription/usecases"
	vo "github.com/jaxspot/billing/internal/domain/subscription/valueobjects"
	"github.com/jaxspot/billing/internal/infrastructure/auth"
	"github.com/jaxspot/billing/internal/infrastructure/metrics"
	"github.com/jaxspot/billing/internal/interfaces/http/middleware"
	"github.com/jaxspot/billing/internal/shared/config"
	"github.com/jaxspot/billing/internal/shared/errors"
	"github.com/jaxspot/billing/internal/shared/logger"
	"github.com/jaxspot/billing/internal/shared/utils"
)

// Callback outcomes used as metric labels.
const (
	callbackOK       = "ok"
	callbackRejected = "rejected"
	callbackFailed   = "failed"
)

type BillingHandler struct {
	startPurchaseUC   startPurchaseUseCase
	cancelUC          cancelSubscriptionUseCase
	providerReturnUC  providerReturnUseCase
	paymentCallbackUC paymentCallbackUseCase
	sessionTokens     *auth.JWTService
	serverCfg         config.ServerConfig
	logger            logger.Interface
}

func NewBillingHandler(
	startPurchaseUC startPurchaseUseCase,
	cancelUC cancelSubscriptionUseCase,
	providerReturnUC providerReturnUseCase,
	paymentCallbackUC paymentCallbackUseCase,
	sessionTokens *auth.JWTService,
	serverCfg config.ServerConfig,
	logger logger.Interface,
) *BillingHandler {
	return &BillingHandler{
		startPurchaseUC:   startPurchaseUC,
		cancelUC:          cancelUC,
		providerReturnUC:  providerReturnUC,
		paymentCallbackUC: paymentCallbackUC,
		sessionTokens:     sessionTokens,
		serverCfg:         serverCfg,
		logger:            logger,
	}
}

type StartPurchaseResponse struct {
	SubscriptionID uint   `json:"subscription_id"`
	RedirectURL    string `json:"redirect_url"`
}

type CancelSubscriptionResponse struct {
	SubscriptionID uint   `json:"subscription_id"`
	Canceled       bool   `json:"canceled"`
	RedirectURL    string `json:"redirect_url,omitempty"`
}

// StartPurchase opens a purchase with the provider.
// GET /billing/subscription/:provider/service
func (h *BillingHandler) StartPurchase(c *gin.Context) {
	provider, err := vo.ParseProvider(c.Param("provider"))
	if err != nil {
		utils.ErrorResponseWithError(c, errors.NewBadRequestError("unknown_provider", c.Param("provider")))
		return
	}
	memberID := middleware.MemberIDFrom(c)

	result, err := h.startPurchaseUC.Execute(c.Request.Context(), usecases.StartPurchaseCommand{
		MemberID:   memberID,
		Provider:   provider,
		RemoteAddr: c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
	})
	if err != nil {
		h.logger.Warnw("failed to start purchase", "error", err, "member_id", memberID, "provider", provider)
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", StartPurchaseResponse{
		SubscriptionID: result.SubscriptionID,
		RedirectURL:    result.RedirectURL,
	})
}

// CancelSubscription cancels the member's live subscription.
// GET /billing/subscription/:provider/cancel
func (h *BillingHandler) CancelSubscription(c *gin.Context) {
	provider, err := vo.ParseProvider(c.Param("provider"))
	if err != nil {
		utils.ErrorResponseWithError(c, errors.NewBadRequestError("unknown_provider", c.Param("provider")))
		return
	}
	memberID := middleware.MemberIDFrom(c)

	result, err := h.cancelUC.Execute(c.Request.Context(), usecases.CancelSubscriptionCommand{
		MemberID: memberID,
		Provider: provider,
	})
	if err != nil {
		h.logger.Warnw("failed to cancel subscription", "error", err, "member_id", memberID, "provider", provider)
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", CancelSubscriptionResponse{
		SubscriptionID: result.SubscriptionID,
		Canceled:       result.Canceled,
		RedirectURL:    result.RedirectURL,
	})
}

// ProviderReturn handles the browser coming back from the provider checkout
// and always ends on the site root.
// GET /billing/subscription/callback?provider=mpulse&tid=...
func (h *BillingHandler) ProviderReturn(c *gin.Context) {
	defer c.Redirect(http.StatusFound, h.serverCfg.RootRedirectURL)

	provider, err := vo.ParseProvider(c.Query("provider"))
	if err != nil {
		metrics.CallbacksTotal.WithLabelValues("unknown", callbackRejected).Inc()
		h.logger.Warnw("provider return for unknown provider", "provider", c.Query("provider"))
		return
	}

	result, err := h.providerReturnUC.Execute(c.Request.Context(), usecases.ProviderReturnCommand{
		Provider: provider,
		Code:     c.Query("tid"),
		MemberID: middleware.MemberIDFrom(c),
		Session:  &cookieSession{c: c, cfg: h.serverCfg, tokens: h.sessionTokens},
	})
	if err != nil {
		metrics.CallbacksTotal.WithLabelValues(provider.String(), outcomeOf(err)).Inc()
		h.logger.Warnw("provider return failed", "error", err, "provider", provider, "code", c.Query("tid"))
		return
	}

	metrics.CallbacksTotal.WithLabelValues(provider.String(), callbackOK).Inc()
	h.logger.Debugw("provider return handled",
		"provider", provider,
		"subscription_id", result.SubscriptionID,
		"provider_status", result.ProviderStatus.String(),
		"activated", result.Activated,
	)
}

// orderDetails is the JSON document carried in the order_details form field.
type orderDetails struct {
	Buyer json.Number `json:"buyer"`
}

// FacebookCallback receives payments platform callbacks as form posts and
// answers with the raw JSON the platform expects.
// POST /billing/facebook
func (h *BillingHandler) FacebookCallback(c *gin.Context) {
	cb := usecases.ProviderCallback{
		Provider:        vo.ProviderFacebook,
		Method:          c.PostForm("method"),
		Status:          c.PostForm("status"),
		Code:            c.PostForm("order_id"),
		BuyerFacebookID: c.PostForm("buyer"),
	}
	if raw := c.PostForm("order_details"); raw != "" {
		var details orderDetails
		decoder := json.NewDecoder(strings.NewReader(raw))
		decoder.UseNumber()
		if err := decoder.Decode(&details); err != nil {
			metrics.CallbacksTotal.WithLabelValues(cb.Provider.String(), callbackRejected).Inc()
			utils.ErrorResponseWithError(c, errors.NewValidationError("invalid order_details"))
			return
		}
		if details.Buyer != "" {
			cb.BuyerFacebookID = details.Buyer.String()
		}
	}

	resp, err := h.paymentCallbackUC.Execute(c.Request.Context(), cb)
	if err != nil {
		metrics.CallbacksTotal.WithLabelValues(cb.Provider.String(), outcomeOf(err)).Inc()
		h.logger.Warnw("payment callback failed",
			"error", err,
			"method", cb.Method,
			"status", cb.Status,
			"order_id", cb.Code,
		)
		utils.ErrorResponseWithError(c, err)
		return
	}

	metrics.CallbacksTotal.WithLabelValues(cb.Provider.String(), callbackOK).Inc()
	c.JSON(http.StatusOK, resp)
}

func outcomeOf(err error) string {
	if errors.GetAppError(err) != nil {
		return callbackRejected
	}
	return callbackFailed
}
