package handlers

import (
	"context"

	"github.com/jaxspot/billing/internal/application/subscription/usecases"
)

// Use case interfaces for BillingHandler

type startPurchaseUseCase interface {
	Execute(ctx context.Context, cmd usecases.StartPurchaseCommand) (*usecases.StartPurchaseResult, error)
}

type cancelSubscriptionUseCase interface {
	Execute(ctx context.Context, cmd usecases.CancelSubscriptionCommand) (*usecases.CancelSubscriptionResult, error)
}

type providerReturnUseCase interface {
	Execute(ctx context.Context, cmd usecases.ProviderReturnCommand) (*usecases.ProviderReturnResult, error)
}

type paymentCallbackUseCase interface {
	Execute(ctx context.Context, cb usecases.ProviderCallback) (*usecases.CallbackResponse, error)
}
