package http

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/jaxspot/billing/internal/application/subscription/providergateway"
	"github.com/jaxspot/billing/internal/application/subscription/usecases"
	"github.com/jaxspot/billing/internal/domain/member"
	"github.com/jaxspot/billing/internal/domain/subscription"
	vo "github.com/jaxspot/billing/internal/domain/subscription/valueobjects"
	"github.com/jaxspot/billing/internal/infrastructure/auth"
	"github.com/jaxspot/billing/internal/infrastructure/cache"
	"github.com/jaxspot/billing/internal/infrastructure/config"
	"github.com/jaxspot/billing/internal/infrastructure/email"
	"github.com/jaxspot/billing/internal/infrastructure/metrics"
	"github.com/jaxspot/billing/internal/infrastructure/partner"
	"github.com/jaxspot/billing/internal/infrastructure/providergateway/facebook"
	"github.com/jaxspot/billing/internal/infrastructure/providergateway/mpulse"
	"github.com/jaxspot/billing/internal/infrastructure/repository"
	"github.com/jaxspot/billing/internal/infrastructure/scheduler"
	"github.com/jaxspot/billing/internal/interfaces/http/handlers"
	"github.com/jaxspot/billing/internal/interfaces/http/middleware"
	"github.com/jaxspot/billing/internal/shared/db"
	"github.com/jaxspot/billing/internal/shared/logger"
)

// Container wires repositories, gateways, use cases, handlers and the
// reconciliation scheduler together, and owns their shutdown.
type Container struct {
	cfg   *config.Config
	db    *gorm.DB
	redis *redis.Client
	log   logger.Interface

	subscriptionRepo subscription.SubscriptionRepository
	memberRepo       member.Repository
	gateways         *providergateway.Registry
	notifier         *usecases.ActivationNotifier
	sessionTokens    *auth.JWTService

	jobs      scheduler.ReconciliationJobs
	scheduler *scheduler.SchedulerManager

	billingHandler   *handlers.BillingHandler
	memberMiddleware *middleware.MemberMiddleware
	engine           *gin.Engine
}

// NewContainer builds the application. redisClient may be nil, in which case
// duplicate "settled" events are only caught by the subscription state.
func NewContainer(cfg *config.Config, gormDB *gorm.DB, redisClient *redis.Client, log logger.Interface) (*Container, error) {
	c := &Container{
		cfg:   cfg,
		db:    gormDB,
		redis: redisClient,
		log:   log,
	}

	c.subscriptionRepo = repository.NewSubscriptionRepository(gormDB, log.Named("repository.subscription"))
	c.memberRepo = repository.NewMemberRepository(gormDB, log.Named("repository.member"))

	c.gateways = providergateway.NewRegistry(
		mpulse.NewGateway(cfg.MPulse, log.Named("gateway.mpulse")),
		facebook.NewGateway(cfg.Facebook, log.Named("gateway.facebook")),
	)

	mailer := email.NewSMTPRecoveryMailer(email.SMTPConfig{
		Host:        cfg.Email.SMTPHost,
		Port:        cfg.Email.SMTPPort,
		Username:    cfg.Email.SMTPUser,
		Password:    cfg.Email.SMTPPassword,
		FromAddress: cfg.Email.FromAddress,
		FromName:    cfg.Email.FromName,
		BaseURL:     cfg.Server.BaseURL,
	})
	partnerNotifier := partner.NewHTTPNotifier(cfg.Partner, log.Named("partner"))
	c.notifier = usecases.NewActivationNotifier(c.memberRepo, mailer, partnerNotifier, log.Named("notifier"))
	c.sessionTokens = auth.NewJWTService(cfg.Server.SessionSecret, cfg.Server.SessionMaxAge())

	if err := c.initUseCases(); err != nil {
		return nil, err
	}

	sched, err := scheduler.NewSchedulerManager(cfg.Scheduler, log.Named("scheduler"))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	sched.SetRecorder(metrics.JobRecorder{})
	c.scheduler = sched

	c.memberMiddleware = middleware.NewMemberMiddleware(
		c.sessionTokens, cfg.Server.TrustMemberHeader, log.Named("middleware.member"))
	c.engine = newEngine(c)

	return c, nil
}

func (c *Container) terms() usecases.Terms {
	sc := c.cfg.Subscription
	return usecases.Terms{
		vo.ProviderMPulse:   vo.Term{Days: sc.MPulseTerm.Days, Months: sc.MPulseTerm.Months},
		vo.ProviderFacebook: vo.Term{Days: sc.FacebookTerm.Days, Months: sc.FacebookTerm.Months},
	}
}

func (c *Container) catalogItem() usecases.CatalogItem {
	fb := c.cfg.Facebook
	return usecases.CatalogItem{
		ItemID:     "subscription",
		Title:      fb.ItemTitle,
		ImageURL:   fb.ResourceURL + "/images/subscription.png",
		ProductURL: fb.ResourceURL + "/billing/facebook/item.html",
		Price:      fb.ItemPrice,
	}
}

func (c *Container) initUseCases() error {
	terms := c.terms()
	for _, p := range c.gateways.Providers() {
		if _, err := terms.For(p); err != nil {
			return fmt.Errorf("invalid subscription configuration: %w", err)
		}
	}

	c.jobs = scheduler.ReconciliationJobs{
		Renewal: usecases.NewRenewSubscriptionsUseCase(
			c.subscriptionRepo, c.gateways, terms, c.log.Named("job.renewal")),
		Recovery: usecases.NewRecoverPendingSubscriptionsUseCase(
			c.subscriptionRepo, c.gateways, terms, c.notifier, c.log.Named("job.recovery")),
		Closing: usecases.NewCloseSubscriptionsUseCase(
			c.subscriptionRepo, c.log.Named("job.closing")),
		StalePending: usecases.NewExpireStalePendingUseCase(
			c.subscriptionRepo, c.gateways, terms, c.notifier, c.cfg.Subscription.PendingTTL(), c.log.Named("job.stale_pending")),
	}

	startPurchaseUC := usecases.NewStartPurchaseUseCase(
		c.subscriptionRepo, c.memberRepo, c.gateways, c.log.Named("usecase.start_purchase"))

	cancelUC := usecases.NewCancelSubscriptionUseCase(c.subscriptionRepo, c.gateways, c.log.Named("usecase.cancel"))
	cancelUC.SetConfirmation(c.cfg.Subscription.CancelConfirmAttempts, c.cfg.Subscription.CancelConfirmInterval())

	providerReturnUC := usecases.NewHandleProviderReturnUseCase(
		c.subscriptionRepo, c.memberRepo, c.gateways, terms, c.notifier,
		db.NewTransactionManager(c.db), c.log.Named("usecase.provider_return"))

	paymentCallbackUC := usecases.NewHandlePaymentCallbackUseCase(
		c.subscriptionRepo, c.memberRepo, terms, c.notifier, c.catalogItem(), c.log.Named("usecase.payment_callback"))
	if c.redis != nil {
		paymentCallbackUC.SetDeduplicator(
			cache.NewSettledEventDeduplicator(c.redis, c.cfg.Subscription.SettledDedupWindow()))
	}

	c.billingHandler = handlers.NewBillingHandler(
		startPurchaseUC,
		cancelUC,
		providerReturnUC,
		paymentCallbackUC,
		c.sessionTokens,
		c.cfg.Server,
		c.log.Named("handler.billing"),
	)
	return nil
}

// DB returns the database handle the container was built with.
func (c *Container) DB() *gorm.DB {
	return c.db
}

// Engine returns the HTTP handler.
func (c *Container) Engine() *gin.Engine {
	return c.engine
}

// Scheduler returns the reconciliation scheduler. Jobs are registered by
// StartScheduler.
func (c *Container) Scheduler() *scheduler.SchedulerManager {
	return c.scheduler
}

// Job returns the reconciliation job registered under name.
func (c *Container) Job(name string) (scheduler.BatchJob, error) {
	switch name {
	case scheduler.JobRenewal:
		return c.jobs.Renewal, nil
	case scheduler.JobRecovery:
		return c.jobs.Recovery, nil
	case scheduler.JobClosing:
		return c.jobs.Closing, nil
	case scheduler.JobStalePending:
		return c.jobs.StalePending, nil
	default:
		return nil, fmt.Errorf("unknown job %q", name)
	}
}

// StartScheduler registers the reconciliation jobs and starts them.
func (c *Container) StartScheduler() error {
	if err := c.scheduler.RegisterReconciliationJobs(c.jobs); err != nil {
		return err
	}
	c.scheduler.Start()
	return nil
}

// Shutdown stops the scheduler, waiting for running jobs, then waits for
// in-flight activation notifications and closes Redis. The database is
// closed by its owner.
func (c *Container) Shutdown(ctx context.Context) error {
	var firstErr error
	done := make(chan error, 1)
	go func() { done <- c.scheduler.Stop() }()

	select {
	case err := <-done:
		if err != nil {
			firstErr = err
		}
	case <-ctx.Done():
		firstErr = fmt.Errorf("scheduler shutdown: %w", ctx.Err())
	}

	if err := c.notifier.Wait(ctx); err != nil {
		c.log.Warnw("shutdown before all activation notifications finished", "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}

	if c.redis != nil {
		if err := c.redis.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
