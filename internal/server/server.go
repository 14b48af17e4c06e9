package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	authdomain "github.com/rraasi/coin-service/internal/auth/domain"
	"github.com/rraasi/coin-service/internal/authorization"
	"github.com/rraasi/coin-service/internal/clock"
	"github.com/rraasi/coin-service/internal/config"
	entitlementdomain "github.com/rraasi/coin-service/internal/entitlement/domain"
	featuredomain "github.com/rraasi/coin-service/internal/feature/domain"
	ledgerdomain "github.com/rraasi/coin-service/internal/ledger/domain"
	"github.com/rraasi/coin-service/internal/observability"
	obsmiddleware "github.com/rraasi/coin-service/internal/observability/logger"
	obsmetrics "github.com/rraasi/coin-service/internal/observability/metrics"
	obstracing "github.com/rraasi/coin-service/internal/observability/tracing"
	"github.com/rraasi/coin-service/internal/providers/pdf"
	"github.com/rraasi/coin-service/internal/ratelimit"
	subscriptiondomain "github.com/rraasi/coin-service/internal/subscription/domain"
	userdomain "github.com/rraasi/coin-service/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(RunHTTP),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.Middleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"service":   obsCfg.ServiceName,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	log           *zap.Logger
	clock         clock.Clock
	verifier      authdomain.Verifier
	authzSvc      authorization.Service
	catalog       featuredomain.Catalog
	entitlements  entitlementdomain.Service
	ledgerSvc     ledgerdomain.Service
	subscriptions subscriptiondomain.Service
	users         userdomain.Service
	pdf           pdf.Provider
	chargeLimiter *ratelimit.ChargeLimiter
	obsMetrics    *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	Log           *zap.Logger
	Clock         clock.Clock
	Verifier      authdomain.Verifier
	AuthzSvc      authorization.Service
	Catalog       featuredomain.Catalog
	Entitlements  entitlementdomain.Service
	Ledger        ledgerdomain.Service
	Subscriptions subscriptiondomain.Service
	Users         userdomain.Service
	PDF           pdf.Provider
	ChargeLimiter *ratelimit.ChargeLimiter `optional:"true"`
	ObsMetrics    *obsmetrics.Metrics      `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		log:           p.Log.Named("http"),
		clock:         p.Clock,
		verifier:      p.Verifier,
		authzSvc:      p.AuthzSvc,
		catalog:       p.Catalog,
		entitlements:  p.Entitlements,
		ledgerSvc:     p.Ledger,
		subscriptions: p.Subscriptions,
		users:         p.Users,
		pdf:           p.PDF,
		chargeLimiter: p.ChargeLimiter,
		obsMetrics:    p.ObsMetrics,
	}

	svc.registerCoinRoutes()
	svc.registerSubscriptionRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerCoinRoutes() {
	coins := s.engine.Group("/coins")

	// -------- Catalog --------
	coins.GET("/features", s.ListFeatures)
	coins.GET("/features/:featureId", s.GetFeature)

	authed := coins.Group("", s.UserAuthRequired())
	{
		authed.GET("/balance", s.GetBalance)
		authed.POST("/refresh-balance", s.RefreshBalance)
		authed.POST("/check-access", s.CheckAccess)
		authed.POST("/deduct", s.ChargeRateLimit(), s.Deduct)
		authed.POST("/deduct-satsang", s.ChargeRateLimit(), s.DeductSatsang)
		authed.GET("/transactions", s.ListTransactions)
		authed.GET("/transactions/statement", s.TransactionStatement)

		// -------- Operator --------
		authed.POST("/bonus", s.RequireCapability(authorization.ObjectCoins, authorization.ActionBonusGrant), s.GrantBonus)
		authed.GET("/stats", s.RequireCapability(authorization.ObjectCoins, authorization.ActionStatsView), s.FeatureStats)
	}
}

func (s *Server) registerSubscriptionRoutes() {
	subs := s.engine.Group("/subscriptions")

	subs.GET("/plans", s.ListPlans)

	authed := subs.Group("", s.UserAuthRequired())
	{
		authed.POST("/create-order", s.CreateOrder)
		authed.POST("/verify", s.VerifyPayment)
		authed.GET("/active", s.ActiveSubscription)
		authed.GET("/active/receipt", s.ActiveSubscriptionReceipt)
	}
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
