package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	auditdomain "github.com/smallbiznis/buildledger/internal/audit/domain"
	"github.com/smallbiznis/buildledger/internal/config"
	featureflagdomain "github.com/smallbiznis/buildledger/internal/featureflag/domain"
	identifierdomain "github.com/smallbiznis/buildledger/internal/identifier/domain"
	"github.com/smallbiznis/buildledger/internal/observability"
	obslogger "github.com/smallbiznis/buildledger/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/buildledger/internal/observability/metrics"
	obstracing "github.com/smallbiznis/buildledger/internal/observability/tracing"
	"github.com/smallbiznis/buildledger/internal/policy"
	"github.com/smallbiznis/buildledger/internal/ratelimit"
	salesrepdomain "github.com/smallbiznis/buildledger/internal/salesrep/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	if httpMetrics != nil {
		r.Use(obsmetrics.GinMiddleware(httpMetrics))
	}
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log = log.Named("http.server")

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
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
	engine            *gin.Engine
	cfg               config.Config
	authorizer        *policy.Authorizer
	salesRepSvc       salesrepdomain.Service
	identifiers       identifierdomain.Generator
	featureFlagSvc    featureflagdomain.Service
	auditSvc          auditdomain.Service
	identifierLimiter *ratelimit.IdentifierLimiter
}

type ServerParams struct {
	fx.In

	Gin               *gin.Engine
	Cfg               config.Config
	Authorizer        *policy.Authorizer
	SalesRepSvc       salesrepdomain.Service
	Identifiers       identifierdomain.Generator
	FeatureFlagSvc    featureflagdomain.Service
	AuditSvc          auditdomain.Service
	IdentifierLimiter *ratelimit.IdentifierLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:            p.Gin,
		cfg:               p.Cfg,
		authorizer:        p.Authorizer,
		salesRepSvc:       p.SalesRepSvc,
		identifiers:       p.Identifiers,
		featureFlagSvc:    p.FeatureFlagSvc,
		auditSvc:          p.AuditSvc,
		identifierLimiter: p.IdentifierLimiter,
	}

	svc.registerRoutes()
	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerRoutes() {
	v1 := s.engine.Group("/v1")
	v1.Use(s.ActorContext())

	// -------- Sales reps --------
	v1.GET("/sales-reps/workloads", s.RequirePolicy(policy.ActionSalesRepView, nil), s.GetSalesRepWorkloads)
	v1.GET("/projects/:id/sales-rep", s.RequirePolicy(policy.ActionProjectView, projectResource), s.GetSalesRepAssignment)
	v1.POST("/projects/:id/sales-rep/auto", s.RequirePolicy(policy.ActionSalesRepAssign, projectResource), s.AutoAssignSalesRep)
	v1.PUT("/projects/:id/sales-rep", s.RequirePolicy(policy.ActionSalesRepAssign, projectResource), s.AssignSalesRep)
	v1.DELETE("/projects/:id/sales-rep", s.RequirePolicy(policy.ActionSalesRepAssign, projectResource), s.UnassignSalesRep)

	// -------- Identifiers --------
	v1.POST("/identifiers/:kind", s.RequireMintPolicy(), s.IdentifierRateLimit(), s.MintIdentifier)

	// -------- Feature flags --------
	v1.GET("/feature-flags", s.RequirePolicy(policy.ActionFeatureFlagView, nil), s.ListFeatureFlags)
	v1.GET("/feature-flags/:key", s.RequirePolicy(policy.ActionFeatureFlagView, nil), s.GetFeatureFlag)
	v1.GET("/feature-flags/:key/evaluate", s.EvaluateFeatureFlag)
	v1.PUT("/feature-flags/:key", s.RequirePolicy(policy.ActionFeatureFlagManage, nil), s.UpsertFeatureFlag)
	v1.DELETE("/feature-flags/:key", s.RequirePolicy(policy.ActionFeatureFlagManage, nil), s.DeleteFeatureFlag)

	// -------- Policy & audit --------
	v1.POST("/policy/evaluate", s.RequirePolicy(policy.ActionPolicyEvaluate, nil), s.EvaluatePolicy)
	v1.GET("/security-events", s.RequirePolicy(policy.ActionSecurityEventView, nil), s.ListSecurityEvents)

	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
