package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/tenor/internal/clock"
	"github.com/smallbiznis/tenor/internal/config"
	"github.com/smallbiznis/tenor/internal/jobrun"
	"github.com/smallbiznis/tenor/internal/observability/logger"
	plandomain "github.com/smallbiznis/tenor/internal/plan/domain"
	"github.com/smallbiznis/tenor/internal/scheduler"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Cfg       config.Config
	Log       *zap.Logger
	DB        *gorm.DB
	Clock     clock.Clock
	PlanSvc   plandomain.Service
	JobRuns   *jobrun.Store
	Scheduler *scheduler.Scheduler
}

// Server owns the HTTP surface of the billing engine.
type Server struct {
	cfg       config.Config
	log       *zap.Logger
	db        *gorm.DB
	clock     clock.Clock
	planSvc   plandomain.Service
	jobRuns   *jobrun.Store
	scheduler *scheduler.Scheduler
}

func New(p Params) *Server {
	return &Server{
		cfg:       p.Cfg,
		log:       p.Log.Named("server"),
		db:        p.DB,
		clock:     p.Clock,
		planSvc:   p.PlanSvc,
		jobRuns:   p.JobRuns,
		scheduler: p.Scheduler,
	}
}

// Engine builds the gin engine with all routes registered.
func (s *Server) Engine() *gin.Engine {
	if s.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(logger.GinMiddleware(logger.MiddlewareConfig{
		Logger:    s.log,
		SkipPaths: []string{"/healthz"},
	}))

	engine.GET("/healthz", s.Healthz)

	v1 := engine.Group("/v1")
	{
		v1.POST("/plans", s.CreatePlan)
		v1.GET("/plans/:id", s.GetPlan)
		v1.POST("/plans/:id/principal-intents", s.CreatePrincipalIntent)
		v1.POST("/plans/:id/principal-payments", s.ConfirmPrincipalPayment)
		v1.POST("/plans/:id/pause", s.PausePlan)
		v1.POST("/plans/:id/resume", s.ResumePlan)
		v1.POST("/plans/:id/cancel", s.CancelPlan)

		v1.POST("/jobs/charge-plans", s.TriggerChargeJob)
		v1.GET("/jobs/runs", s.ListJobRuns)
	}
	return engine
}

func (s *Server) Healthz(c *gin.Context) {
	sqlDB, err := s.db.DB()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
		return
	}
	if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

var Module = fx.Module("server",
	fx.Provide(New),
	fx.Invoke(runHTTP),
)

func runHTTP(lc fx.Lifecycle, s *Server) {
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				s.log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					s.log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
