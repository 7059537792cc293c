package router

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/oyasumi-space/antenna-fanout/config"
	_ "github.com/oyasumi-space/antenna-fanout/docs"
	"github.com/oyasumi-space/antenna-fanout/internal/api/handler"
	"github.com/oyasumi-space/antenna-fanout/internal/api/middleware"
	"github.com/oyasumi-space/antenna-fanout/internal/model"
)

// New 组装路由：读路径开放，写路径（贴文/天线/关系）走 JWT
func New(cfg *config.Config, h *handler.Handler) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("visibility", func(fl validator.FieldLevel) bool {
			return model.Visibility(fl.Field().String()).Known()
		})
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gzip.Gzip(gzip.DefaultCompression))
	if cfg.Telemetry.Enabled {
		r.Use(otelgin.Middleware("antenna-fanout"))
	}
	if cfg.Server.RateLimit > 0 {
		r.Use(middleware.RateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst))
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := r.Group("/api/v1")
	{
		v1.POST("/accounts", h.Register)
		v1.POST("/accounts/login", h.Login)
		v1.GET("/accounts/:id", h.GetAccount)

		v1.GET("/statuses/:id", h.GetStatus)
		v1.GET("/antennas/:id", h.GetAntenna)
		v1.GET("/accounts/:id/antennas", h.ListAntennas)
		v1.GET("/relations/:account_id/following", h.ListFollowing)
		v1.GET("/relations/:account_id/fans", h.ListFans)

		v1.GET("/timelines/home/:account_id", h.HomeTimeline)
		v1.GET("/timelines/list/:list_id", h.ListTimeline)
		v1.GET("/timelines/antenna/:antenna_id", h.AntennaTimeline)
		v1.GET("/timelines/tag/:account_id", h.TagTimeline)

		auth := v1.Group("", middleware.JWTAuth(cfg.JWT.Secret))
		{
			auth.POST("/statuses", h.CreateStatus)
			auth.PUT("/statuses/:id", h.EditStatus)

			auth.POST("/antennas", h.CreateAntenna)
			auth.PUT("/antennas/:id", h.UpdateAntenna)
			auth.DELETE("/antennas/:id", h.DeleteAntenna)

			auth.POST("/relations/follow", h.Follow)
			auth.POST("/relations/unfollow", h.Unfollow)
		}
	}
	return r
}
