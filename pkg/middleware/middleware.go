package middleware

import (
	"github.com/clustereye/clustereye/pkg/analysis"
	"github.com/clustereye/clustereye/pkg/cluster"
	"github.com/clustereye/clustereye/pkg/config"
	"github.com/clustereye/clustereye/pkg/contextutils"
	"github.com/clustereye/clustereye/pkg/logging"
	"github.com/clustereye/clustereye/pkg/remediation"
	"github.com/clustereye/clustereye/pkg/repository/storage"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func Dependencies(stg *storage.Storage, analyzer *analysis.Analyzer, engine *remediation.Engine, mgr cluster.Manager, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("storage", stg)
		c.Set("analyzer", analyzer)
		c.Set("remediationEngine", engine)
		c.Set("clusterManager", mgr)
		c.Set("appConfig", cfg)
		c.Next()
	}
}

func CorsMiddleware() gin.HandlerFunc {
	cfg := cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "X-Requested-With"},
		AllowCredentials: true,
	}
	return cors.New(cfg)
}

func RequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		if fullPath := c.FullPath(); fullPath != "" {
			ctx = contextutils.WithAPI(ctx, fullPath)
		}

		if project := c.Query("project"); project != "" {
			ctx = contextutils.WithProject(ctx, project)
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func Logger() gin.HandlerFunc {
	return gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		ctx := param.Request.Context()
		logging.Infof(ctx, "HTTP %s %s - %d %dbytes %s",
			param.Method,
			param.Path,
			param.StatusCode,
			param.BodySize,
			param.Latency,
		)
		return ""
	})
}

func Common(stg *storage.Storage, analyzer *analysis.Analyzer, engine *remediation.Engine, mgr cluster.Manager, cfg *config.Config) []gin.HandlerFunc {
	return []gin.HandlerFunc{
		Logger(),
		gin.Recovery(),
		CorsMiddleware(),
		Dependencies(stg, analyzer, engine, mgr, cfg),
		RequestContext(),
	}
}
