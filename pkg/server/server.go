package server

import (
	"github.com/clustereye/clustereye/pkg/handlers"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

func SetupServerEngine(middleware ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(otelgin.Middleware("clustereye-api"))
	r.Use(middleware...)

	r.GET("/health", handlers.HandleHealth)

	apiV1Group := r.Group("/api/v1")
	{
		apiV1Group.GET("/", handlers.HandleRoot)

		apiV1Group.POST("/failures", handlers.HandleRecordFailure)
		apiV1Group.GET("/failures", handlers.HandleListFailures)
		apiV1Group.GET("/failures/stats", handlers.HandleFailureStats)
		apiV1Group.GET("/failures/analysis", handlers.HandleAnalysis)

		apiV1Group.POST("/solutions", handlers.HandleRecordSolution)
		apiV1Group.GET("/solutions/:failureType", handlers.HandleBestSolutions)

		apiV1Group.GET("/remediation/:failureType", handlers.HandleRemediation)

		apiV1Group.POST("/tasks/:taskName/trigger", handlers.HandleTaskTrigger)
	}

	return r
}

func SetupMetricsServerEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", handlers.HandleHealth)

	return r
}
