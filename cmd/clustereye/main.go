package main

import (
	"context"
	"os"

	"github.com/clustereye/clustereye/pkg/adapters/database"
	"github.com/clustereye/clustereye/pkg/adapters/kube"
	"github.com/clustereye/clustereye/pkg/alerting"
	"github.com/clustereye/clustereye/pkg/analysis"
	"github.com/clustereye/clustereye/pkg/client"
	"github.com/clustereye/clustereye/pkg/cluster"
	"github.com/clustereye/clustereye/pkg/config"
	"github.com/clustereye/clustereye/pkg/contextutils"
	"github.com/clustereye/clustereye/pkg/enrich"
	"github.com/clustereye/clustereye/pkg/logging"
	"github.com/clustereye/clustereye/pkg/middleware"
	"github.com/clustereye/clustereye/pkg/remediation"
	"github.com/clustereye/clustereye/pkg/repository/storage"
	"github.com/clustereye/clustereye/pkg/server"
	"github.com/clustereye/clustereye/pkg/task"
	"github.com/clustereye/clustereye/pkg/telemetry"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	_ "go.uber.org/automaxprocs"
)

var (
	configFilePath string
	v              = viper.New()
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "clustereye",
		Short: "GPU cluster failure tracking and remediation",
		Run:   runClustereye,
	}

	// Core flags
	rootCmd.PersistentFlags().StringVar(&configFilePath, "config-file-path", "", "Path to configuration file")
	rootCmd.PersistentFlags().String("run-mode", "", "Run mode: local|inCluster")

	// Dependencies flags
	rootCmd.PersistentFlags().String("kubeconfig-path", "", "Path to kubeconfig file (local mode)")
	rootCmd.PersistentFlags().String("scheduler-base-url", "", "GPU scheduler API base URL")

	// Server flags
	rootCmd.PersistentFlags().String("server-port", "", "Server port")

	// Database flags
	rootCmd.PersistentFlags().String("db-type", "", "Database type: sqlite|postgres")
	rootCmd.PersistentFlags().String("db-file-path", "", "Database file path (sqlite)")

	// Monitor flags
	rootCmd.PersistentFlags().String("project", "", "Restrict monitoring to one project")
	rootCmd.PersistentFlags().String("slack-webhook-url", "", "Slack webhook URL for failure alerts")

	// Bind flags to viper
	ctx := context.Background()
	if err := v.BindPFlag("runMode", rootCmd.PersistentFlags().Lookup("run-mode")); err != nil {
		logging.Fatalf(ctx, "Failed to bind flag: %v", err)
	}
	if err := v.BindPFlag("dependencies.kubeconfigPath", rootCmd.PersistentFlags().Lookup("kubeconfig-path")); err != nil {
		logging.Fatalf(ctx, "Failed to bind flag: %v", err)
	}
	if err := v.BindPFlag("dependencies.scheduler.baseURL", rootCmd.PersistentFlags().Lookup("scheduler-base-url")); err != nil {
		logging.Fatalf(ctx, "Failed to bind flag: %v", err)
	}
	if err := v.BindPFlag("server.port", rootCmd.PersistentFlags().Lookup("server-port")); err != nil {
		logging.Fatalf(ctx, "Failed to bind flag: %v", err)
	}
	if err := v.BindPFlag("db.type", rootCmd.PersistentFlags().Lookup("db-type")); err != nil {
		logging.Fatalf(ctx, "Failed to bind flag: %v", err)
	}
	if err := v.BindPFlag("db.filePath", rootCmd.PersistentFlags().Lookup("db-file-path")); err != nil {
		logging.Fatalf(ctx, "Failed to bind flag: %v", err)
	}
	if err := v.BindPFlag("monitor.project", rootCmd.PersistentFlags().Lookup("project")); err != nil {
		logging.Fatalf(ctx, "Failed to bind flag: %v", err)
	}
	if err := v.BindPFlag("alerting.slackWebhookURL", rootCmd.PersistentFlags().Lookup("slack-webhook-url")); err != nil {
		logging.Fatalf(ctx, "Failed to bind flag: %v", err)
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runClustereye(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	cfg, err := config.LoadWithViperInstance(ctx, v, configFilePath)
	if err != nil {
		logging.Fatalf(ctx, "Failed to load config: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		logging.Fatalf(ctx, "Invalid configuration: %v", err)
	}
	logging.Infof(ctx, "Configuration loaded: runMode=%s db=%s", cfg.RunMode, cfg.DB.Type)

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.Init(ctx, cfg.Telemetry)
		if err != nil {
			logging.Fatalf(ctx, "Failed to initialize telemetry: %v", err)
		}

		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logging.Errorf(ctx, "Failed to shutdown telemetry: %v", err)
			}
		}()
	}

	if cfg.Metrics.Enabled {
		metricsEngine := server.SetupMetricsServerEngine()
		metricsPort := cfg.Metrics.Port
		go func() {
			logging.Infof(ctx, "Starting metrics server on :%s", metricsPort)
			if err := metricsEngine.Run(":" + metricsPort); err != nil {
				logging.Fatalf(ctx, "Metrics server failed: %v", err)
			}
		}()
	}

	////////
	// Storage Repo
	////////
	db, err := database.NewDatabase(database.DatabaseConfig{
		Type:     cfg.DB.Type,
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		Database: databaseName(cfg),
		Username: cfg.DB.Username,
		Password: cfg.DB.Password,
		SSLMode:  cfg.DB.SSLMode,
	})
	if err != nil {
		logging.Fatalf(ctx, "Failed to initialize database: %v", err)
	}
	defer func() { _ = db.Close() }()
	logging.Infof(ctx, "Database initialized")

	storageRepo, err := storage.NewStorageRepo(db)
	if err != nil {
		logging.Fatalf(ctx, "Failed to initialize storage: %v", err)
	}
	logging.Infof(ctx, "Storage Repo initialized")

	////////
	// Core engines
	////////
	analyzer := analysis.NewAnalyzer(storageRepo, cfg.Analysis.PatternThreshold)
	remediationEngine := remediation.NewEngine(db)

	////////
	// External collaborators
	////////
	schedulerClient := client.NewSchedulerClient(client.ClientConfig{
		Host:         cfg.Dependencies.Scheduler.BaseURL,
		ClientID:     cfg.Dependencies.Scheduler.ClientID,
		ClientSecret: cfg.Dependencies.Scheduler.ClientSecret,
	})

	var enricher task.Enricher
	if cfg.Monitor.EnrichFromPods {
		kubeconfigPath := ""
		if cfg.RunMode == config.RunModeLocal {
			kubeconfigPath = cfg.Dependencies.KubeconfigPath
		}
		kubeClient, err := kube.NewKubeClient(contextutils.WithCluster(ctx, cluster.SingleClusterID), kubeconfigPath)
		if err != nil {
			logging.Warnf(ctx, "Failed to create kube client, continuing without pod enrichment: %v", err)
		} else {
			enricher = enrich.NewEnricher(kubeClient)
		}
	}

	notifier := alerting.NewNotifier(cfg.Alerting.SlackWebhookURL)
	deduper := alerting.NewDeduper(cfg.Monitor.MaxAlertsPerJob)

	////////
	// Tasks
	////////
	clusterManager := cluster.NewSingleClusterManager(ctx)

	pollTaskConfig := cfg.GetTaskConfig(config.PollWorkloadsKey)
	pollTask, err := task.NewPollWorkloadsTask(
		schedulerClient,
		enricher,
		storageRepo,
		remediationEngine,
		notifier,
		deduper,
		&task.PollWorkloadsTaskConfig{
			Name:            config.PollWorkloadsKey,
			Enabled:         pollTaskConfig.Enabled,
			Schedule:        pollTaskConfig.Schedule,
			Project:         cfg.Monitor.Project,
			AllowedProjects: cfg.Monitor.AllowedProjects,
		},
		pollTaskConfig,
	)
	if err != nil {
		logging.Errorf(ctx, "Skipping task %s: %v", config.PollWorkloadsKey, err)
	} else {
		clusterManager.AddTask(pollTask)
	}

	analyzeTaskConfig := cfg.GetTaskConfig(config.AnalyzePatternsKey)
	analyzeTask, err := task.NewAnalyzePatternsTask(
		analyzer,
		notifier,
		&task.AnalyzePatternsTaskConfig{
			Name:     config.AnalyzePatternsKey,
			Enabled:  analyzeTaskConfig.Enabled,
			Schedule: analyzeTaskConfig.Schedule,
			Metadata: task.AnalyzePatternsMetadata{WindowDays: cfg.Analysis.DefaultWindowDays},
		},
		analyzeTaskConfig,
	)
	if err != nil {
		logging.Errorf(ctx, "Skipping task %s: %v", config.AnalyzePatternsKey, err)
	} else {
		clusterManager.AddTask(analyzeTask)
	}

	if err := clusterManager.ScheduleAllTasks(); err != nil {
		logging.Fatalf(ctx, "Failed to schedule tasks: %v", err)
	}

	////////
	// API server
	////////
	apiEngine := server.SetupServerEngine(middleware.Common(storageRepo, analyzer, remediationEngine, clusterManager, cfg)...)

	serverPort := cfg.Server.Port
	go func() {
		if err := apiEngine.Run(":" + serverPort); err != nil {
			logging.Fatalf(ctx, "HTTP server failed: %v", err)
		}
	}()

	clusterManager.Wait(ctx)
}

func databaseName(cfg *config.Config) string {
	if cfg.DB.Type == "postgres" {
		return cfg.DB.Database
	}
	return cfg.DB.FilePath
}
