package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/JPZU/InsightIQ/internal/alarm"
	"github.com/JPZU/InsightIQ/internal/api/handlers"
	"github.com/JPZU/InsightIQ/internal/dataset"
	"github.com/JPZU/InsightIQ/internal/llm"
	"github.com/JPZU/InsightIQ/internal/metrics"
	"github.com/JPZU/InsightIQ/internal/query"
	"github.com/JPZU/InsightIQ/internal/report"
	"github.com/JPZU/InsightIQ/internal/storage/sqlite"
	"github.com/JPZU/InsightIQ/internal/synthetic"
	"github.com/JPZU/InsightIQ/pkg/config"
	appLogger "github.com/JPZU/InsightIQ/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting InsightIQ API Server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	executor := dataset.NewExecutor(sqliteClient.DB())
	introspector := dataset.NewIntrospector(sqliteClient.DB())

	var history alarm.History
	switch cfg.History.Backend {
	case "redis":
		redisHistory, err := alarm.NewRedisHistory(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
		)
		if err != nil {
			appLogger.Fatal("Failed to connect to Redis alarm history", zap.Error(err))
		}
		history = redisHistory
	default:
		history = alarm.NewMemoryHistory()
	}

	llmClient := llm.NewClient(
		cfg.LLM.APIKey,
		cfg.LLM.Model,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
		cfg.LLM.TimeoutSec,
	)

	agent := llm.NewAgent(llmClient, introspector, executor, cfg.LLM.MaxSteps, cfg.LLM.RowLimit)

	queryEngine := query.NewEngine(
		agent,
		executor,
		sqliteClient,
		introspector,
		time.Duration(cfg.LLM.TimeoutSec)*time.Second,
	)

	evaluator := alarm.NewEvaluator(sqliteClient, executor, history)
	creator := alarm.NewCreator(llmClient, introspector, sqliteClient)
	reportService := report.NewService(agent)
	generator := synthetic.NewGenerator(llmClient, introspector)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(limiter.New(limiter.Config{
		Max:        cfg.Server.RateLimit,
		Expiration: time.Minute,
	}))

	queryHandler := handlers.NewQueryHandler(queryEngine, sqliteClient)
	chatHandler := handlers.NewChatHandler(sqliteClient)
	alarmHandler := handlers.NewAlarmHandler(creator, evaluator, history, sqliteClient)
	tableHandler := handlers.NewTableHandler(introspector, sqliteClient)
	reportHandler := handlers.NewReportHandler(reportService)
	syntheticHandler := handlers.NewSyntheticHandler(generator)
	wsHandler := handlers.NewWebSocketHandler(queryEngine)

	api := app.Group("/api/v1")

	api.Post("/query", queryHandler.HandleQuery)

	api.Post("/chats", chatHandler.CreateChat)
	api.Get("/chats", chatHandler.ListChats)
	api.Get("/chats/:id/messages", chatHandler.GetMessages)
	api.Delete("/chats/:id/messages", chatHandler.ClearMessages)
	api.Put("/chats/:id", chatHandler.RenameChat)
	api.Delete("/chats/:id", chatHandler.DeleteChat)

	api.Post("/alarms", alarmHandler.CreateAlarm)
	api.Get("/alarms", alarmHandler.ListAlarms)
	api.Post("/alarms/evaluate/:table", alarmHandler.EvaluateTable)
	api.Delete("/alarms/history", alarmHandler.ClearHistory)
	api.Put("/alarms/:id", alarmHandler.UpdateAlarm)
	api.Delete("/alarms/:id", alarmHandler.DeleteAlarm)

	api.Get("/tables", tableHandler.ListTables)
	api.Get("/tables/:table", tableHandler.GetTableInfo)
	api.Get("/tables/:table/stats", tableHandler.GetTableStats)
	api.Post("/tables/:table/synthetic", syntheticHandler.GenerateData)
	api.Get("/datasets", tableHandler.ListDatasets)

	api.Post("/report", reportHandler.GenerateReport)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/query", websocket.New(wsHandler.HandleConnection))

	app.Get("/metrics", metrics.MetricsHandler())

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
