package application

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ngoclaw/sitebot/internal/application/usecase"
	"github.com/ngoclaw/sitebot/internal/domain/repository"
	"github.com/ngoclaw/sitebot/internal/domain/service"
	"github.com/ngoclaw/sitebot/internal/domain/valueobject"
	"github.com/ngoclaw/sitebot/internal/infrastructure/config"
	"github.com/ngoclaw/sitebot/internal/infrastructure/eventbus"
	"github.com/ngoclaw/sitebot/internal/infrastructure/knowledge"
	"github.com/ngoclaw/sitebot/internal/infrastructure/llm"
	_ "github.com/ngoclaw/sitebot/internal/infrastructure/llm/ollama" // register ollama provider factory
	_ "github.com/ngoclaw/sitebot/internal/infrastructure/llm/openai" // register openai provider factory
	"github.com/ngoclaw/sitebot/internal/infrastructure/monitoring"
	"github.com/ngoclaw/sitebot/internal/infrastructure/persistence"
	"github.com/ngoclaw/sitebot/internal/infrastructure/prompt"
	httpServer "github.com/ngoclaw/sitebot/internal/interfaces/http"
	"github.com/ngoclaw/sitebot/internal/interfaces/http/handlers"
	"github.com/ngoclaw/sitebot/internal/interfaces/websocket"
	"github.com/ngoclaw/sitebot/pkg/safego"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

const collectInterval = time.Minute

// App 应用程序
type App struct {
	config *config.Config
	logger *zap.Logger
	db     *gorm.DB

	// 仓储层
	conversationRepo repository.ConversationRepository
	messageRepo      repository.MessageRepository
	knowledgeRepo    repository.KnowledgeRepository

	// 领域服务
	tables     *service.Tables
	business   service.BusinessProfile
	detector   *service.LanguageDetector
	classifier *service.IntentClassifier
	retriever  *service.KnowledgeRetriever
	generator  *service.ResponseGenerator

	// 基础设施
	monitor   *monitoring.Monitor
	llmRouter *llm.Router
	events    *eventbus.InMemoryBus
	personas  *prompt.PersonaStore

	// 应用服务
	processMessageUseCase *usecase.ProcessMessageUseCase
	historyUseCase        *usecase.ConversationHistoryUseCase

	// 接口层
	hub        *websocket.Hub
	httpServer *httpServer.Server
	cancel     context.CancelFunc
	workers    []<-chan struct{}
}

// NewApp 创建应用程序（依赖注入容器）
func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	app, err := newCore(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := app.initInterfaces(); err != nil {
		return nil, fmt.Errorf("failed to init interfaces: %w", err)
	}
	return app, nil
}

// NewAppCLI creates the pipeline without any server, for one-shot commands.
func NewAppCLI(cfg *config.Config, logger *zap.Logger) (*App, error) {
	return newCore(cfg, logger)
}

func newCore(cfg *config.Config, logger *zap.Logger) (*App, error) {
	app := &App{
		config: cfg,
		logger: logger,
	}

	if err := app.initRepositories(); err != nil {
		return nil, fmt.Errorf("failed to init repositories: %w", err)
	}
	if err := app.initDomainServices(); err != nil {
		return nil, fmt.Errorf("failed to init domain services: %w", err)
	}
	app.initInfrastructure()
	if err := app.initApplicationServices(); err != nil {
		return nil, fmt.Errorf("failed to init application services: %w", err)
	}
	return app, nil
}

// initRepositories 初始化仓储层
func (app *App) initRepositories() error {
	app.logger.Info("Initializing repositories", zap.String("type", app.config.Database.Type))

	if app.config.Database.Type == "memory" {
		app.conversationRepo = persistence.NewMemoryConversationRepository()
		app.messageRepo = persistence.NewMemoryMessageRepository()
		app.knowledgeRepo = persistence.NewMemoryKnowledgeRepository()
		return nil
	}

	db, err := persistence.NewDBConnection(&app.config.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	app.db = db

	app.conversationRepo = persistence.NewGormConversationRepository(db)
	app.messageRepo = persistence.NewGormMessageRepository(db)
	app.knowledgeRepo = persistence.NewGormKnowledgeRepository(db)
	return nil
}

// initDomainServices 初始化领域服务
func (app *App) initDomainServices() error {
	app.tables = service.DefaultTables()
	app.business = BusinessProfileFrom(app.config.Business)

	var err error
	if app.detector, err = service.NewLanguageDetector(app.tables); err != nil {
		return err
	}
	if app.classifier, err = service.NewIntentClassifier(app.tables); err != nil {
		return err
	}
	app.retriever = service.NewKnowledgeRetriever(app.knowledgeRepo, app.config.Pipeline.KnowledgeTimeout, app.logger)
	return nil
}

// initInfrastructure builds the metrics sink, the event bus and the LLM
// provider chain.
func (app *App) initInfrastructure() {
	app.monitor = monitoring.NewMonitor(app.logger)
	app.events = eventbus.NewInMemoryBus(app.logger, 256)

	dir := app.config.LLM.PersonaDir
	if dir == "" {
		dir = config.DefaultPersonaDir()
	}
	app.personas = prompt.NewPersonaStore(dir, app.logger)
	if err := app.personas.Load(); err != nil {
		app.logger.Warn("Persona overrides unavailable", zap.String("dir", dir), zap.Error(err))
	}

	app.llmRouter = llm.NewRouter(app.logger)
	if !app.config.LLM.Enabled {
		app.logger.Info("Generative replies disabled")
		return
	}

	cfgs := make([]llm.ProviderConfig, 0, len(app.config.LLM.Providers))
	for _, p := range app.config.LLM.Providers {
		cfgs = append(cfgs, llm.ProviderConfig{
			Name:     p.Name,
			Type:     p.Type,
			BaseURL:  p.BaseURL,
			APIKey:   p.APIKey,
			Models:   p.Models,
			Priority: p.Priority,
		})
	}
	for _, pc := range llm.SortByPriority(cfgs) {
		provider, err := llm.CreateProvider(pc, app.logger)
		if err != nil {
			app.logger.Error("Failed to create LLM provider",
				zap.String("name", pc.Name),
				zap.String("type", pc.Type),
				zap.Error(err),
			)
			continue
		}
		app.llmRouter.AddProvider(provider)
	}
	app.logger.Info("LLM Router initialized", zap.Int("providers", app.llmRouter.Len()))
}

// initApplicationServices assembles the fallback chain and the use cases.
func (app *App) initApplicationServices() error {
	var tiers []service.Responder
	if app.config.LLM.Enabled && app.llmRouter.Len() > 0 {
		model := valueobject.NewModelConfig(
			app.config.LLM.Model,
			app.config.LLM.MaxTokens,
			app.config.LLM.Temperature,
			app.config.LLM.HistoryLimit,
		)
		client := monitoring.NewInstrumentedLLM(app.llmRouter, app.monitor)
		generative := service.NewGenerativeResponder(client, model, app.business, app.config.LLM.Timeout, app.logger)
		generative.SetPersonas(app.personas)
		tiers = append(tiers, generative)
	}
	if app.config.Pipeline.DirectKnowledge {
		tiers = append(tiers, service.NewKnowledgeResponder(app.business))
	}

	canned, err := service.NewCannedResponder(app.tables, app.business)
	if err != nil {
		return err
	}
	app.generator = service.NewResponseGenerator(app.classifier, canned, app.logger, tiers...)

	app.processMessageUseCase = usecase.NewProcessMessageUseCase(
		app.conversationRepo,
		app.messageRepo,
		app.detector,
		app.classifier,
		app.retriever,
		app.generator,
		usecase.ProcessMessageConfig{
			KnowledgeLimit: app.config.Pipeline.KnowledgeLimit,
			StoreTimeout:   app.config.Pipeline.StoreTimeout,
			HistoryLimit:   app.config.LLM.HistoryLimit,
		},
		app.logger,
	)
	app.processMessageUseCase.SetMetrics(app.monitor)
	app.processMessageUseCase.SetEventPublisher(app.events)

	app.historyUseCase = usecase.NewConversationHistoryUseCase(app.conversationRepo, app.messageRepo, app.logger)
	return nil
}

// initInterfaces 初始化接口层
func (app *App) initInterfaces() error {
	app.hub = websocket.NewHub(app.processMessageUseCase, 0, app.logger)
	app.hub.Subscribe(app.events)
	wsHandler := websocket.NewHandler(app.hub, app.logger)

	health := handlers.NewHealthHandler(
		Version,
		func(ctx context.Context) interface{} { return app.llmRouter.ListProviders(ctx) },
		func() interface{} { return app.monitor.GetDashboardData() },
	)

	app.httpServer = httpServer.NewServer(httpServer.Config{
		Addr: app.config.Server.Addr(),
		Mode: app.config.Server.Mode,
	}, httpServer.Routes{
		Chat:      handlers.NewChatHandler(app.processMessageUseCase, app.historyUseCase, app.logger),
		Health:    health,
		Metrics:   app.monitor.PrometheusHandler(),
		WebSocket: wsHandler.ServeWS,
	}, app.logger)
	return nil
}

// SeedKnowledge imports a knowledge YAML file. An empty path uses the
// configured seed file.
func (app *App) SeedKnowledge(ctx context.Context, path string) (int, error) {
	if path == "" {
		path = app.config.Knowledge.SeedFile
	}
	if path == "" {
		return 0, nil
	}
	items, err := knowledge.LoadSeedFile(path)
	if err != nil {
		return 0, err
	}
	return knowledge.Seed(ctx, app.knowledgeRepo, items, app.logger)
}

// Start 启动应用程序
func (app *App) Start(ctx context.Context) error {
	app.logger.Info("Starting application")

	if n, err := app.SeedKnowledge(ctx, ""); err != nil {
		app.logger.Warn("Knowledge seed failed (non-fatal)", zap.Error(err))
	} else if n > 0 {
		app.logger.Info("Knowledge seeded", zap.Int("items", n))
	}

	runCtx, cancel := context.WithCancel(context.Background())
	app.cancel = cancel

	app.workers = append(app.workers,
		safego.Go(app.logger, "metrics-collector", func() { app.monitor.StartCollector(runCtx, collectInterval) }))
	if app.hub != nil {
		app.workers = append(app.workers, safego.Go(app.logger, "ws-hub", func() { app.hub.Run(runCtx) }))
	}
	if app.config.LLM.Enabled {
		app.workers = append(app.workers, safego.Go(app.logger, "persona-watcher", func() {
			if err := app.personas.Watch(runCtx); err != nil {
				app.logger.Debug("Persona hot reload off", zap.Error(err))
			}
		}))
	}

	if app.httpServer != nil {
		if err := app.httpServer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
	}

	app.logger.Info("Application started successfully")
	return nil
}

// Stop 停止应用程序
func (app *App) Stop(ctx context.Context) error {
	app.logger.Info("Stopping application")

	if app.httpServer != nil {
		if err := app.httpServer.Stop(ctx); err != nil {
			app.logger.Error("Failed to stop HTTP server", zap.Error(err))
		}
	}
	if app.cancel != nil {
		app.cancel()
	}
	if err := safego.Wait(ctx, app.workers...); err != nil {
		app.logger.Warn("Background workers still running", zap.Error(err))
	}
	app.events.Close()

	if app.db != nil {
		sqlDB, err := app.db.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				app.logger.Error("Failed to close database connection", zap.Error(err))
			}
		}
	}

	app.logger.Info("Application stopped successfully")
	return nil
}

// ProcessMessageUseCase returns the chat pipeline (used by the ask command)
func (app *App) ProcessMessageUseCase() *usecase.ProcessMessageUseCase {
	return app.processMessageUseCase
}

// Monitor returns the metrics sink
func (app *App) Monitor() *monitoring.Monitor {
	return app.monitor
}

// Logger returns the application logger
func (app *App) Logger() *zap.Logger {
	return app.logger
}

// AppConfig returns the application config
func (app *App) AppConfig() *config.Config {
	return app.config
}

// Business returns the business facts quoted to visitors
func (app *App) Business() service.BusinessProfile {
	return app.business
}

// Personas returns the persona overrides in effect
func (app *App) Personas() *prompt.PersonaStore {
	return app.personas
}

// ProviderNames lists the LLM providers in failover order
func (app *App) ProviderNames(ctx context.Context) []string {
	statuses := app.llmRouter.ListProviders(ctx)
	names := make([]string, 0, len(statuses))
	for _, s := range statuses {
		names = append(names, s.Name)
	}
	return names
}
