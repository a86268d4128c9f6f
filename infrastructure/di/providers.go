package di

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"forgeproxy/application/ports"
	"forgeproxy/application/services"
	"forgeproxy/infrastructure/config"
	"forgeproxy/infrastructure/n8n"
	"forgeproxy/infrastructure/ollama"
	"forgeproxy/infrastructure/persistence/memory"
)

// Container holds all application dependencies
type Container struct {
	Config    *config.Config
	Logger    *zap.Logger
	Store     *memory.OperationStore
	Engine    ports.WorkflowEngine
	Model     ports.ModelServer
	Callbacks *services.CallbackService
}

// ProvideLogger creates the application logger from configuration
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.IsProduction() {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}

// ProvideOperationStore creates the in-memory operation store
func ProvideOperationStore(cfg *config.Config, logger *zap.Logger) *memory.OperationStore {
	return memory.NewOperationStore(cfg.OperationTTL(), logger)
}

// ProvideWorkflowEngine creates the n8n client
func ProvideWorkflowEngine(cfg *config.Config, logger *zap.Logger) *n8n.Client {
	return n8n.NewClient(n8n.Config{
		BaseURL:          cfg.N8NURL,
		ResearchWebhook:  cfg.ResearchWebhook,
		ImplementWebhook: cfg.ImplementWebhook,
		CallbackBaseURL:  cfg.APIBaseURL,
	}, logger)
}

// ProvideModelServer creates the Ollama client
func ProvideModelServer(cfg *config.Config, logger *zap.Logger) *ollama.Client {
	return ollama.NewClient(cfg.OllamaURL, cfg.OllamaModel, logger)
}

// ProvideCallbackService creates the callback reconciliation service
func ProvideCallbackService(store *memory.OperationStore, cfg *config.Config, logger *zap.Logger) *services.CallbackService {
	return services.NewCallbackService(store, cfg.ServiceNowInstance, logger)
}
