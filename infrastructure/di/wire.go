//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"forgeproxy/application/ports"
	"forgeproxy/infrastructure/config"
	"forgeproxy/infrastructure/n8n"
	"forgeproxy/infrastructure/ollama"
)

// SuperSet is the complete provider set for the application
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideOperationStore,
	ProvideWorkflowEngine,
	ProvideModelServer,
	ProvideCallbackService,

	wire.Bind(new(ports.WorkflowEngine), new(*n8n.Client)),
	wire.Bind(new(ports.ModelServer), new(*ollama.Client)),

	wire.Struct(new(Container), "*"),
)

// InitializeContainer builds the full dependency container
func InitializeContainer(cfg *config.Config) (*Container, error) {
	wire.Build(SuperSet)
	return nil, nil
}
