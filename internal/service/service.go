// Package service implements the assistant's business logic: chat turn
// handling, plan approval, and the LLM fallback.
package service

import (
	"go.uber.org/zap"

	"github.com/fieldline/assistant/internal/adapter/llm"
	"github.com/fieldline/assistant/internal/config"
	"github.com/fieldline/assistant/internal/domain"
	"github.com/fieldline/assistant/internal/event"
	"github.com/fieldline/assistant/internal/planner"
	"github.com/fieldline/assistant/internal/planstore"
	store "github.com/fieldline/assistant/internal/repository"
)

type Service struct {
	store     store.Store
	llmClient llm.LLMClient
	registry  *planner.Registry
	matcher   *planner.Matcher
	executor  *planner.Executor
	plans     *planstore.Store
	bus       *event.Bus
	config    *config.Config
	log       *zap.SugaredLogger
}

func New(st store.Store, llmClient llm.LLMClient, registry *planner.Registry, matcher *planner.Matcher, executor *planner.Executor, plans *planstore.Store, bus *event.Bus, cfg *config.Config, log *zap.SugaredLogger) *Service {
	return &Service{
		store:     st,
		llmClient: llmClient,
		registry:  registry,
		matcher:   matcher,
		executor:  executor,
		plans:     plans,
		bus:       bus,
		config:    cfg,
		log:       log,
	}
}

// Tools returns the registered tool descriptors for the catalog endpoint.
func (s *Service) Tools() []domain.ToolDescriptor {
	return s.registry.List()
}
