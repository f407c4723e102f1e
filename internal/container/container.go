// Package container wires core reins services using go.uber.org/dig.
package container

import (
	"log/slog"

	"go.uber.org/dig"

	"github.com/reins-ai/reins/internal/briefing"
	"github.com/reins-ai/reins/internal/bus"
	"github.com/reins-ai/reins/internal/channels"
	"github.com/reins-ai/reins/internal/compaction"
	"github.com/reins-ai/reins/internal/config"
	"github.com/reins-ai/reins/internal/cron"
	"github.com/reins-ai/reins/internal/memory"
	"github.com/reins-ai/reins/internal/providers"
	"github.com/reins-ai/reins/internal/schema"
	"github.com/reins-ai/reins/internal/status"
	"github.com/reins-ai/reins/internal/store"
)

// Container holds the resolved core service singletons.
// Callers use the typed getter methods; they never need to import dig directly.
type Container struct {
	provider         schema.CompletionProvider
	store            *store.FileStore
	runner           *memory.Runner
	briefingSvc      *briefing.Service
	sessions         *compaction.SessionManager
	compactor        *compaction.Manager
	deliveryBus      *bus.DeliveryBus
	channelMgr       *channels.Manager
	statusFile       *status.File
	consolidationJob *cron.ConsolidationJob
	briefingJob      *cron.BriefingJob
}

func (c *Container) Provider() schema.CompletionProvider  { return c.provider }
func (c *Container) Store() *store.FileStore              { return c.store }
func (c *Container) Runner() *memory.Runner               { return c.runner }
func (c *Container) BriefingService() *briefing.Service   { return c.briefingSvc }
func (c *Container) Sessions() *compaction.SessionManager { return c.sessions }
func (c *Container) Compactor() *compaction.Manager       { return c.compactor }
func (c *Container) DeliveryBus() *bus.DeliveryBus        { return c.deliveryBus }
func (c *Container) ChannelManager() *channels.Manager    { return c.channelMgr }
func (c *Container) StatusFile() *status.File             { return c.statusFile }

func (c *Container) ConsolidationJob() *cron.ConsolidationJob { return c.consolidationJob }
func (c *Container) BriefingJob() *cron.BriefingJob           { return c.briefingJob }

// New builds and wires all core services from cfg.
func New(cfg *config.Config) (*Container, error) {
	d := dig.New()

	constructors := []any{
		func() *config.Config { return cfg },
		newProvider,
		newStore,
		newPromptSet,
		newRunner,
		newBriefingService,
		newSessionManager,
		newExtractor,
		newCompactionManager,
		newDeliveryBus,
		newChannelManager,
		newStatusFile,
		newConsolidationJob,
		newBriefingJob,
	}
	for _, c := range constructors {
		if err := d.Provide(c); err != nil {
			return nil, err
		}
	}

	var result *Container
	err := d.Invoke(func(
		provider schema.CompletionProvider,
		st *store.FileStore,
		runner *memory.Runner,
		briefingSvc *briefing.Service,
		sessions *compaction.SessionManager,
		compactor *compaction.Manager,
		deliveryBus *bus.DeliveryBus,
		channelMgr *channels.Manager,
		statusFile *status.File,
		consolidationJob *cron.ConsolidationJob,
		briefingJob *cron.BriefingJob,
	) {
		result = &Container{
			provider:         provider,
			store:            st,
			runner:           runner,
			briefingSvc:      briefingSvc,
			sessions:         sessions,
			compactor:        compactor,
			deliveryBus:      deliveryBus,
			channelMgr:       channelMgr,
			statusFile:       statusFile,
			consolidationJob: consolidationJob,
			briefingJob:      briefingJob,
		}
	})
	return result, err
}

func newProvider(cfg *config.Config) schema.CompletionProvider {
	return providers.New(cfg.Provider)
}

func newStore(cfg *config.Config) (*store.FileStore, error) {
	return store.NewFileStore(cfg.WorkspacePath())
}

func newPromptSet(cfg *config.Config) *memory.PromptSet {
	return memory.NewPromptSet(cfg.WorkspacePath())
}

func newRunner(cfg *config.Config, st *store.FileStore, provider schema.CompletionProvider, prompts *memory.PromptSet) (*memory.Runner, error) {
	m := cfg.Memory

	scorer, err := memory.NewScorer(memory.ScorerConfig{
		MinImportance:      0,
		MaxImportance:      1,
		ReinforcementBoost: m.ReinforcementBoost,
		DecayRate:          m.DecayRate,
		DecayWindow:        m.DecayWindow(),
	})
	if err != nil {
		return nil, err
	}

	selector := memory.NewSelector(st, memory.SelectorConfig{
		BatchSize:    m.BatchSize,
		DedupeWindow: m.DedupeWindow(),
		MaxRetries:   m.MaxRetries,
		MinAge:       m.MinAge(),
	})
	distiller := memory.NewDistiller(provider, prompts, memory.DistillerConfig{
		ConfidenceThreshold: m.ConfidenceThreshold,
		MaxFactsPerBatch:    m.MaxFactsPerBatch,
	})
	merger := memory.NewMerger(scorer, memory.MergeConfig{
		MinConfidenceToMerge:      m.MinConfidenceToMerge,
		SimilarityThreshold:       m.SimilarityThreshold,
		MaxSupersessionChainDepth: m.MaxSupersessionChainDepth,
	})
	policy := memory.RetryPolicy{
		MaxRetries:  m.Retry.MaxRetries,
		BaseBackoff: m.Retry.BaseBackoff(),
		MaxBackoff:  m.Retry.MaxBackoff(),
	}

	return memory.NewRunner(selector, distiller, merger, st, policy), nil
}

func newBriefingService(cfg *config.Config, st *store.FileStore) *briefing.Service {
	return briefing.NewService(st, st, st, briefing.Config{
		MaxSections:        cfg.Briefing.MaxSections,
		MaxItemsPerSection: cfg.Briefing.MaxItemsPerSection,
		LookbackWindow:     cfg.Briefing.LookbackWindow(),
		TopicFilters:       cfg.Briefing.TopicFilters,
	})
}

func newSessionManager(cfg *config.Config) (*compaction.SessionManager, error) {
	return compaction.NewSessionManager(cfg.WorkspacePath())
}

func newExtractor(provider schema.CompletionProvider, prompts *memory.PromptSet, st *store.FileStore) *compaction.LLMExtractor {
	return compaction.NewLLMExtractor(provider, prompts, st)
}

func newCompactionManager(extractor *compaction.LLMExtractor, sessions *compaction.SessionManager) *compaction.Manager {
	return compaction.NewManager(compaction.NewPreservationHook(extractor), sessions)
}

func newDeliveryBus() *bus.DeliveryBus {
	return bus.NewDeliveryBus(64)
}

func newChannelManager(cfg *config.Config, deliveryBus *bus.DeliveryBus) *channels.Manager {
	return channels.NewManager(cfg, deliveryBus)
}

func newStatusFile() *status.File {
	return status.NewFile(config.StatusPath())
}

func jobSchedule(j config.JobScheduleConfig) cron.Schedule {
	return cron.Schedule{
		Enabled:  j.Enabled,
		Interval: j.Interval(),
		Expr:     j.Expr,
		TZ:       j.TZ,
	}
}

func newConsolidationJob(cfg *config.Config, runner *memory.Runner, statusFile *status.File) *cron.ConsolidationJob {
	return cron.NewConsolidationJob(runner, jobSchedule(cfg.Jobs.Consolidation),
		statusFile.RecordConsolidation,
		func(err error) { slog.Error("consolidation job failed", "err", err) },
	)
}

func newBriefingJob(cfg *config.Config, svc *briefing.Service, mgr *channels.Manager, statusFile *status.File) *cron.BriefingJob {
	return cron.NewBriefingJob(svc, mgr.DeliverBriefing, jobSchedule(cfg.Jobs.Briefing),
		statusFile.RecordBriefing,
		func(err error) { slog.Error("briefing job failed", "err", err) },
	)
}
