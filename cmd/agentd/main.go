// Command agentd bootstraps one evidentia agent process: config,
// logging/tracing, the Postgres-backed event store, the tool registry,
// provider selection, and the HTTP/WS front door.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"evidentia/internal/agent"
	"evidentia/internal/agentd"
	"evidentia/internal/artifacts"
	"evidentia/internal/config"
	"evidentia/internal/eventstore"
	"evidentia/internal/llmprovider"
	"evidentia/internal/observability"
	"evidentia/internal/sourcecache"
	"evidentia/internal/sources"
	"evidentia/internal/tools"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("agentd exited with error")
	}
}

func run() error {
	// A missing .env is expected in production (real envs set vars
	// directly); only a malformed file is worth surfacing, and even
	// that shouldn't block startup.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("failed to parse .env file")
	}

	settingsPath := os.Getenv("EVIDENTIA_SETTINGS_FILE")
	settings, err := config.Load(settingsPath)
	if err != nil {
		return err
	}
	observability.InitLogger(settings.Logging.LogPath, settings.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.InitOTel(ctx, os.Getenv("EVIDENTIA_OTLP_ENDPOINT"))
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	pool, err := eventstore.OpenPool(ctx, settings.Postgres.DSN)
	if err != nil {
		return err
	}
	defer pool.Close()
	store := eventstore.NewStore(pool)
	if err := store.Init(ctx); err != nil {
		return err
	}

	artifactStore := artifacts.New(settings.Artifacts.Root)
	registry := buildRegistry(settings, artifactStore)

	engines := map[llmprovider.Name]*agent.Engine{}
	httpClient := &http.Client{Timeout: 60 * time.Second}
	systemPrompt := "You are an evidence-synthesis assistant for biomedical longevity claims."

	newEngine := func(provider llmprovider.Provider) *agent.Engine {
		eng := agent.NewEngine(provider, registry, store, settings.Agent.MaxIterations, systemPrompt)
		eng.MaxToolParallelism = settings.Agent.MaxToolParallelism
		return eng
	}

	if settings.Anthropic.APIKey != "" {
		provider := llmprovider.NewAnthropicProvider(settings.Anthropic, httpClient)
		engines[llmprovider.NameAnthropic] = newEngine(provider)
	}
	if settings.OpenAI.APIKey != "" {
		provider := llmprovider.NewOpenAIProvider(settings.OpenAI, httpClient)
		engines[llmprovider.NameOpenAI] = newEngine(provider)
	}
	if len(engines) == 0 {
		log.Warn().Msg("no provider API key configured; falling back to the deterministic trigger-mock provider")
		mock := &llmprovider.TriggerMockProvider{}
		engines[llmprovider.NameAnthropic] = newEngine(mock)
	}

	server := agentd.NewServer(store, engines)
	return server.Run(ctx, settings.Server.Addr)
}

// buildRegistry wires every concrete tool this module ships: arithmetic,
// six search/lookup tools over the five upstream sources (all but
// DailyMed Redis-cached when EVIDENTIA_REDIS_ADDR is set), and the
// evidence-report composer.
func buildRegistry(settings config.Settings, artifactStore *artifacts.Store) *tools.Registry {
	var cache *sourcecache.Cache
	if settings.Redis.Addr != "" {
		cache = sourcecache.New(settings.Redis.Addr, "evidentia", 15*time.Minute)
	}

	pubmed := sourcecache.Wrap(sources.NewPubMedFixture(), cache)
	trials := sourcecache.Wrap(sources.NewClinicalTrialsFixture(), cache)
	openfda := sourcecache.Wrap(sources.NewOpenFDAFixture(), cache)
	openalex := sourcecache.Wrap(sources.NewOpenAlexFixture(), cache)
	// DailyMed is left unwrapped: SearchDrugLabelSpec needs its
	// AuthRequirement methods, which the cache decorator doesn't forward.
	dailymed := sources.NewDailyMedFixture(os.Getenv("EVIDENTIA_DAILYMED_CONFIGURED") == "true")

	specs := []tools.Spec{
		tools.CalcSpec(),
		tools.SearchPubMedSpec(pubmed),
		tools.GetPubMedRecordSpec(pubmed),
		tools.SearchClinicalTrialsSpec(trials),
		tools.SearchDrugLabelSpec(dailymed),
		tools.SearchAdverseEventsSpec(openfda),
		tools.SearchCitationGraphSpec(openalex),
		tools.BuildEvidenceReportSpec(),
	}
	return tools.NewRegistry(specs, artifactStore, settings.Artifacts.SourceCacheRoot)
}
