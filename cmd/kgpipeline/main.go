// kgpipeline runs one knowledge-graph construction-and-evaluation
// experiment: load a declarative config, pull a canonical object set,
// drive it through the pipeline orchestrator, and print the result.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/codeready-toolchain/kgraph-pipeline/pkg/canonical"
	"github.com/codeready-toolchain/kgraph-pipeline/pkg/config"
	"github.com/codeready-toolchain/kgraph-pipeline/pkg/embedding"
	"github.com/codeready-toolchain/kgraph-pipeline/pkg/llm"
	"github.com/codeready-toolchain/kgraph-pipeline/pkg/pipeline"
	"github.com/codeready-toolchain/kgraph-pipeline/pkg/relation"
	"github.com/codeready-toolchain/kgraph-pipeline/pkg/retrieval"
	"github.com/codeready-toolchain/kgraph-pipeline/pkg/store"
	"github.com/codeready-toolchain/kgraph-pipeline/pkg/version"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configPath := flag.String("config", getEnv("KGPIPELINE_CONFIG", "./experiment.yaml"), "Path to experiment config YAML")
	objectsPath := flag.String("objects", getEnv("KGPIPELINE_OBJECTS", "./objects.json"), "Path to a JSON array of canonical objects")
	usePostgres := flag.Bool("postgres", false, "Use the Postgres-backed store instead of the in-process memstore")
	useRedis := flag.Bool("redis", false, "Cache retrieval results in Redis")
	redisAddr := flag.String("redis-addr", getEnv("KGPIPELINE_REDIS_ADDR", "localhost:6379"), "Redis address for the retrieval result cache")
	envPath := flag.String("env-file", getEnv("KGPIPELINE_ENV_FILE", ".env"), "Path to a .env file to load before running")
	flag.Parse()

	if err := godotenv.Load(*envPath); err != nil {
		log.Printf("Warning: could not load %s: %v", *envPath, err)
		log.Printf("Continuing with existing environment variables...")
	} else {
		log.Printf("Loaded environment from %s", *envPath)
	}

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load experiment config: %v", err)
	}
	log.Printf("Loaded experiment %q from %s", cfg.Name, *configPath)
	if cfg.Metadata.GitCommit == "" {
		cfg.Metadata.GitCommit = version.GitCommit
	}

	objects, err := loadObjects(*objectsPath)
	if err != nil {
		log.Fatalf("Failed to load canonical objects: %v", err)
	}
	log.Printf("Loaded %d canonical objects from %s", len(objects), *objectsPath)

	st, closeStore, err := buildStore(ctx, *usePostgres)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer closeStore()

	deps := buildDeps(*cfg, st, *useRedis, *redisAddr)

	p := pipeline.New(st, pipeline.Hooks{
		OnStageStart: func(s pipeline.Stage) {
			log.Printf("stage %s: starting", s.Name())
		},
		OnStageComplete: func(s pipeline.Stage, durationMs float64) {
			log.Printf("stage %s: completed in %.1fms", s.Name(), durationMs)
		},
		OnStageError: func(s pipeline.Stage, durationMs float64, err error) {
			log.Printf("stage %s: failed after %.1fms: %v", s.Name(), durationMs, err)
		},
	})
	for _, stage := range pipeline.DefaultStages(st, deps) {
		p.AddStage(stage, -1)
	}

	pc := pipeline.NewContext(*cfg, objects, st)
	result := p.Run(ctx, pc)

	out, err := json.MarshalIndent(resultView{
		Success:    result.Success,
		Config:     result.Config,
		DurationMs: result.DurationMs,
		Timestamp:  result.Timestamp,
		Stats:      pc.Stats,
		Error:      errorString(result.Error),
	}, "", "  ")
	if err != nil {
		log.Fatalf("Failed to marshal result: %v", err)
	}
	fmt.Println(string(out))

	if !result.Success {
		os.Exit(1)
	}
}

// resultView is the JSON-friendly projection of pipeline.Result; the real
// Result carries an `error` value, which json.Marshal can't render
// usefully on its own.
type resultView struct {
	Success    bool           `json:"success"`
	Config     string         `json:"config"`
	DurationMs float64        `json:"duration_ms"`
	Timestamp  time.Time      `json:"timestamp"`
	Stats      pipeline.Stats `json:"stats"`
	Error      string         `json:"error,omitempty"`
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func loadObjects(path string) ([]canonical.Object, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var objects []canonical.Object
	if err := json.Unmarshal(raw, &objects); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return objects, nil
}

func buildStore(ctx context.Context, usePostgres bool) (store.Store, func(), error) {
	if !usePostgres {
		return store.NewMemStore(nil, nil, nil), func() {}, nil
	}

	pgCfg, err := store.PGConfigFromEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("loading Postgres config: %w", err)
	}
	pg, err := store.NewPGStore(ctx, pgCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to Postgres: %w", err)
	}
	log.Println("Connected to PostgreSQL-backed store")
	return pg, func() {
		if err := pg.Close(); err != nil {
			log.Printf("Error closing store: %v", err)
		}
	}, nil
}

// buildDeps wires the embedding adapter, optional LLM client, and
// retriever an experiment run needs, from the loaded config and the
// environment.
func buildDeps(cfg config.ExperimentConfig, st store.Store, useRedis bool, redisAddr string) pipeline.Deps {
	dims := cfg.Embedding.Dimensions
	if dims <= 0 {
		dims = 1536
	}
	embedder := embedding.NewAdapter(embedding.NewMockProvider(dims), embedding.Config{
		Model:     cfg.Embedding.Model,
		BatchSize: cfg.Embedding.BatchSize,
	}, dims)

	var llmProvider relation.LLMProvider
	if cfg.RelationInference.UseContrastiveICL && cfg.RelationInference.LLMConfig != nil {
		apiKey := ""
		if env := cfg.RelationInference.LLMConfig.APIKeyEnv; env != "" {
			apiKey = os.Getenv(env)
		}
		llmProvider = llm.NewClient(getEnv("KGPIPELINE_LLM_BASE_URL", "https://api.openai.com/v1"), apiKey)
	}

	retriever := retrieval.New(st, embedder)
	if useRedis {
		client := redis.NewClient(&redis.Options{Addr: redisAddr})
		retriever = retriever.WithCache(retrieval.NewQueryCache(client))
		log.Printf("Caching retrieval results in Redis at %s", redisAddr)
	}

	return pipeline.Deps{
		Embedder:  embedder,
		Retriever: retriever,
		LLM:       llmProvider,
	}
}
