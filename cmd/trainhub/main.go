// Package main provides the training platform's HTTP service: Job
// Orchestrator, Model Registry, Feature Store, Experiment Tracker, and HPO
// Study Engine behind a single API server (spec §1, §6).
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"

	"github.com/correlator-io/trainhub/internal/api"
	"github.com/correlator-io/trainhub/internal/config"
	"github.com/correlator-io/trainhub/internal/eventbus"
	"github.com/correlator-io/trainhub/internal/experiments"
	"github.com/correlator-io/trainhub/internal/features"
	"github.com/correlator-io/trainhub/internal/hpo"
	"github.com/correlator-io/trainhub/internal/jobs"
	"github.com/correlator-io/trainhub/internal/objectstore"
	"github.com/correlator-io/trainhub/internal/pipeline"
	"github.com/correlator-io/trainhub/internal/registry"
	"github.com/correlator-io/trainhub/internal/storage"
)

// Version information.
const (
	version = "1.0.0-dev"
	name    = "trainhub"
)

func main() {
	versionFlag := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *versionFlag {
		log.Printf("%s v%s\n", name, version)
		os.Exit(0)
	}

	serverConfig := api.LoadServerConfig()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: serverConfig.LogLevel,
	}))

	logger.Info("starting training platform service",
		slog.String("service", name),
		slog.String("version", version),
	)

	ctx := context.Background()

	conn, err := storage.NewConnection(storage.LoadConfig())
	if err != nil {
		logger.Error("database connection failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	objectStore := newObjectStore(ctx, logger)
	reg := registry.New(objectStore)

	featureStore := newFeatureStore(conn, logger)
	tracker := experiments.New(conn, logger)
	engine := newHPOEngine(conn, logger)

	pipelineExecutor := pipeline.NewExecutor(conn, featureStore, reg, logger, pipeline.WithHPO(engine))

	jobStore, err := jobs.NewStore(conn, logger)
	if err != nil {
		logger.Error("job store initialization failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	orchestratorConfig := jobs.LoadOrchestratorConfig()
	if err := orchestratorConfig.Validate(); err != nil {
		logger.Error("invalid orchestrator configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	orchestratorOpts := []jobs.OrchestratorOption{
		jobs.WithMaxConcurrentJobs(orchestratorConfig.MaxConcurrentJobs),
	}

	if brokers := config.GetEnvStr("KAFKA_BROKERS", ""); brokers != "" {
		publisher := eventbus.NewPublisher([]string{brokers}, logger)
		orchestratorOpts = append(orchestratorOpts, jobs.WithEventPublisher(publisher))
	} else {
		logger.Warn("KAFKA_BROKERS not set - job lifecycle events will not be published")
	}

	orchestrator := jobs.NewOrchestrator(jobStore, pipelineExecutor, logger, orchestratorOpts...)

	dispatchCtx, cancelDispatch := context.WithCancel(ctx)
	defer cancelDispatch()

	go orchestrator.Run(dispatchCtx)

	server := api.NewServer(&serverConfig, orchestrator, reg, featureStore, objectStore, tracker, engine)

	if err := server.Start(); err != nil {
		logger.Error("server failed to start", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("training platform service stopped")
}

// newObjectStore constructs the Object Store Gateway against an
// S3-compatible endpoint, following the credentials-provider + BaseEndpoint
// override convention used elsewhere in the ecosystem for MinIO-compatible
// deployments.
func newObjectStore(ctx context.Context, logger *slog.Logger) *objectstore.Gateway {
	accessKey := config.GetEnvStr("OBJECT_STORE_ACCESS_KEY", "")
	secretKey := config.GetEnvStr("OBJECT_STORE_SECRET_KEY", "")
	region := config.GetEnvStr("OBJECT_STORE_REGION", "us-east-1")
	endpoint := config.GetEnvStr("OBJECT_STORE_ENDPOINT", "")
	bucket := config.GetEnvStr("OBJECT_STORE_BUCKET", "trainhub-artifacts")

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
	)
	if err != nil {
		logger.Error("aws config load failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = &endpoint
		}

		o.UsePathStyle = true
	})

	gateway, err := objectstore.New(ctx, client, bucket, logger)
	if err != nil {
		logger.Error("object store initialization failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	return gateway
}

// newFeatureStore constructs the Feature Store with its Redis write-through
// cache and embedded feature-set projections loaded from featuresets.yaml.
func newFeatureStore(conn *storage.Connection, logger *slog.Logger) *features.Store {
	redisClient := redis.NewClient(&redis.Options{
		Addr: config.GetEnvStr("REDIS_ADDR", "localhost:6379"),
	})

	sets, err := features.LoadFeatureSets()
	if err != nil {
		logger.Error("feature set config load failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	return features.New(conn, features.NewRedisCache(redisClient), logger, features.WithFeatureSets(sets))
}

// newHPOEngine constructs the HPO Study Engine over its persisted store.
func newHPOEngine(conn *storage.Connection, logger *slog.Logger) *hpo.Engine {
	return hpo.NewEngine(hpo.NewStore(conn), logger)
}
