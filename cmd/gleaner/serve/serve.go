// Package servecmder provides the serve command running the API server and
// the periodic processing cycle together.
package servecmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/gleanerhq/gleaner/api"
	"github.com/gleanerhq/gleaner/pkg/config"
	"github.com/gleanerhq/gleaner/pkg/dotdir"
	"github.com/gleanerhq/gleaner/pkg/eventstream"
	"github.com/gleanerhq/gleaner/pkg/eventstream/kafka"
	"github.com/gleanerhq/gleaner/pkg/extract"
	"github.com/gleanerhq/gleaner/pkg/llm"
	"github.com/gleanerhq/gleaner/pkg/logger"
	"github.com/gleanerhq/gleaner/pkg/scheduler"
)

type ServeCommander struct {
	apiListen string
	dataDir   string
	provider  string
	model     string
	target    string
	batchSize int
	interval  int

	debug  bool
	viper  *viper.Viper
	logger *zap.Logger
}

const serveLongDesc string = `Run the Gleaner service.

Starts the API server together with the periodic processing cycle: every
interval, pending candidates are dequeued per agent, distilled through the
configured generation service, and fanned out to the growth-vector collection
and the knowledge-gap stream. A daily sweep prunes archived candidates past
the retention window.`

const serveShortDesc string = "Run the Gleaner API server and processing cycle"

var serveFlags = config.FlagSet{
	config.FlagAPIListen:     {Name: "api-listen", Shorthand: "a", ViperKey: "api.listen", Description: "Address for API server to listen on"},
	config.FlagDataDir:       {Name: "data-dir", ViperKey: "queue.data_dir", Description: "Root directory for per-agent candidate queues"},
	config.FlagProvider:      {Name: "provider", ViperKey: "extract.provider", Description: "Generation provider (anthropic, openai, ollama)"},
	config.FlagModel:         {Name: "model", Shorthand: "m", ViperKey: "extract.model", Description: "Generation model name"},
	config.FlagTarget:        {Name: "target", ViperKey: "extract.target", Description: "Generation provider base URL"},
	config.FlagBatchSize:     {Name: "batch-size", ViperKey: "scheduler.batch_size", Description: "Candidates per processing batch"},
	config.FlagCycleInterval: {Name: "cycle-interval", ViperKey: "cycle.interval_seconds", Description: "Seconds between processing cycles"},
}

var serveFlagKeys = []string{
	config.FlagAPIListen,
	config.FlagDataDir,
	config.FlagProvider,
	config.FlagModel,
	config.FlagTarget,
	config.FlagBatchSize,
	config.FlagCycleInterval,
}

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}

			config.BindRegisteredFlags(v, cmd, serveFlags, serveFlagKeys)
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, serveFlags, config.FlagAPIListen, &cmder.apiListen)
	config.AddStringFlag(cmd, serveFlags, config.FlagDataDir, &cmder.dataDir)
	config.AddStringFlag(cmd, serveFlags, config.FlagProvider, &cmder.provider)
	config.AddStringFlag(cmd, serveFlags, config.FlagModel, &cmder.model)
	config.AddStringFlag(cmd, serveFlags, config.FlagTarget, &cmder.target)
	config.AddIntFlag(cmd, serveFlags, config.FlagBatchSize, &cmder.batchSize)
	config.AddIntFlag(cmd, serveFlags, config.FlagCycleInterval, &cmder.interval)

	return cmd
}

func (c *ServeCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer c.logger.Sync()

	v := c.viper

	dataDir, err := resolveDataDir(v.GetString("queue.data_dir"))
	if err != nil {
		return err
	}

	call, err := llm.NewCaller(llm.Config{
		Provider:    v.GetString("extract.provider"),
		Model:       v.GetString("extract.model"),
		BaseURL:     v.GetString("extract.target"),
		Temperature: v.GetFloat64("extract.temperature"),
		MaxTokens:   v.GetInt("extract.max_tokens"),
		TimeoutMs:   v.GetInt("extract.timeout_ms"),
	})
	if err != nil {
		return fmt.Errorf("creating generation caller: %w", err)
	}

	publisher, err := c.createPublisher(v)
	if err != nil {
		return err
	}
	defer publisher.Close()

	sched := scheduler.New(scheduler.Config{
		DataDir:         dataDir,
		VectorPath:      v.GetString("sinks.vector_path"),
		EntropyMinimum:  v.GetFloat64("admission.entropy_minimum"),
		ExchangeMinimum: v.GetInt("admission.exchange_minimum"),
		ExplicitMarkers: v.GetStringSlice("admission.explicit_markers"),
		CooldownMinutes: v.GetInt("admission.cooldown_minutes"),
		BatchSize:       v.GetInt("scheduler.batch_size"),
		MaxPending:      v.GetInt("queue.max_pending"),
		RetentionDays:   v.GetInt("queue.retention_days"),
		WriteVectors:    v.GetBool("sinks.write_vectors"),
		EmitGaps:        v.GetBool("sinks.emit_gaps"),
	}, call, extract.Options{
		MinCount:       v.GetInt("extract.min_count"),
		MaxCount:       v.GetInt("extract.max_count"),
		MinLength:      v.GetInt("extract.min_length"),
		FilterPatterns: v.GetStringSlice("extract.filter_patterns"),
	}, publisher, c.logger)

	c.logger.Info("starting gleaner",
		zap.String("data_dir", dataDir),
		zap.String("provider", v.GetString("extract.provider")),
		zap.String("model", v.GetString("extract.model")),
	)

	ticker, err := c.startCycleTicker(v, sched)
	if err != nil {
		return err
	}
	defer func() { _ = ticker.Shutdown() }()

	apiServer := api.NewServer(api.Config{
		ListenAddr: v.GetString("api.listen"),
	}, sched, c.logger)

	// Channel to capture errors from goroutines
	errChan := make(chan error, 1)

	go func() {
		if err := apiServer.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		return apiServer.Shutdown()
	}
}

// createPublisher builds the gap sink: an in-process bus always, with a Kafka
// forwarder subscribed when brokers are configured.
func (c *ServeCommander) createPublisher(v *viper.Viper) (eventstream.Publisher, error) {
	bus := eventstream.NewBus(c.logger)

	brokers := v.GetStringSlice("sinks.kafka_brokers")
	if len(brokers) == 0 {
		return bus, nil
	}

	kp := kafka.NewPublisher(kafka.Config{
		Brokers: brokers,
		Topic:   v.GetString("sinks.kafka_topic"),
	})

	bus.Subscribe(kp.PublishGaps)

	c.logger.Info("forwarding knowledge gaps to kafka",
		zap.Strings("brokers", brokers),
		zap.String("topic", v.GetString("sinks.kafka_topic")),
	)

	return bus, nil
}

// startCycleTicker schedules the periodic processing cycle and the daily
// retention sweep.
func (c *ServeCommander) startCycleTicker(v *viper.Viper, sched *scheduler.Scheduler) (gocron.Scheduler, error) {
	ticker, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("creating cycle ticker: %w", err)
	}

	interval := time.Duration(v.GetInt("cycle.interval_seconds")) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	_, err = ticker.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			sched.RunCycle(context.Background())
		}),
		gocron.WithName("processing-cycle"),
	)
	if err != nil {
		return nil, fmt.Errorf("scheduling processing cycle: %w", err)
	}

	_, err = ticker.NewJob(
		gocron.DurationJob(24*time.Hour),
		gocron.NewTask(func() {
			sched.RunRetention()
		}),
		gocron.WithName("retention-sweep"),
	)
	if err != nil {
		return nil, fmt.Errorf("scheduling retention sweep: %w", err)
	}

	ticker.Start()
	return ticker, nil
}

// resolveDataDir falls back to candidates/ under the .gleaner directory when
// no explicit data dir is configured.
func resolveDataDir(dataDir string) (string, error) {
	if dataDir != "" {
		return dataDir, nil
	}

	ddm := dotdir.NewManager()
	target, err := ddm.Target("")
	if err != nil {
		return "", fmt.Errorf("resolving data dir: %w", err)
	}

	return filepath.Join(target, "candidates"), nil
}
