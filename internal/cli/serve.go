package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/veracity/internal/metrics"
	"github.com/ppiankov/veracity/internal/pipeline"
	"github.com/ppiankov/veracity/internal/server"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the verification API over HTTP",
	Long: `Serve exposes the pipeline as an HTTP API:

  POST /v1/verify   {"text": "...", "html": false}
  POST /v1/check    {"query": "...", "response": "...", "documents": [...]}
  GET  /healthz     liveness
  GET  /readyz      scoring model reachability
  GET  /metrics     Prometheus metrics

Example:
  veracity serve --addr :8080
  VERACITY_PRESET=wiki-es-embed-entities veracity serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default from config, :8080)")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if !verbose {
		gin.SetMode(gin.ReleaseMode)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	orch, err := pipeline.FromConfig(cfg, logger, metrics.New(reg))
	if err != nil {
		return err
	}

	srv := server.New(orch, server.Options{
		Logger:   logger,
		Gatherer: reg,
		Timeout:  cfg.Server.Timeout,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stderr, "✓ Serving on %s (strategy %s, language %s)\n", cfg.Server.Addr, cfg.Scoring.Strategy, cfg.Evidence.Language)
	return srv.ListenAndServe(ctx, cfg.Server.Addr)
}
