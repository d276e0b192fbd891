package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/credence-dev/credence/internal/api"
	"github.com/credence-dev/credence/internal/jobs"
)

var serveAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the credibility analysis HTTP service",
	Long: `Serve starts the HTTP API:
- POST /api/analyze and /api/analyze/text for synchronous analysis
- POST /api/extension/analyze for the browser extension
- POST /api/v1/verify for legacy flat-shape clients
- POST /api/jobs and GET /api/jobs/:id for async analysis
- POST /api/predict/image for standalone image authenticity checks
- GET /health

The service runs until interrupted and finishes in-flight requests on
shutdown.

Example:
  credence serve
  credence serve --addr :9090`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	logger := newLogger(true)
	if !verbose {
		gin.SetMode(gin.ReleaseMode)
	}

	st, err := buildStack(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	manager := jobs.NewManager(st.orchestrator, cfg.Jobs, logger)
	defer manager.Shutdown()

	server := api.New(api.Deps{
		Analyzer:  st.orchestrator,
		Jobs:      manager,
		Predictor: st.classifier,
		Logger:    logger,
		Version:   version,
	})

	return server.Run(ctx, cfg.Server)
}
