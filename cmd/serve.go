package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/researchapps/job-maker/internal/catalog"
	"github.com/researchapps/job-maker/internal/config"
	"github.com/researchapps/job-maker/internal/server"
	"github.com/researchapps/job-maker/internal/utils"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the job form over HTTP",
	Long: `Serve the job form as a web page and a JSON API.

The catalog is loaded in the background; until it is available the API
answers 503. The server stops gracefully on SIGINT or SIGTERM.

Endpoints:
  GET  /                         HTML form
  POST /                         Render the form result
  GET  /api/v1/clusters          Clusters and partition limits
  GET  /api/v1/clusters/:cluster One cluster
  POST /api/v1/scripts           JSON form to generated script
  GET  /healthz                  Liveness and catalog status`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "Listen address (overrides serve.listen_addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	addr := config.Global.ListenAddr
	if serveAddr != "" {
		addr = serveAddr
	}

	level := config.Global.Log.Level
	if config.Global.Debug {
		level = "debug"
	}
	logger, closeLog, err := utils.NewLogger(config.Global.Log.Output, config.Global.Log.Format, config.Global.Log.File, level)
	if err != nil {
		return err
	}
	defer closeLog()

	if !config.Global.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := catalog.NewStore(catalog.NewLoader(config.Global.CatalogTimeout))
	go watchCatalogLoad(ctx, store.LoadAsync(ctx, config.Global.CatalogSource), config.Global.CatalogSource, logger)

	engine, err := server.New(store, logger)
	if err != nil {
		return err
	}
	return server.Run(ctx, addr, engine, config.Global.ShutdownTimeout, logger)
}

// watchCatalogLoad logs the outcome of the background catalog load.
func watchCatalogLoad(ctx context.Context, done <-chan error, source string, logger *slog.Logger) {
	select {
	case err := <-done:
		if err != nil {
			logger.Error("failed to load catalog", slog.String("source", source), slog.Any("err", err))
			return
		}
		logger.Info("catalog loaded", slog.String("source", source))
	case <-ctx.Done():
	}
}
