package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"ai-trading-assistant-go/internal/api"
	"ai-trading-assistant-go/internal/trader"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	servePort     int
	serveNoEngine bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the bot scheduler",
	Long: `Serve starts the JSON API on the configured port (5001 by default).

Unless disabled, the bot scheduler runs alongside it: every tick syncs prices
for the configured symbols and then runs all active grid and DCA bots.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "port to listen on (overrides server.port)")
	serveCmd.Flags().BoolVar(&serveNoEngine, "no-engine", false, "do not start the bot scheduler")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if servePort > 0 {
		a.cfg.Server.Port = servePort
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	deps := a.deps()

	if a.cfg.Engine.Enabled && !serveNoEngine {
		engine := trader.NewEngine(a.cfg.Engine, a.prices, a.logger,
			trader.NewGridStrategy(a.grid),
			trader.NewDCAStrategy(a.dca),
		)
		engine.SetPublisher(a.cache)
		deps.Engine = engine
		g.Go(func() error { return engine.Run(gctx) })
	} else {
		a.logger.Info("Bot scheduler disabled")
	}

	srv := api.NewServer(a.cfg.Server, deps, a.logger)
	g.Go(func() error { return srv.Run(gctx) })

	a.logger.Info("Assistant started",
		zap.Int("port", a.cfg.Server.Port),
		zap.String("execution_mode", a.orders.Mode()),
		zap.Bool("market_demo_mode", a.market.DemoMode()),
	)
	if err := g.Wait(); err != nil {
		a.logger.Error("Assistant stopped with error", zap.Error(err))
		return err
	}
	a.logger.Info("Assistant has been shut down.")
	return nil
}
