package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"timepilot/httpServer"
	"timepilot/internal/auth"
	"timepilot/internal/playback"
	"timepilot/internal/playback/audio"
)

var (
	serveAudio string
	serveAddr  string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the control API and timecode engine",
	Long: `Run the HTTP control API and the timecode engine. Without --audio the
engine runs a free-running wall clock.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		addr := cfg.HTTPAddr
		if serveAddr != "" {
			addr = serveAddr
		}

		var transport playback.Transport = playback.NewFreeRun()
		if serveAudio != "" {
			track, err := audio.Open(serveAudio)
			if err != nil {
				return errors.Wrap(err, "opening audio")
			}
			defer track.Close()
			transport = track
			logger.WithField("file", serveAudio).WithField("duration", track.Duration()).Info("audio loaded")
		}

		eng, err := newEngine(ctx, cfg, transport)
		if err != nil {
			return errors.Wrap(err, "creating engine")
		}
		defer eng.Close()

		authManager, err := auth.New(cfg.ControlToken)
		if err != nil {
			return errors.Wrap(err, "creating auth manager")
		}
		if cfg.ControlToken == auth.GenerateTokenValue {
			logger.WithField("token", authManager.Token()).Info("generated control token")
		} else if !authManager.Enabled() {
			logger.Warn("CONTROL_TOKEN is not set, control routes are unauthenticated")
		}

		srv := httpServer.New(eng.sched, eng.store, eng.midi, authManager, eng.metrics, eng.registry, cfg.SSEBuffer, eng.log)
		httpSrv := &http.Server{
			Addr:              addr,
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			logger.WithField("addr", addr).Info("HTTP server listening")
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrap(err, "running HTTP server")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return errors.Wrap(httpSrv.Shutdown(shutdownCtx), "shutting down HTTP server")
		})
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAudio, "audio", "", "mp3 or wav file to play instead of the free-running clock")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default $HTTP_ADDR or :8080)")
	RootCmd.AddCommand(serveCmd)
}
