package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/cpusched/sim/source"
	"github.com/inference-sim/cpusched/sim/workload"
)

var (
	serveWorkload string // Workload file served to clients
	serveAddr     string // Listen address
)

// serveCmd exposes a workload file over the job-server REST API, so `run`
// can be pointed at it with source.base_url.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a workload file as a job server",
	Run: func(cmd *cobra.Command, args []string) {
		handler, err := newServeHandler(serveWorkload)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		srv := &http.Server{Addr: serveAddr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		go func() {
			<-ctx.Done()
			logrus.Info("Shutting down job server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		logrus.Infof("Serving %s on %s", serveWorkload, serveAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("Job server failed: %v", err)
		}
	},
}

func newServeHandler(path string) (http.Handler, error) {
	spec, err := workload.LoadSpec(path)
	if err != nil {
		return nil, err
	}
	mem, err := source.NewMemory(spec)
	if err != nil {
		return nil, err
	}
	return source.NewHandler(mem), nil
}

func init() {
	serveCmd.Flags().StringVar(&serveWorkload, "workload", "", "Workload file (YAML)")
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8000", "Listen address")
	_ = serveCmd.MarkFlagRequired("workload")
	rootCmd.AddCommand(serveCmd)
}
