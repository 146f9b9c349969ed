package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/basilfx/uploader/internal/config"
	"github.com/basilfx/uploader/internal/httpapi"
	"github.com/basilfx/uploader/internal/janitor"
	"github.com/basilfx/uploader/internal/logger"
	"github.com/basilfx/uploader/internal/recordstore"
)

type rootOpts struct {
	cfgFile string
	debug   bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOpts{}
	cmd := &cobra.Command{
		Use:           "uploader",
		Short:         "Validate multipart uploads and move them into place",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.cfgFile, "config", "c", "", "path of the configuration file")
	cmd.PersistentFlags().BoolVarP(&opts.debug, "debug", "d", false, "turn on debug logging")

	cmd.AddCommand(newServeCmd(opts), newJanitorCmd(opts))
	return cmd
}

func loadConfig(opts *rootOpts) (*config.Config, error) {
	cfg, err := config.Load(opts.cfgFile)
	if err != nil {
		return nil, err
	}
	logger.Init(logger.Options{
		Verbose: opts.debug || cfg.Log.Debug,
		JSON:    cfg.Log.JSON,
	})
	return cfg, nil
}

func janitorConfig(cfg *config.Config) janitor.Config {
	jc := janitor.DefaultConfig()
	jc.Every = cfg.Janitor.Every
	jc.Retention = cfg.Janitor.Retention
	jc.TmpMaxAge = cfg.Janitor.TmpMaxAge
	jc.BatchSize = cfg.Janitor.BatchSize
	return jc
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newServeCmd(opts *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the upload HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			paths := cfg.Paths()
			if err := paths.Ensure(cfg.DirectoryMode()); err != nil {
				return err
			}

			store, err := recordstore.Open(ctx, cfg.Records)
			if err != nil {
				return err
			}
			if store != nil {
				defer func() { _ = store.Close(context.Background()) }()
			}

			if cfg.Janitor.Enabled {
				fs := osfs.New(paths.Files, osfs.WithBoundOS())
				go janitor.New(fs, store, janitorConfig(cfg)).Start(ctx)
			}

			srv := &http.Server{
				Addr:              cfg.Listen,
				Handler:           httpapi.NewRouter(cfg, nil, store),
				ReadHeaderTimeout: 10 * time.Second,
			}

			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			logrus.WithFields(logrus.Fields{
				"addr":   srv.Addr,
				"files":  paths.Files,
				"rules":  len(cfg.Uploads.Rules),
				"driver": cfg.Records.Driver,
			}).Info("listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
}

func newJanitorCmd(opts *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "janitor",
		Short: "Remove stale temporary files and expired uploads once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			store, err := recordstore.Open(ctx, cfg.Records)
			if err != nil {
				return err
			}
			if store != nil {
				defer func() { _ = store.Close(context.Background()) }()
			}

			fs := osfs.New(cfg.Paths().Files, osfs.WithBoundOS())
			return janitor.New(fs, store, janitorConfig(cfg)).RunOnce(ctx)
		},
	}
}
