// NewsDigest fetches articles from configured feeds, summarizes them with an
// LLM, and delivers digests through a primary channel with a topic fallback.
//
// Usage:
//
//	newsdigest collect    # fetch feeds and store new articles
//	newsdigest process    # summarize and notify pending articles
//	newsdigest serve      # expose collect/process over HTTP
//	newsdigest run        # run both stages on a schedule
//	newsdigest version    # show version
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/RobinCoderZhao/newsdigest/internal/api"
	"github.com/RobinCoderZhao/newsdigest/internal/collector"
	appcfg "github.com/RobinCoderZhao/newsdigest/internal/config"
	"github.com/RobinCoderZhao/newsdigest/internal/dispatch"
	"github.com/RobinCoderZhao/newsdigest/internal/feed"
	"github.com/RobinCoderZhao/newsdigest/internal/notifier"
	"github.com/RobinCoderZhao/newsdigest/internal/processor"
	"github.com/RobinCoderZhao/newsdigest/internal/scheduler"
	"github.com/RobinCoderZhao/newsdigest/internal/store"
	"github.com/RobinCoderZhao/newsdigest/internal/summarizer"
	"github.com/RobinCoderZhao/newsdigest/pkg/llm"
	"github.com/RobinCoderZhao/newsdigest/pkg/scraper"
)

var version = "dev"

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	var configPath string

	rootCmd := &cobra.Command{
		Use:   "newsdigest",
		Short: "RSS news summarization and notification pipeline",
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "newsdigest.yaml", "config file path")

	rootCmd.AddCommand(collectCmd(&configPath))
	rootCmd.AddCommand(processCmd(&configPath))
	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(runCmd(&configPath))
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func collectCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "collect",
		Short: "Fetch configured feeds and store new articles",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(*configPath)
			if err != nil {
				return err
			}
			defer app.Close()
			if len(app.cfg.Sources) == 0 {
				return errors.New("no feed sources configured")
			}

			ctx, cancel := signalContext()
			defer cancel()

			stats, err := app.collector.Run(ctx, app.cfg.Sources)
			if err != nil {
				return fmt.Errorf("collect: %w", err)
			}
			fmt.Printf("fetched %d, stored %d, skipped %d\n", stats.Fetched, stats.Stored, stats.Skipped)
			return nil
		},
	}
}

func processCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "process",
		Short: "Summarize stored articles and deliver the digest",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(*configPath)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, cancel := signalContext()
			defer cancel()

			stats, err := app.processor.Run(ctx)
			if err != nil {
				return fmt.Errorf("process: %w", err)
			}
			fmt.Printf("processed %d, notified %d, failed %d\n", stats.Processed, stats.Notified, stats.Failed)
			return nil
		},
	}
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Expose the pipeline over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(*configPath)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, cancel := signalContext()
			defer cancel()

			srv := &http.Server{
				Addr:              app.cfg.Server.Addr,
				Handler:           app.server,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				slog.Info("http server listening", "addr", app.cfg.Server.Addr)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			app.dispatcher.Wait()
			return nil
		},
	}
}

func runCmd(configPath *string) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run collect and process on their configured intervals",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(*configPath)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, cancel := signalContext()
			defer cancel()

			sched := scheduler.NewScheduler()
			sched.Add(scheduler.Job{
				Name:     "collect",
				Interval: app.cfg.Collect.Interval,
				Fn: func(ctx context.Context) error {
					_, err := app.collector.Run(ctx, app.cfg.Sources)
					return err
				},
			})
			sched.Add(scheduler.Job{
				Name:     "process",
				Interval: app.cfg.Process.Interval,
				Fn: func(ctx context.Context) error {
					_, err := app.processor.Run(ctx)
					return err
				},
			})

			if once {
				return sched.RunOnce(ctx)
			}
			sched.Start(ctx)
			return nil
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "run both stages once and exit")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("newsdigest %s\n", version)
		},
	}
}

// app wires the pipeline components for one command invocation.
type app struct {
	cfg        appcfg.Config
	store      store.Store
	llm        llm.Client
	collector  *collector.Collector
	processor  *processor.Processor
	dispatcher *dispatch.AsyncDispatcher
	server     *api.Server
}

func buildApp(configPath string) (*app, error) {
	cfg, err := appcfg.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	st, err := store.New(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	llmClient, err := llm.NewClient(cfg.LLM)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("create llm client: %w", err)
	}

	chain, err := cfg.Notify.BuildNotifier()
	if err != nil {
		st.Close()
		llmClient.Close()
		return nil, fmt.Errorf("build notifier: %w", err)
	}

	fetcher := feed.NewRSSFetcher(
		scraper.NewHTTPFetcher(),
		feed.WithMaxItems(cfg.Collect.MaxItemsPerFeed),
		feed.WithPageTimeout(cfg.Collect.PageTimeout),
	)

	logger := slog.Default()
	col := collector.New(fetcher, st, logger)
	sum := summarizer.New(llmClient, cfg.Summary)
	not := notifier.New(chain, logger)
	proc := processor.New(st, sum, not, processor.Options{BatchLimit: cfg.Process.BatchLimit}, logger)
	disp := dispatch.NewAsyncDispatcher(proc, cfg.Process.AsyncBudget, logger)
	srv := api.NewServer(col, proc, disp, cfg.Sources, logger)

	return &app{
		cfg:        cfg,
		store:      st,
		llm:        llmClient,
		collector:  col,
		processor:  proc,
		dispatcher: disp,
		server:     srv,
	}, nil
}

func (a *app) Close() {
	a.dispatcher.Wait()
	a.llm.Close()
	a.store.Close()
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
