// Command regenwatch guards a DeepSeek chat page: it regenerates answers the
// server reported busy, with backoff, and announces finished answers.
//
// Usage:
//
//	regenwatch                                  # guard chat.deepseek.com with defaults
//	regenwatch -config regenwatch.yaml          # guard the page from YAML config
//	regenwatch -url https://chat.deepseek.com/a/chat/s/<id>
//	regenwatch -to-markdown answer.html         # convert a saved answer and exit
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hazyhaar/dsguard/markdown"
	"github.com/hazyhaar/dsguard/regenwatch"
)

func main() {
	configPath := flag.String("config", "", "path to regenwatch.yaml config file")
	pageURL := flag.String("url", "", "chat page to guard (overrides config)")
	statusAddr := flag.String("status-addr", "", "serve the status API on this address (overrides config)")
	toMarkdown := flag.String("to-markdown", "", "convert an answer HTML file (- for stdin) to Markdown and exit")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(*logLevel)}))

	if *toMarkdown != "" {
		if err := convert(*toMarkdown, os.Stdout); err != nil {
			logger.Error("regenwatch: convert", "error", err)
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *pageURL, *statusAddr); err != nil {
		logger.Error("regenwatch: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, pageURL, statusAddr string) error {
	cfg, err := loadConfig(configPath, pageURL, statusAddr)
	if err != nil {
		return err
	}
	return regenwatch.New(cfg, logger).Run(ctx)
}

func loadConfig(path, pageURL, statusAddr string) (*regenwatch.Config, error) {
	cfg := regenwatch.DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = regenwatch.LoadConfigFile(path); err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	if pageURL != "" {
		cfg.Page.URL = pageURL
	}
	if statusAddr != "" {
		cfg.Status.Addr = statusAddr
	}
	return cfg, nil
}

func convert(path string, out io.Writer) error {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return err
	}
	md, err := markdown.New().Convert(string(data))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, md)
	return err
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
