package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/koscakluka/ema-voicecode/internal/config"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

const defaultLogFile = "ema-voicecode.log"

// setupTelemetry installs the global log provider the package loggers write
// through. With the terminal UI running, records go to a file.
func setupTelemetry(cfg config.Config) (func(context.Context) error, error) {
	var (
		writer io.Writer = os.Stderr
		file   *os.File
	)
	path := cfg.LogFile
	if path == "" && !cfg.Plain {
		path = defaultLogFile
	}
	if path != "" {
		var err error
		file, err = os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		writer = file
	}

	exporter, err := stdoutlog.New(stdoutlog.WithWriter(writer))
	if err != nil {
		if file != nil {
			file.Close()
		}
		return nil, fmt.Errorf("failed to create log exporter: %w", err)
	}

	provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)))
	global.SetLoggerProvider(provider)

	return func(ctx context.Context) error {
		err := provider.Shutdown(ctx)
		if file != nil {
			err = errors.Join(err, file.Close())
		}
		return err
	}, nil
}
