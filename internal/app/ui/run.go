// Package ui is the desktop review window for the customer ledger. It is kept
// apart from package app so the batch CLI does not link the GUI toolkit.
package ui

import (
	"context"
	"fmt"

	"fyne.io/fyne/v2"
	fyneapp "fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/data/binding"
	"go.uber.org/zap"

	"yashubustudio/custmapper/categorizer"
	"yashubustudio/custmapper/internal/app"
)

const (
	fyneAppID    = "yashubustudio.custmapper"
	logPaneLines = 300
)

// Run loads the configuration at configPath, writing the defaults first when
// the file is missing, and starts the ledger review desktop app.
func Run(configPath string) error {
	if configPath == "" {
		configPath = categorizer.DefaultConfigFile
	}
	if _, err := app.EnsureConfigFile(configPath); err != nil {
		return err
	}
	cfg, err := categorizer.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	fa := fyneapp.NewWithID(fyneAppID)
	logBind := binding.NewString()
	capture := newLogCapture(logPaneLines, func(text string) {
		fyne.Do(func() { _ = logBind.Set(text) })
	})
	base, err := zap.NewDevelopment()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger := teeLogger(base, capture)
	defer func() { _ = logger.Sync() }()

	session, err := app.OpenSession(cfg.LedgerPath, logger)
	if err != nil {
		return err
	}
	pipeline, err := app.OpenPipeline(context.Background(), cfg, app.PipelineOptions{Logger: logger})
	if err != nil {
		return err
	}
	defer pipeline.Close()

	u := buildUI(fa, session, pipeline, cfg, logger, logBind)
	u.w.ShowAndRun()
	return nil
}
