// Command worker scans homework files from disk without the HTTP API and
// writes the solutions as one document.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/yangshenhuai/skid-homework/config"
	"github.com/yangshenhuai/skid-homework/internal/agent"
	"github.com/yangshenhuai/skid-homework/internal/models"
	"github.com/yangshenhuai/skid-homework/internal/service/homework"
	"github.com/yangshenhuai/skid-homework/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config.yaml")
	out := flag.String("out", "solutions.md", "output file; .html selects the html export")
	source := flag.String("source", string(models.SourceUpload), "capture source: upload, camera or adb")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: worker [flags] FILE_OR_DIR...\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	// rehydrating a shared store would rescan earlier sessions
	cfg.Store.Backend = "memory"
	cfg.Store.Blobs = "none"

	log, err := logger.NewLogger(logger.FromConfig(cfg.Log)...)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := run(cfg, log, flag.Args(), models.FileSource(*source), *out); err != nil {
		log.Error("Worker failed", logger.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log logger.Logger, paths []string, source models.FileSource, out string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := homework.GetService(context.Background(), cfg, log)
	if err != nil {
		return err
	}
	defer app.Close(context.Background())

	uploads, err := collect(paths)
	if err != nil {
		return err
	}
	res, err := app.Service.Ingest(ctx, uploads, source)
	if err != nil {
		return err
	}
	for _, r := range res.Rejected {
		log.Warn("File skipped", logger.String("file", r.Name), logger.String("code", r.Code), logger.String("reason", r.Message))
	}
	if err := app.Service.WaitIdle(ctx); err != nil {
		return err
	}

	report, err := app.Service.Scan(ctx)
	if err != nil {
		return err
	}
	log.Info("Scan complete",
		logger.Int("succeeded", report.Succeeded),
		logger.Int("failed", report.Failed),
		logger.Duration("duration", report.Duration),
	)

	format := "markdown"
	if filepath.Ext(out) == ".html" {
		format = "html"
	}
	doc, _, err := app.Service.Export(format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, doc, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	log.Info("Solutions written", logger.String("file", out))
	if report.Cancelled {
		return context.Canceled
	}
	return nil
}

// collect reads every file named directly or found under a directory.
// Directory entries are filtered by extension and sorted by path.
func collect(paths []string) ([]homework.Upload, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		var found []string
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if _, ok := agent.MIMEFromName(path); ok {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		sort.Strings(found)
		files = append(files, found...)
	}
	if len(files) == 0 {
		return nil, errors.New("no homework files found")
	}

	uploads := make([]homework.Upload, 0, len(files))
	for _, f := range files {
		content, err := os.ReadFile(f)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, homework.Upload{Name: filepath.Base(f), Content: content})
	}
	return uploads, nil
}
