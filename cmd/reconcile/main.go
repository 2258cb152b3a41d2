package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/garyjia/invoice-reconciliation/internal/application/port"
	"github.com/garyjia/invoice-reconciliation/internal/application/service"
	"github.com/garyjia/invoice-reconciliation/internal/config"
	"github.com/garyjia/invoice-reconciliation/internal/container"
	"github.com/garyjia/invoice-reconciliation/internal/domain/entity"
	"github.com/garyjia/invoice-reconciliation/internal/invoice"
	"github.com/garyjia/invoice-reconciliation/internal/reconcile/catalog"
	"github.com/garyjia/invoice-reconciliation/pkg/utils"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "Path to config file (optional, env vars are read either way)")
	envFile := flag.String("env", ".env", "Path to .env file")
	invoicePath := flag.String("invoice", "", "Reconcile a single invoice document")
	dir := flag.String("dir", "", "Reconcile every invoice document in a directory")
	reportPath := flag.String("report", "", "Write the xlsx report of a -dir run here (default: storage.report_dir)")
	concurrency := flag.Int("concurrency", service.DefaultConcurrency, "Documents reconciled at once in a -dir run")
	exportPath := flag.String("export-catalog", "", "Write the configured PO catalog to a SQLite file and exit")
	printJSON := flag.Bool("json", false, "Print the full result record for -invoice")
	verbose := flag.Bool("verbose", false, "Verbose logging")
	flag.Parse()

	if *exportPath == "" && (*invoicePath == "") == (*dir == "") {
		fmt.Fprintln(os.Stderr, "Usage: reconcile -invoice <file> | -dir <folder> [-report out.xlsx] [-concurrency N] | -export-catalog out.db")
		return 2
	}

	if err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load environment: %v\n", err)
		return 1
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}

	logger, err := utils.NewCLILogger(*verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *exportPath != "" {
		return exportCatalog(ctx, cfg.Catalog.Path, *exportPath, logger)
	}

	if !cfg.ExtractionEnabled() {
		fmt.Fprintln(os.Stderr, "ERROR: OPENAI_API_KEY is not set; documents cannot be extracted")
		return 1
	}

	c, err := container.New(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		return 1
	}
	defer c.Close()

	if *invoicePath != "" {
		return runSingle(ctx, c.Service(), *invoicePath, *printJSON, logger)
	}
	if *reportPath == "" {
		*reportPath = filepath.Join(cfg.Storage.ReportDir,
			fmt.Sprintf("reconciliation_%s.xlsx", time.Now().Format("20060102_150405")))
	}
	return runBatch(ctx, c.Service(), *dir, *reportPath, *concurrency)
}

func exportCatalog(ctx context.Context, from, to string, logger *zap.Logger) int {
	c, err := catalog.Load(ctx, from, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	if err := catalog.ExportSQLite(ctx, to, c.All(), logger); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to export catalog: %v\n", err)
		return 1
	}
	fmt.Printf("Exported %d purchase orders to %s\n", c.Len(), to)
	return 0
}

func runSingle(ctx context.Context, svc service.ReconciliationService, path string, printJSON bool, logger *zap.Logger) int {
	info, err := os.Stat(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot read %s: %v\n", path, err)
		return 1
	}
	if !invoice.IsSupported(path) {
		fmt.Fprintf(os.Stderr, "Unsupported document type: %s\n", filepath.Ext(path))
		return 1
	}

	result, err := svc.ProcessDocument(ctx, port.DocumentRef{
		Path:      path,
		Filename:  filepath.Base(path),
		SizeBytes: info.Size(),
	})
	if err != nil {
		logger.Warn("Result not saved", zap.Error(err))
	}

	if printJSON {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode result: %v\n", err)
			return 1
		}
		fmt.Println(string(out))
	} else {
		fmt.Println(renderResult(result))
	}

	if result.Failed() {
		return 1
	}
	return 0
}

func runBatch(ctx context.Context, svc service.ReconciliationService, dir, reportPath string, concurrency int) int {
	paths, err := invoice.ListDocuments(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	if len(paths) == 0 {
		fmt.Printf("No invoice documents (.pdf, .png, .jpg, .jpeg) found in %s\n", dir)
		return 0
	}

	docs := make([]port.DocumentRef, 0, len(paths))
	for _, p := range paths {
		doc := port.DocumentRef{Path: p, Filename: filepath.Base(p)}
		if info, err := os.Stat(p); err == nil {
			doc.SizeBytes = info.Size()
		}
		docs = append(docs, doc)
	}

	fmt.Printf("Found %d documents. Reconciling...\n", len(docs))

	bar := progressbar.NewOptions(len(docs),
		progressbar.OptionSetDescription("Reconciling invoices"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)

	start := time.Now()
	summary, err := svc.ProcessBatch(ctx, docs, service.BatchOptions{
		Concurrency: concurrency,
		ReportPath:  reportPath,
		Progress: func(done, total int, result *entity.ReconciliationResult) {
			_ = bar.Add(1)
		},
	})
	_ = bar.Finish()
	fmt.Fprintln(os.Stderr)

	if summary != nil {
		fmt.Println(renderBatch(summary, time.Since(start)))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Batch finished with errors: %v\n", err)
		return 1
	}
	return 0
}
