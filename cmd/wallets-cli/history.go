package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	sqliteadapter "github.com/ton-blockchain/wallets-list/internal/adapters/store/sqlite"
	"github.com/ton-blockchain/wallets-list/internal/app"
	"github.com/ton-blockchain/wallets-list/internal/domain/model"
	"github.com/ton-blockchain/wallets-list/internal/services/reportpdf"
	"github.com/ton-blockchain/wallets-list/internal/services/reportzip"
	"github.com/ton-blockchain/wallets-list/internal/services/runview"
)

// runHistory 是 history 子命令路由：
// - history list：运行历史列表与按状态统计
// - history show：单次运行：索引信息 + 诊断明细
// - history verify：运行历史链强校验（防篡改）
// - history verify-bundle：校验导出包 ZIP 内的 hashes.sha256
func runHistory(ctx context.Context, args []string) error {
	if len(args) == 0 {
		printHistoryUsage()
		return nil
	}

	switch args[0] {
	case "list":
		return runHistoryList(ctx, args[1:])
	case "show":
		return runHistoryShow(ctx, args[1:])
	case "verify":
		return runHistoryVerify(ctx, args[1:])
	case "verify-bundle":
		return runHistoryVerifyBundle(ctx, args[1:])
	default:
		printHistoryUsage()
		return fmt.Errorf("unknown history command: %s", args[0])
	}
}

func printHistoryUsage() {
	fmt.Println("Usage:")
	fmt.Println("  wallets-cli history list [--db data/registry.db] [--limit 20] [--offset 0] [--status passed|failed] [--json]")
	fmt.Println("  wallets-cli history show [--run-id RUN_ID] [--db data/registry.db] [--json]")
	fmt.Println("  wallets-cli history verify [--db data/registry.db] [--json]")
	fmt.Println("  wallets-cli history verify-bundle --zip PATH_TO_ZIP [--json]")
}

func runHistoryList(ctx context.Context, args []string) error {
	cfg := app.DefaultConfig()

	fs := flag.NewFlagSet("history list", flag.ContinueOnError)
	dbPath := fs.String("db", cfg.DBPath, "sqlite run history path")
	limit := fs.Int("limit", 20, "max runs to list")
	offset := fs.Int("offset", 0, "list offset")
	status := fs.String("status", "", "filter by status: passed|failed")
	asJSON := fs.Bool("json", false, "print as json")
	if err := fs.Parse(args); err != nil {
		return err
	}

	view, err := runview.GetHistoryView(ctx, *dbPath, model.RunQuery{
		Limit:  *limit,
		Offset: *offset,
		Status: model.RunStatus(strings.TrimSpace(*status)),
	})
	if err != nil {
		return err
	}

	if *asJSON {
		return printJSON(view)
	}

	fmt.Printf("total=%d passed=%d failed=%d\n", view.Stats.Total, view.Stats.Passed, view.Stats.Failed)
	for _, r := range view.Runs {
		fmt.Printf("%s  %s  status=%s errors=%d warnings=%d records=%d wallets=%s\n",
			r.RunID, fmtUnix(r.StartedAt), r.Status, r.ErrorCount, r.WarningCount, r.RecordCount, r.WalletsPath)
	}
	return nil
}

func runHistoryShow(ctx context.Context, args []string) error {
	cfg := app.DefaultConfig()

	fs := flag.NewFlagSet("history show", flag.ContinueOnError)
	dbPath := fs.String("db", cfg.DBPath, "sqlite run history path")
	runID := fs.String("run-id", "", "run id (default latest)")
	asJSON := fs.Bool("json", false, "print as json")
	if err := fs.Parse(args); err != nil {
		return err
	}

	view, err := runview.GetRunView(ctx, *dbPath, strings.TrimSpace(*runID))
	if err != nil {
		return err
	}

	if *asJSON {
		return printJSON(view)
	}

	info := view.Info
	fmt.Printf("run_id=%s status=%s\n", info.RunID, info.Status)
	fmt.Printf("started=%s finished=%s\n", fmtUnix(info.StartedAt), fmtUnix(info.FinishedAt))
	fmt.Printf("wallets=%s sha256=%s\n", info.WalletsPath, info.WalletsSHA256)
	fmt.Printf("records=%d errors=%d warnings=%d\n", info.RecordCount, info.ErrorCount, info.WarningCount)
	if info.PolicySHA256 != "" {
		fmt.Printf("policy_sha256=%s\n", info.PolicySHA256)
	}
	if info.ChainHash != "" {
		fmt.Printf("chain_hash=%s\n", info.ChainHash)
	}
	for _, d := range view.Diagnostics {
		printDiagnostic(d)
	}
	return nil
}

func runHistoryVerify(ctx context.Context, args []string) error {
	cfg := app.DefaultConfig()

	fs := flag.NewFlagSet("history verify", flag.ContinueOnError)
	dbPath := fs.String("db", cfg.DBPath, "sqlite run history path")
	asJSON := fs.Bool("json", false, "print as json")
	if err := fs.Parse(args); err != nil {
		return err
	}

	res, err := runview.VerifyHistory(ctx, *dbPath)
	if err != nil {
		return err
	}

	if *asJSON {
		if err := printJSON(res); err != nil {
			return err
		}
	} else {
		fmt.Println("history chain verify completed")
		fmt.Printf("total=%d failed=%d prev_hash_failed=%d chain_hash_failed=%d\n",
			res.Total, res.Failed, res.PrevHashFailed, res.ChainHashFailed)
		for _, f := range res.Failures {
			fmt.Printf("FAIL index=%d run_id=%s message=%s expected_prev=%s actual_prev=%s expected_hash=%s actual_hash=%s\n",
				f.Index, f.RunID, f.Message, f.ExpectedPrevHash, f.ActualPrevHash, f.ExpectedChainHash, f.ActualChainHash,
			)
		}
	}

	if !res.OK {
		return fmt.Errorf("history chain verify failed")
	}
	return nil
}

func runHistoryVerifyBundle(ctx context.Context, args []string) error {
	_ = ctx // 当前实现不需要 ctx，预留用于后续添加超时/取消。

	fs := flag.NewFlagSet("history verify-bundle", flag.ContinueOnError)
	zipPath := fs.String("zip", "", "path to export bundle zip (required)")
	asJSON := fs.Bool("json", false, "print as json")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*zipPath) == "" {
		return fmt.Errorf("--zip is required")
	}

	res, err := reportzip.VerifyBundle(strings.TrimSpace(*zipPath))
	if err != nil {
		return err
	}

	if *asJSON {
		if err := printJSON(res); err != nil {
			return err
		}
	} else {
		fmt.Println("export bundle verify completed")
		fmt.Printf("zip=%s\n", res.ZipPath)
		fmt.Printf("files_total=%d ok=%d failed=%d\n", res.Total, res.Total-res.Failed, res.Failed)
		for _, c := range res.Checks {
			if c.OK {
				continue
			}
			if c.Detail != "" {
				fmt.Printf("FAIL %s detail=%s expected=%s actual=%s\n", c.Path, c.Detail, c.Expected, c.Actual)
			} else {
				fmt.Printf("FAIL %s expected=%s actual=%s\n", c.Path, c.Expected, c.Actual)
			}
		}
	}

	if !res.OK {
		return fmt.Errorf("export bundle verify failed: %d of %d files", res.Failed, res.Total)
	}
	return nil
}

// runExport 是 export 子命令路由：用于把一次存量运行导出为 PDF 摘要或
// 带哈希清单的 ZIP 包。
func runExport(ctx context.Context, args []string) error {
	if len(args) == 0 {
		printExportUsage()
		return nil
	}

	switch args[0] {
	case "pdf":
		return runExportPDF(ctx, args[1:])
	case "zip":
		return runExportZip(ctx, args[1:])
	default:
		printExportUsage()
		return fmt.Errorf("unknown export command: %s", args[0])
	}
}

func printExportUsage() {
	fmt.Println("Usage:")
	fmt.Println("  wallets-cli export pdf [--run-id RUN_ID] [--db data/registry.db] [--out data/reports] [--note TEXT]")
	fmt.Println("  wallets-cli export zip [--run-id RUN_ID] [--db data/registry.db] [--report-dir data/reports] [--out DIR] [--note TEXT]")
}

func runExportPDF(ctx context.Context, args []string) error {
	cfg := app.DefaultConfig()

	fs := flag.NewFlagSet("export pdf", flag.ContinueOnError)
	dbPath := fs.String("db", cfg.DBPath, "sqlite run history path")
	runID := fs.String("run-id", "", "run id (default latest)")
	outDir := fs.String("out", cfg.ReportDir, "output directory")
	note := fs.String("note", "", "note embedded in the report")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, err := sqliteadapter.Open(ctx, *dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	res, err := reportpdf.GenerateRunPDF(ctx, sqliteadapter.NewStore(db), reportpdf.Options{
		RunID:  strings.TrimSpace(*runID),
		OutDir: *outDir,
		Note:   strings.TrimSpace(*note),
	})
	if err != nil {
		return err
	}

	fmt.Println("pdf export completed")
	fmt.Printf("run_id=%s\n", res.RunID)
	fmt.Printf("pdf=%s\n", res.PDFPath)
	fmt.Printf("pdf_sha256=%s\n", res.PDFSHA256)
	if len(res.Warnings) > 0 {
		fmt.Printf("warnings=%s\n", strings.Join(res.Warnings, " | "))
	}
	return nil
}

func runExportZip(ctx context.Context, args []string) error {
	cfg := app.DefaultConfig()

	fs := flag.NewFlagSet("export zip", flag.ContinueOnError)
	dbPath := fs.String("db", cfg.DBPath, "sqlite run history path")
	runID := fs.String("run-id", "", "run id (default latest)")
	reportDir := fs.String("report-dir", cfg.ReportDir, "report artifact directory")
	walletsPath := fs.String("wallets", "", "bundle this registry file (default: path recorded in the run)")
	policyPath := fs.String("policy", "", "bundle this policy file (default registry-policy.yaml when present)")
	outDir := fs.String("out", "", "export output directory (default <db dir>/exports)")
	note := fs.String("note", "", "note embedded in the manifest")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, err := sqliteadapter.Open(ctx, *dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	res, err := reportzip.GenerateRunZip(ctx, sqliteadapter.NewStore(db), reportzip.ZipOptions{
		RunID:       strings.TrimSpace(*runID),
		DBPath:      *dbPath,
		ReportDir:   *reportDir,
		WalletsPath: strings.TrimSpace(*walletsPath),
		PolicyPath:  strings.TrimSpace(*policyPath),
		ExportDir:   strings.TrimSpace(*outDir),
		Note:        strings.TrimSpace(*note),
	})
	if err != nil {
		return err
	}

	fmt.Println("zip export completed")
	fmt.Printf("run_id=%s\n", res.RunID)
	fmt.Printf("zip=%s\n", res.ZipPath)
	fmt.Printf("zip_sha256=%s\n", res.ZipSHA256)
	if len(res.Warnings) > 0 {
		fmt.Printf("warnings=%s\n", strings.Join(res.Warnings, " | "))
	}
	return nil
}
