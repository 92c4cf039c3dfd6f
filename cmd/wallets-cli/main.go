package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ton-blockchain/wallets-list/internal/app"
	"github.com/ton-blockchain/wallets-list/internal/domain/model"
	"github.com/ton-blockchain/wallets-list/internal/services/deeplink"
	"github.com/ton-blockchain/wallets-list/internal/services/nginxconf"
	"github.com/ton-blockchain/wallets-list/internal/services/proxyrewrite"
	"github.com/ton-blockchain/wallets-list/internal/services/registryscan"
	"github.com/ton-blockchain/wallets-list/internal/services/webapp"
)

// CLI 入口。所有子命令错误都统一输出到 stderr 并返回非 0 状态码。
func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run 是一级命令路由：validate / proxy / nginx / deeplinks / smoke /
// history / export / serve。
func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		printUsage()
		return nil
	}

	switch args[0] {
	case "validate":
		return runValidate(ctx, args[1:])
	case "proxy":
		return runProxy(ctx, args[1:])
	case "nginx":
		return runNginx(ctx, args[1:])
	case "deeplinks":
		return runDeeplinks(ctx, args[1:])
	case "smoke":
		return runSmoke(ctx, args[1:])
	case "history":
		return runHistory(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	case "serve":
		return runServe(ctx, args[1:])
	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

// runValidate 执行注册表校验全流程（记录 -> 集合 -> 资产交叉引用 ->
// 报告与历史入库）。退出码为 0 当且仅当没有 error 级诊断。
func runValidate(ctx context.Context, args []string) error {
	cfg := app.DefaultConfig()

	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	walletsPath := fs.String("wallets", envOr("WALLET_FILE", cfg.WalletsPath), "wallet registry file")
	assetsDir := fs.String("assets", cfg.AssetsDir, "asset image directory")
	policyPath := fs.String("policy", "", "validation policy file (default registry-policy.yaml when present)")
	dbPath := fs.String("db", cfg.DBPath, "sqlite run history path")
	reportDir := fs.String("report-dir", cfg.ReportDir, "report output directory")
	enforceDimensions := fs.Bool("enforce-dimensions", !envBool("SKIP_PNG_SIZE_CHECK"), "check the 288x288 pixel size (overrides policy when set)")
	strictOrphans := fs.Bool("strict-orphans", !envBool("SKIP_EXTRA_IMAGES_CHECK"), "treat unreferenced assets as errors (overrides policy when set)")
	skipAssets := fs.Bool("skip-assets", false, "skip the asset cross-reference stage")
	noHistory := fs.Bool("no-history", false, "do not record this run in history")
	noReports := fs.Bool("no-reports", false, "do not write report.json / report.html")
	asJSON := fs.Bool("json", false, "print the structured result as json")
	if err := fs.Parse(args); err != nil {
		return err
	}

	opts := registryscan.Options{
		WalletsPath: *walletsPath,
		AssetsDir:   *assetsDir,
		PolicyPath:  *policyPath,
		DBPath:      *dbPath,
		ReportDir:   *reportDir,
		SkipAssets:  *skipAssets,
		NoHistory:   *noHistory,
		NoReports:   *noReports,
	}

	// 标志或环境变量显式给出时才覆盖策略文件（标志 > 环境变量 > 策略 > 默认值）。
	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
	if explicit["enforce-dimensions"] || envSet("SKIP_PNG_SIZE_CHECK") {
		opts.EnforceDimensions = enforceDimensions
	}
	if explicit["strict-orphans"] || envSet("SKIP_EXTRA_IMAGES_CHECK") {
		opts.StrictOrphans = strictOrphans
	}

	res, err := registryscan.Run(ctx, opts)
	if err != nil {
		return err
	}

	if *asJSON {
		if err := printJSON(res); err != nil {
			return err
		}
	} else {
		printValidationResult(res)
	}

	if res.ErrorCount > 0 {
		return fmt.Errorf("validation failed: %d errors, %d warnings", res.ErrorCount, res.WarningCount)
	}
	return nil
}

// printValidationResult 输出诊断清单与汇总块（人类可读格式）。
func printValidationResult(res *registryscan.Result) {
	fmt.Printf("wallets=%s sha256=%s records=%d\n", res.WalletsPath, res.WalletsSHA256, res.RecordCount)

	for _, d := range res.Diagnostics {
		printDiagnostic(d)
	}

	bar := strings.Repeat("=", 50)
	fmt.Println(bar)
	fmt.Println("SUMMARY")
	fmt.Println(bar)
	fmt.Printf("RECORDS:  %d\n", res.RecordCount)
	fmt.Printf("ERRORS:   %d\n", res.ErrorCount)
	fmt.Printf("WARNINGS: %d\n", res.WarningCount)
	if res.RunID != "" {
		fmt.Printf("run_id=%s\n", res.RunID)
	}
	if res.ReportJSONPath != "" {
		fmt.Printf("report_json=%s\n", res.ReportJSONPath)
	}
	if res.ReportHTMLPath != "" {
		fmt.Printf("report_html=%s\n", res.ReportHTMLPath)
	}
	for _, w := range res.Warnings {
		fmt.Printf("warning: %s\n", w)
	}

	if res.ErrorCount == 0 {
		if res.WarningCount > 0 {
			fmt.Printf("\nALL CHECKS PASSED (with %d warnings)\n", res.WarningCount)
		} else {
			fmt.Println("\nALL CHECKS PASSED")
		}
	} else {
		fmt.Printf("\n%d CHECKS FAILED\n", res.ErrorCount)
	}
}

// printDiagnostic 以单行形式输出一条诊断（validate 与 history show 共用）。
func printDiagnostic(d model.Diagnostic) {
	sev := strings.ToUpper(string(d.Severity))
	if d.RecordIndex >= 0 {
		fmt.Printf("%s [%s/%s] record #%d %s: %s\n", sev, d.Stage, d.Kind, d.RecordIndex, d.Entity, d.Message)
		return
	}
	fmt.Printf("%s [%s/%s] %s: %s\n", sev, d.Stage, d.Kind, d.Entity, d.Message)
}

// runProxy 把注册表图片地址改写到镜像前缀，并生成 origins.json。
func runProxy(ctx context.Context, args []string) error {
	cfg := app.DefaultConfig()

	fs := flag.NewFlagSet("proxy", flag.ContinueOnError)
	input := fs.String("input", envOr("WALLET_FILE", cfg.WalletsPath), "wallet registry input file")
	output := fs.String("output", "wallets-v2.proxy.json", "rewritten registry output file")
	origins := fs.String("origins", "origins.json", "filename to origin url mapping output file")
	baseURL := fs.String("base-url", cfg.ProxyBaseURL, "proxy base url")
	verbose := fs.Bool("verbose", false, "print every filename to origin mapping")
	if err := fs.Parse(args); err != nil {
		return err
	}

	res, err := proxyrewrite.Run(ctx, proxyrewrite.Options{
		InputPath:   *input,
		OutputPath:  *output,
		OriginsPath: *origins,
		BaseURL:     *baseURL,
	})
	if err != nil {
		return err
	}

	fmt.Println("proxy rewrite completed")
	fmt.Printf("output=%s origins=%s\n", res.OutputPath, res.OriginsPath)
	fmt.Printf("wallets=%d rewritten=%d origin_entries=%d\n", res.WalletCount, res.RewrittenCount, res.OriginCount)
	if *verbose {
		for _, m := range res.Mappings {
			fmt.Printf("  %s -> %s\n", m.File, m.Origin)
		}
	}
	return nil
}

// runNginx 依据 origins 映射生成镜像站点 nginx 配置。
func runNginx(ctx context.Context, args []string) error {
	cfg := app.DefaultConfig()

	fs := flag.NewFlagSet("nginx", flag.ContinueOnError)
	origins := fs.String("origins", "origins.json", "filename to origin url mapping file")
	output := fs.String("output", "server/nginx.conf", "nginx config output file")
	serverName := fs.String("server-name", cfg.ServerName, "server_name directive value")
	assetsPrefix := fs.String("assets-prefix", cfg.AssetsPrefix, "assets path prefix")
	cacheOK := fs.String("cache-ok", cfg.CacheOK, "proxy cache duration for 200 responses")
	cacheNotOK := fs.String("cache-notok", cfg.CacheNotOK, "proxy cache duration for non-200 responses")
	if err := fs.Parse(args); err != nil {
		return err
	}

	res, err := nginxconf.Run(ctx, nginxconf.Options{
		OriginsPath:  *origins,
		OutputPath:   *output,
		ServerName:   *serverName,
		AssetsPrefix: *assetsPrefix,
		CacheOK:      *cacheOK,
		CacheNotOK:   *cacheNotOK,
	})
	if err != nil {
		return err
	}

	fmt.Println("nginx config generated")
	fmt.Printf("output=%s map_entries=%d\n", res.OutputPath, res.MapEntries)
	return nil
}

// runDeeplinks 提取注册表中的 deepLink 值，输出 CSP 策略行，按需生成
// iOS 探测清单 plist。
func runDeeplinks(ctx context.Context, args []string) error {
	cfg := app.DefaultConfig()

	fs := flag.NewFlagSet("deeplinks", flag.ContinueOnError)
	walletsPath := fs.String("wallets", envOr("WALLET_FILE", cfg.WalletsPath), "wallet registry file")
	plistPath := fs.String("plist", "", "write LSApplicationQueriesSchemes plist to this path")
	asJSON := fs.Bool("json", false, "print the result as json")
	if err := fs.Parse(args); err != nil {
		return err
	}

	res, err := deeplink.Run(ctx, deeplink.Options{
		WalletsPath: *walletsPath,
		PlistPath:   strings.TrimSpace(*plistPath),
	})
	if err != nil {
		return err
	}

	if *asJSON {
		return printJSON(res)
	}

	fmt.Printf("deep_links=%d\n", len(res.DeepLinks))
	for _, l := range res.DeepLinks {
		fmt.Printf("  %s\n", l)
	}
	fmt.Println(res.CSPPolicy)
	if res.PlistPath != "" {
		fmt.Printf("plist=%s\n", res.PlistPath)
	}
	return nil
}

// runServe 启动内置 Web UI + API，便于“安装即用”的本地巡检体验。
func runServe(ctx context.Context, args []string) error {
	cfg := app.DefaultConfig()

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	listen := fs.String("listen", "127.0.0.1:8787", "listen address")
	dbPath := fs.String("db", cfg.DBPath, "sqlite run history path")
	walletsPath := fs.String("wallets", envOr("WALLET_FILE", cfg.WalletsPath), "wallet registry file")
	assetsDir := fs.String("assets", cfg.AssetsDir, "asset image directory")
	policyPath := fs.String("policy", cfg.PolicyPath, "validation policy file")
	reportDir := fs.String("report-dir", cfg.ReportDir, "report output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// 支持 Ctrl+C 优雅退出。
	sigCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return webapp.Run(sigCtx, webapp.Options{
		DBPath:      *dbPath,
		WalletsPath: *walletsPath,
		AssetsDir:   *assetsDir,
		PolicyPath:  *policyPath,
		ReportDir:   *reportDir,
		ListenAddr:  *listen,
	})
}

// printUsage 输出一级命令帮助。
func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  wallets-cli validate [--wallets wallets-v2.json] [--assets assets] [--policy registry-policy.yaml] [--json]")
	fmt.Println("  wallets-cli proxy [--input wallets-v2.json] [--output wallets-v2.proxy.json] [--origins origins.json] [--base-url URL] [--verbose]")
	fmt.Println("  wallets-cli nginx [--origins origins.json] [--output server/nginx.conf] [--server-name NAME] [--assets-prefix assets]")
	fmt.Println("  wallets-cli deeplinks [--wallets wallets-v2.json] [--plist PATH] [--json]")
	fmt.Println("  wallets-cli smoke --base-url URL [--expected-base-url URL] [--wallets-only] [--timeout SECONDS] [--json]")
	fmt.Println("  wallets-cli history list [--db data/registry.db] [--limit 20] [--status passed|failed] [--json]")
	fmt.Println("  wallets-cli history show [--run-id RUN_ID] [--db data/registry.db] [--json]")
	fmt.Println("  wallets-cli history verify [--db data/registry.db] [--json]")
	fmt.Println("  wallets-cli history verify-bundle --zip PATH_TO_ZIP [--json]")
	fmt.Println("  wallets-cli export pdf [--run-id RUN_ID] [--db data/registry.db] [--out data/reports]")
	fmt.Println("  wallets-cli export zip [--run-id RUN_ID] [--db data/registry.db] [--out DIR] [--note TEXT]")
	fmt.Println("  wallets-cli serve [--listen 127.0.0.1:8787] [--db data/registry.db]")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  WALLET_FILE              registry path override")
	fmt.Println("  SKIP_PNG_SIZE_CHECK      1|true|yes disables the 288x288 size check")
	fmt.Println("  SKIP_EXTRA_IMAGES_CHECK  1|true|yes reports unreferenced assets as warnings")
}

// envOr 返回非空环境变量值，否则返回默认值。
func envOr(name, def string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return def
}

// envBool 解析布尔开关环境变量：1|true|yes 视为 true。
func envBool(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// envSet 判断环境变量是否被设置为非空值。
func envSet(name string) bool {
	return strings.TrimSpace(os.Getenv(name)) != ""
}

// fmtUnix 把 unix 秒格式化为本地时间，零值显示 "-"。
func fmtUnix(ts int64) string {
	if ts <= 0 {
		return "-"
	}
	return time.Unix(ts, 0).Format("2006-01-02 15:04:05")
}

func printJSON(v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(raw))
	return nil
}
