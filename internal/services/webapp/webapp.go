package webapp

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	sqliteadapter "github.com/ton-blockchain/wallets-list/internal/adapters/store/sqlite"
	"github.com/ton-blockchain/wallets-list/internal/app"
)

// 注意：
// - go:embed 的路径必须相对当前包目录，且不能包含 ".."
// - 我们把前端 build 输出拷贝到 internal/services/webapp/ui_dist/，这样二进制即可离线分发（解压即用）。
// - ui_dist/ 至少要有一个文件（本仓库已放置占位 index.html），否则 go:embed 会因“无匹配文件”而编译失败。
//
//go:embed ui_dist
var uiFS embed.FS

// Options 定义 Web UI + API 服务启动参数。
// 目标：仓库维护者本机使用优先（默认不做鉴权）。
type Options struct {
	DBPath      string
	WalletsPath string
	AssetsDir   string
	PolicyPath  string
	ReportDir   string

	ListenAddr string
}

// Run 启动内置 Web UI：
// - 提供运行历史、诊断明细、报告浏览与下载接口
// - 提供“一键 validate”后台任务接口与线上冒烟检查入口
func Run(ctx context.Context, opts Options) error {
	defaults := app.DefaultConfig()
	if opts.DBPath == "" {
		opts.DBPath = defaults.DBPath
	}
	if opts.WalletsPath == "" {
		opts.WalletsPath = defaults.WalletsPath
	}
	if opts.AssetsDir == "" {
		opts.AssetsDir = defaults.AssetsDir
	}
	if opts.PolicyPath == "" {
		opts.PolicyPath = defaults.PolicyPath
	}
	if opts.ReportDir == "" {
		opts.ReportDir = defaults.ReportDir
	}
	if opts.ListenAddr == "" {
		opts.ListenAddr = "127.0.0.1:8787"
	}

	if err := os.MkdirAll(filepath.Dir(opts.DBPath), 0o755); err != nil {
		return fmt.Errorf("create db directory: %w", err)
	}
	if err := os.MkdirAll(opts.ReportDir, 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}

	db, err := sqliteadapter.Open(ctx, opts.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	sub, err := fs.Sub(uiFS, "ui_dist")
	if err != nil {
		return fmt.Errorf("sub ui fs: %w", err)
	}

	s := &Server{
		opts:  opts,
		db:    db,
		store: sqliteadapter.NewStore(db),
		ui:    sub,
		jobs:  newJobManager(),
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	httpServer := &http.Server{
		Addr:              opts.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	fmt.Printf("webapp listening: http://%s\n", opts.ListenAddr)
	err = httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
