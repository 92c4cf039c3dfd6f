package registryscan

import (
	"context"
	"fmt"
	"time"

	"github.com/ton-blockchain/wallets-list/internal/adapters/policy"
	"github.com/ton-blockchain/wallets-list/internal/adapters/registry"
	sqliteadapter "github.com/ton-blockchain/wallets-list/internal/adapters/store/sqlite"
	"github.com/ton-blockchain/wallets-list/internal/app"
	"github.com/ton-blockchain/wallets-list/internal/domain/model"
	"github.com/ton-blockchain/wallets-list/internal/platform/id"
	"github.com/ton-blockchain/wallets-list/internal/services/assetcheck"
	"github.com/ton-blockchain/wallets-list/internal/services/walletcheck"
)

// Options 定义一次注册表校验运行的输入参数。
type Options struct {
	WalletsPath string
	AssetsDir   string
	PolicyPath  string
	DBPath      string
	ReportDir   string

	SkipAssets     bool // 只校验记录与集合，不做资产交叉引用
	SkipDimensions bool // 保留格式检查，跳过像素尺寸比对
	SkipOrphans    bool // 不扫描未引用资产
	NoHistory      bool // 不写运行历史数据库
	NoReports      bool // 不生成 report.json / report.html

	// 非 nil 时覆盖策略文件里的同名开关（CLI 标志 / 环境变量的优先级高于策略）。
	EnforceDimensions *bool
	StrictOrphans     *bool
}

// Result 定义一次注册表校验运行的摘要输出。
type Result struct {
	RunID          string             `json:"run_id,omitempty"`
	WalletsPath    string             `json:"wallets_path"`
	WalletsSHA256  string             `json:"wallets_sha256"`
	RecordCount    int                `json:"record_count"`
	ErrorCount     int                `json:"error_count"`
	WarningCount   int                `json:"warning_count"`
	Status         model.RunStatus    `json:"status"`
	Diagnostics    []model.Diagnostic `json:"diagnostics"`
	ReportJSONPath string             `json:"report_json_path,omitempty"`
	ReportHTMLPath string             `json:"report_html_path,omitempty"`
	Warnings       []string           `json:"warnings,omitempty"`
	StartedAt      int64              `json:"started_at"`
	FinishedAt     int64              `json:"finished_at"`
}

// Run 执行注册表校验主流程：
// 1) 加载校验策略
// 2) 读取并解析钱包注册表
// 3) 逐条记录校验 + 集合级唯一性校验
// 4) 资产交叉引用（文件存在性 / PNG 头 / 尺寸 / 孤儿文件）
// 5) 生成 report.json / report.html 并写入运行历史
//
// 注册表文件不可读或不可解析是唯一的致命错误；其余问题全部
// 以诊断形式收集，一次运行给出完整问题清单。
func Run(ctx context.Context, opts Options) (*Result, error) {
	defaults := app.DefaultConfig()
	if opts.WalletsPath == "" {
		opts.WalletsPath = defaults.WalletsPath
	}
	if opts.AssetsDir == "" {
		opts.AssetsDir = defaults.AssetsDir
	}
	// 显式指定的策略路径缺失要报错；默认约定路径缺失回退内置默认值。
	policyOptional := opts.PolicyPath == ""
	if opts.PolicyPath == "" {
		opts.PolicyPath = defaults.PolicyPath
	}
	if opts.DBPath == "" {
		opts.DBPath = defaults.DBPath
	}
	if opts.ReportDir == "" {
		opts.ReportDir = defaults.ReportDir
	}

	started := time.Now().Unix()
	runID := id.New("run")

	policyLoader := policy.Loader{File: opts.PolicyPath, Optional: policyOptional}
	loadedPolicy, err := policyLoader.Load(ctx)
	if err != nil {
		return nil, err
	}

	regLoader := registry.Loader{WalletsFile: opts.WalletsPath}
	reg, err := regLoader.Load(ctx)
	if err != nil {
		return nil, err
	}

	rep := &model.Report{}
	walletcheck.CheckRegistry(rep, reg.RawRecords)

	enforceDimensions := loadedPolicy.Policy.Assets.EnforceDimensions
	if opts.EnforceDimensions != nil {
		enforceDimensions = *opts.EnforceDimensions
	}
	strictOrphans := loadedPolicy.Policy.Assets.StrictOrphans
	if opts.StrictOrphans != nil {
		strictOrphans = *opts.StrictOrphans
	}

	if !opts.SkipAssets {
		err := assetcheck.CrossReference(ctx, rep, reg.RawRecords, assetcheck.Options{
			AssetsDir:         opts.AssetsDir,
			EdgePixels:        loadedPolicy.Policy.Assets.EdgePixels,
			EnforceDimensions: enforceDimensions && !opts.SkipDimensions,
			StrictOrphans:     strictOrphans,
			SkipOrphans:       opts.SkipOrphans,
		})
		if err != nil {
			return nil, err
		}
	}

	status := model.RunPassed
	if rep.HasErrors() {
		status = model.RunFailed
	}

	res := &Result{
		RunID:         runID,
		WalletsPath:   reg.Path,
		WalletsSHA256: reg.SHA256,
		RecordCount:   reg.RecordCount(),
		ErrorCount:    rep.Errors,
		WarningCount:  rep.Warnings,
		Status:        status,
		Diagnostics:   rep.Diagnostics,
		StartedAt:     started,
		FinishedAt:    time.Now().Unix(),
	}

	info := model.RunInfo{
		RunID:            runID,
		StartedAt:        started,
		FinishedAt:       res.FinishedAt,
		WalletsPath:      reg.Path,
		WalletsSHA256:    reg.SHA256,
		AssetsDir:        opts.AssetsDir,
		PolicySHA256:     loadedPolicy.SHA256,
		RecordCount:      reg.RecordCount(),
		ErrorCount:       rep.Errors,
		WarningCount:     rep.Warnings,
		Status:           status,
		GeneratorVersion: app.Version,
	}

	// 报告生成失败不阻断校验结论，但要让调用方看到。
	if !opts.NoReports {
		jsonPath, _, jsonErr := writeJSONReport(opts.ReportDir, info, rep.Diagnostics)
		if jsonErr == nil {
			res.ReportJSONPath = jsonPath
		} else {
			res.Warnings = append(res.Warnings, "write json report failed: "+jsonErr.Error())
		}

		htmlPath, _, htmlErr := writeHTMLReport(opts.ReportDir, info, rep.Diagnostics)
		if htmlErr == nil {
			res.ReportHTMLPath = htmlPath
		} else {
			res.Warnings = append(res.Warnings, "write html report failed: "+htmlErr.Error())
		}
	}

	if !opts.NoHistory {
		db, err := sqliteadapter.Open(ctx, opts.DBPath)
		if err != nil {
			return nil, err
		}
		defer db.Close()

		store := sqliteadapter.NewStore(db)
		if err := store.SaveRun(ctx, &info, rep.Diagnostics); err != nil {
			return nil, fmt.Errorf("save run history: %w", err)
		}
	}

	return res, nil
}
