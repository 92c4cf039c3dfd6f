package reportzip

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	sqliteadapter "github.com/ton-blockchain/wallets-list/internal/adapters/store/sqlite"
	"github.com/ton-blockchain/wallets-list/internal/app"
	"github.com/ton-blockchain/wallets-list/internal/domain/model"
	"github.com/ton-blockchain/wallets-list/internal/platform/hash"
)

// ZipOptions 定义“运行导出包（ZIP）”生成参数。
//
// 设计目标：
// - 把一次运行的“输入文档 + 策略文件 + 报告产物 + 清单(manifest) + hash 列表”打包到一个 ZIP
// - 先满足维护者之间流转/复核；审计方拿到包后可离线重新核对所有哈希
type ZipOptions struct {
	// RunID 为空时导出最新一次运行。
	RunID string

	// DBPath 用于决定导出文件落盘目录（默认写入 db 同级目录下 exports/）。
	DBPath string

	// ReportDir 是 JSON/HTML/PDF 报告所在目录。
	ReportDir string

	// WalletsPath/PolicyPath 覆盖打包的输入文档与策略文件路径；
	// 为空时使用运行记录里的 wallets_path 与默认策略路径。
	WalletsPath string
	PolicyPath  string

	// ExportDir 可选：显式指定导出目录。
	ExportDir string

	Note string
}

type FileHashEntry struct {
	Path      string `json:"path"`       // ZIP 内路径（使用 "/" 分隔）
	SHA256    string `json:"sha256"`     // 文件内容 SHA-256
	SizeBytes int64  `json:"size_bytes"` // 原始字节数
	Kind      string `json:"kind"`       // input|policy|report|manifest
}

type ZipManifest struct {
	Schema      string `json:"schema"`
	GeneratedAt int64  `json:"generated_at"`

	App struct {
		Version   string `json:"version"`
		Commit    string `json:"commit"`
		BuildTime string `json:"build_time"`
	} `json:"app"`

	Run         *model.RunInfo     `json:"run"`
	Diagnostics []model.Diagnostic `json:"diagnostics"`
	Files       []FileHashEntry    `json:"files"`
	Warnings    []string           `json:"warnings,omitempty"`
	Note        string             `json:"note,omitempty"`
	Stats       map[string]any     `json:"stats,omitempty"`
}

// ZipResult 是一次 ZIP 导出任务的摘要输出。
type ZipResult struct {
	RunID      string   `json:"run_id"`
	ZipPath    string   `json:"zip_path"`
	ZipSHA256  string   `json:"zip_sha256"`
	Warnings   []string `json:"warnings,omitempty"`
	StartedAt  int64    `json:"started_at"`
	FinishedAt int64    `json:"finished_at"`
}

const manifestSchemaV1 = "wallets_list.run_export_manifest.v1"

// GenerateRunZip 生成“运行导出包（ZIP）”。
//
// 输出 ZIP 内容（v1）：
// - manifest.json：运行索引/诊断明细/文件哈希的结构化清单
// - hashes.sha256：ZIP 内各文件（除自身）sha256 列表（sha256sum 兼容格式）
// - input/..：本次运行校验的注册表文档
// - policy/..：策略文件（存在时）
// - reports/..：JSON/HTML/PDF 报告产物（存在时）
func GenerateRunZip(ctx context.Context, store *sqliteadapter.Store, opts ZipOptions) (*ZipResult, error) {
	startedAt := time.Now().Unix()

	if store == nil {
		return nil, fmt.Errorf("store is required")
	}

	var (
		info *model.RunInfo
		err  error
	)
	if runID := strings.TrimSpace(opts.RunID); runID != "" {
		info, err = store.GetRun(ctx, runID)
	} else {
		info, err = store.LatestRun(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("load run: %w", err)
	}
	if info == nil {
		if opts.RunID != "" {
			return nil, fmt.Errorf("run not found: %s", opts.RunID)
		}
		return nil, fmt.Errorf("no runs recorded yet")
	}

	diags, err := store.ListRunDiagnostics(ctx, info.RunID)
	if err != nil {
		return nil, fmt.Errorf("list diagnostics: %w", err)
	}
	if diags == nil {
		diags = []model.Diagnostic{}
	}

	dbPath := strings.TrimSpace(opts.DBPath)
	if dbPath == "" {
		dbPath = app.DefaultConfig().DBPath
	}
	reportDir := strings.TrimSpace(opts.ReportDir)
	if reportDir == "" {
		reportDir = app.DefaultConfig().ReportDir
	}
	exportDir := strings.TrimSpace(opts.ExportDir)
	if exportDir == "" {
		// 默认写到 db 同级目录（通常是 data/exports）。
		exportDir = filepath.Join(filepath.Dir(dbPath), "exports")
	}
	if err := os.MkdirAll(exportDir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	// --- 组织需要打进 ZIP 的磁盘文件清单 ---
	type includeSpec struct {
		SrcPath string
		ZipPath string
		Kind    string
	}

	var warnings []string
	var includes []includeSpec

	walletsPath := strings.TrimSpace(opts.WalletsPath)
	if walletsPath == "" {
		walletsPath = info.WalletsPath
	}
	if walletsPath != "" {
		includes = append(includes, includeSpec{
			SrcPath: walletsPath,
			ZipPath: filepath.ToSlash(filepath.Join("input", filepath.Base(walletsPath))),
			Kind:    "input",
		})
		// 输入文档可能在运行之后被改过；核对当前哈希，避免审阅方误把新文件当旧结论。
		if sum, _, herr := hash.File(walletsPath); herr == nil {
			if info.WalletsSHA256 != "" && sum != info.WalletsSHA256 {
				warnings = append(warnings, fmt.Sprintf("wallets file changed since run: sha256 now %s, was %s", sum, info.WalletsSHA256))
			}
		}
	}

	policyPath := strings.TrimSpace(opts.PolicyPath)
	if policyPath == "" {
		policyPath = app.DefaultConfig().PolicyPath
	}
	if _, err := os.Stat(policyPath); err == nil {
		includes = append(includes, includeSpec{
			SrcPath: policyPath,
			ZipPath: filepath.ToSlash(filepath.Join("policy", filepath.Base(policyPath))),
			Kind:    "policy",
		})
	}

	for _, name := range []string{
		info.RunID + "_report.json",
		info.RunID + "_report.html",
		info.RunID + "_report.pdf",
	} {
		src := filepath.Join(reportDir, name)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		includes = append(includes, includeSpec{
			SrcPath: src,
			ZipPath: filepath.ToSlash(filepath.Join("reports", name)),
			Kind:    "report",
		})
	}

	// --- 开始写 ZIP ---
	zipName := fmt.Sprintf("%s_export_%d.zip", info.RunID, time.Now().Unix())
	zipPath := filepath.Join(exportDir, zipName)
	f, err := os.Create(zipPath)
	if err != nil {
		return nil, fmt.Errorf("create zip: %w", err)
	}
	defer func() { _ = f.Close() }()

	zw := zip.NewWriter(f)
	defer func() { _ = zw.Close() }()

	var fileHashes []FileHashEntry

	addDiskFile := func(srcPath, zipPath, kind string) {
		if strings.TrimSpace(srcPath) == "" || strings.TrimSpace(zipPath) == "" {
			return
		}
		select {
		case <-ctx.Done():
			warnings = append(warnings, "context cancelled")
			return
		default:
		}

		sum, size, err := writeZipFileFromDisk(zw, srcPath, zipPath)
		if err != nil {
			// best-effort：缺失文件不阻断导出，但必须在 manifest 里留下痕迹。
			warnings = append(warnings, fmt.Sprintf("skip file %s -> %s: %v", srcPath, zipPath, err))
			return
		}
		fileHashes = append(fileHashes, FileHashEntry{
			Path:      zipPath,
			SHA256:    sum,
			SizeBytes: size,
			Kind:      kind,
		})
	}

	for _, it := range includes {
		addDiskFile(it.SrcPath, it.ZipPath, it.Kind)
	}

	// manifest.json（先写入，再把它的 hash 也记录进 hashes.sha256）
	manifest := ZipManifest{
		Schema:      manifestSchemaV1,
		GeneratedAt: time.Now().Unix(),
		Run:         info,
		Diagnostics: diags,
		Warnings:    warnings,
		Note:        strings.TrimSpace(opts.Note),
		Stats: map[string]any{
			"record_count":     info.RecordCount,
			"error_count":      info.ErrorCount,
			"warning_count":    info.WarningCount,
			"diagnostic_count": len(diags),
		},
	}
	manifest.App.Version = app.Version
	manifest.App.Commit = app.Commit
	manifest.App.BuildTime = app.BuildTime

	// 排序：让 manifest 与 hashes.sha256 尽量稳定（便于对比）。
	sort.Slice(fileHashes, func(i, j int) bool { return fileHashes[i].Path < fileHashes[j].Path })
	manifest.Files = fileHashes

	manifestRaw, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	manifestSum, manifestSize, err := writeZipFileFromBytes(zw, "manifest.json", manifestRaw)
	if err != nil {
		return nil, fmt.Errorf("write manifest to zip: %w", err)
	}
	fileHashes = append(fileHashes, FileHashEntry{
		Path:      "manifest.json",
		SHA256:    manifestSum,
		SizeBytes: manifestSize,
		Kind:      "manifest",
	})

	// hashes.sha256（sha256sum 兼容格式，默认不包含自身）
	sort.Slice(fileHashes, func(i, j int) bool { return fileHashes[i].Path < fileHashes[j].Path })
	hashLines := make([]string, 0, len(fileHashes)+4)
	hashLines = append(hashLines, "# wallets-list run export hash list")
	hashLines = append(hashLines, fmt.Sprintf("# generated_at=%d", time.Now().Unix()))
	hashLines = append(hashLines, "# format: <sha256><two spaces><path>")
	for _, fh := range fileHashes {
		hashLines = append(hashLines, fmt.Sprintf("%s  %s", fh.SHA256, fh.Path))
	}
	hashLines = append(hashLines, "")
	hashRaw := []byte(strings.Join(hashLines, "\n"))
	if _, _, err := writeZipFileFromBytes(zw, "hashes.sha256", hashRaw); err != nil {
		return nil, fmt.Errorf("write hashes.sha256 to zip: %w", err)
	}

	// flush/close zip
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close zip writer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close zip file: %w", err)
	}

	zipSum, _, err := hash.File(zipPath)
	if err != nil {
		return nil, fmt.Errorf("hash zip: %w", err)
	}

	return &ZipResult{
		RunID:      info.RunID,
		ZipPath:    zipPath,
		ZipSHA256:  zipSum,
		Warnings:   warnings,
		StartedAt:  startedAt,
		FinishedAt: time.Now().Unix(),
	}, nil
}

func writeZipFileFromDisk(zw *zip.Writer, srcPath, zipPath string) (sum string, size int64, err error) {
	fi, err := os.Stat(srcPath)
	if err != nil {
		return "", 0, err
	}
	if fi.IsDir() {
		return "", 0, fmt.Errorf("is a directory")
	}

	hdr, err := zip.FileInfoHeader(fi)
	if err != nil {
		return "", 0, err
	}
	hdr.Name = zipPath
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return "", 0, err
	}

	f, err := os.Open(srcPath)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	hasher := sha256.New()
	n, err := io.Copy(io.MultiWriter(w, hasher), f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(hasher.Sum(nil)), n, nil
}

func writeZipFileFromBytes(zw *zip.Writer, zipPath string, b []byte) (sum string, size int64, err error) {
	hdr := &zip.FileHeader{
		Name:     zipPath,
		Method:   zip.Deflate,
		Modified: time.Now(),
	}
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return "", 0, err
	}
	hasher := sha256.New()
	n, err := io.Copy(io.MultiWriter(w, hasher), bytes.NewReader(b))
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(hasher.Sum(nil)), n, nil
}
