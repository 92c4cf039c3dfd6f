package reportpdf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	sqliteadapter "github.com/ton-blockchain/wallets-list/internal/adapters/store/sqlite"
	"github.com/ton-blockchain/wallets-list/internal/app"
	"github.com/ton-blockchain/wallets-list/internal/domain/model"
	"github.com/ton-blockchain/wallets-list/internal/platform/hash"

	"github.com/phpdave11/gofpdf"
)

// 运行结论 PDF 报告
//
// 设计目标（当前版本：仓库维护者内部使用优先）：
// - 先“能用”：输出一个可下载、可长期归档的 PDF 文件
// - 先“可追溯”：内容全部来自 runs/run_diagnostics 表，附带链路哈希
// - 先“可扩展”：后续可逐步补充趋势图、逐钱包分组等展示

type Options struct {
	// RunID 为空时导出最新一次运行。
	RunID  string
	OutDir string
	Note   string
}

type Result struct {
	RunID       string   `json:"run_id"`
	PDFPath     string   `json:"pdf_path"`
	PDFSHA256   string   `json:"pdf_sha256"`
	Warnings    []string `json:"warnings,omitempty"`
	GeneratedAt int64    `json:"generated_at"`
}

// GenerateRunPDF 把一次校验运行导出为 PDF 摘要。
func GenerateRunPDF(ctx context.Context, store *sqliteadapter.Store, opts Options) (*Result, error) {
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

	warnings := []string{}

	diags, err := store.ListRunDiagnostics(ctx, info.RunID)
	if err != nil {
		warnings = append(warnings, "list diagnostics failed: "+err.Error())
		diags = []model.Diagnostic{}
	}

	// 诊断过多时只展示前若干条，避免 PDF 过大；总数仍写在 Overview 里。
	const maxDiagnostics = 300
	diagRows := diags
	if len(diagRows) > maxDiagnostics {
		diagRows = diagRows[:maxDiagnostics]
	}

	now := time.Now().Unix()
	outDir := strings.TrimSpace(opts.OutDir)
	if outDir == "" {
		outDir = app.DefaultConfig().ReportDir
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir reports: %w", err)
	}
	pdfPath := filepath.Join(outDir, fmt.Sprintf("%s_report.pdf", info.RunID))

	pdf, utf8OK := buildPDF(*info, diagRows, len(diags), opts.Note, now)
	if !utf8OK {
		// 不支持 UTF-8 字体时，为了保证“不会失败”，会把非 ASCII 字符替换为 '?'。
		// 这里将该事实写入 warnings，避免用户误解为“报告内容丢失”。
		warnings = append(warnings, "pdf utf8 font not available; non-ascii text may be replaced with '?'")
	}
	if err := pdf.OutputFileAndClose(pdfPath); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}

	sum, _, err := hash.File(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("sha256 pdf: %w", err)
	}

	return &Result{
		RunID:       info.RunID,
		PDFPath:     pdfPath,
		PDFSHA256:   sum,
		Warnings:    warnings,
		GeneratedAt: now,
	}, nil
}

func buildPDF(info model.RunInfo, diags []model.Diagnostic, totalDiags int, note string, generatedAt int64) (*gofpdf.Fpdf, bool) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(14, 14, 14)
	pdf.SetAutoPageBreak(true, 14)
	pdf.SetTitle("TON Wallets Registry - Validation Report", false)

	fontFamily, utf8OK := initPDFUnicodeFont(pdf)

	pdf.AddPage()

	// 标题
	pdf.SetFont(fontFamily, "B", 16)
	pdf.CellFormat(0, 9, "TON Wallets Registry - Validation Report", "", 1, "L", false, 0, "")

	pdf.SetFont(fontFamily, "", 10)
	pdf.SetTextColor(60, 60, 60)
	pdf.CellFormat(0, 6, fmt.Sprintf("Generated at: %s", fmtTime(generatedAt)), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Generator: wallets-cli %s", app.Version), "", 1, "L", false, 0, "")
	if strings.TrimSpace(note) != "" {
		pdf.MultiCell(0, 5, fmt.Sprintf("Note: %s", safeText(note, utf8OK)), "", "L", false)
	}
	pdf.Ln(2)

	// Overview
	sectionTitle(pdf, fontFamily, "1. Run Overview")
	kv(pdf, fontFamily, utf8OK, "Run ID", info.RunID)
	kv(pdf, fontFamily, utf8OK, "Status", strings.ToUpper(string(info.Status)))
	kv(pdf, fontFamily, utf8OK, "Started At", fmtTime(info.StartedAt))
	kv(pdf, fontFamily, utf8OK, "Finished At", fmtTime(info.FinishedAt))
	kv(pdf, fontFamily, utf8OK, "Wallets File", info.WalletsPath)
	kv(pdf, fontFamily, utf8OK, "Wallets SHA256", info.WalletsSHA256)
	kv(pdf, fontFamily, utf8OK, "Assets Dir", info.AssetsDir)
	kv(pdf, fontFamily, utf8OK, "Policy SHA256", info.PolicySHA256)
	kv(pdf, fontFamily, utf8OK, "Records", fmt.Sprintf("%d", info.RecordCount))
	kv(pdf, fontFamily, utf8OK, "Diagnostics", fmt.Sprintf("%d (errors=%d, warnings=%d)", totalDiags, info.ErrorCount, info.WarningCount))
	if strings.TrimSpace(info.ChainHash) != "" {
		kv(pdf, fontFamily, utf8OK, "Chain Hash", info.ChainHash)
	}
	pdf.Ln(2)

	// Diagnostics
	sectionTitle(pdf, fontFamily, "2. Diagnostics (Top List)")
	if len(diags) == 0 {
		pdf.SetFont(fontFamily, "", 10)
		pdf.SetTextColor(90, 90, 90)
		pdf.MultiCell(0, 5, "(no problems found)", "", "L", false)
	} else {
		for _, d := range diags {
			pdf.SetFont(fontFamily, "B", 10)
			if d.Severity == model.SeverityError {
				pdf.SetTextColor(150, 30, 30)
			} else {
				pdf.SetTextColor(120, 80, 0)
			}
			record := "-"
			if d.RecordIndex >= 0 {
				record = fmt.Sprintf("#%d", d.RecordIndex)
			}
			pdf.MultiCell(0, 5, fmt.Sprintf("%s | %s/%s | record %s",
				strings.ToUpper(string(d.Severity)),
				safeText(string(d.Stage), utf8OK),
				safeText(string(d.Kind), utf8OK),
				record,
			), "", "L", false)
			pdf.SetFont(fontFamily, "", 9)
			pdf.SetTextColor(40, 40, 40)
			if strings.TrimSpace(d.Entity) != "" {
				pdf.MultiCell(0, 4.5, fmt.Sprintf("entity: %s", safeText(d.Entity, utf8OK)), "", "L", false)
			}
			pdf.MultiCell(0, 4.5, safeText(d.Message, utf8OK), "", "L", false)
			pdf.Ln(1)
		}
		if totalDiags > len(diags) {
			pdf.SetFont(fontFamily, "", 9)
			pdf.SetTextColor(90, 90, 90)
			pdf.MultiCell(0, 4.5, fmt.Sprintf("... and %d more (see JSON report)", totalDiags-len(diags)), "", "L", false)
		}
	}

	// 尾注
	pdf.Ln(2)
	pdf.SetFont(fontFamily, "", 9)
	pdf.SetTextColor(90, 90, 90)
	pdf.MultiCell(0, 4.5, "Note: This PDF is a human-readable summary. For machine consumption, use the JSON report or the export ZIP (manifest.json + hashes.sha256).", "", "L", false)

	return pdf, utf8OK
}

func sectionTitle(pdf *gofpdf.Fpdf, fontFamily string, title string) {
	pdf.SetFont(fontFamily, "B", 12)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 7, title, "", 1, "L", false, 0, "")
	pdf.SetDrawColor(200, 200, 200)
	pdf.Line(pdf.GetX(), pdf.GetY(), 200, pdf.GetY())
	pdf.Ln(2)
}

func kv(pdf *gofpdf.Fpdf, fontFamily string, utf8OK bool, key string, value string) {
	if strings.TrimSpace(value) == "" {
		value = "-"
	}
	pdf.SetFont(fontFamily, "B", 10)
	pdf.SetTextColor(30, 30, 30)
	pdf.CellFormat(36, 5.2, key+":", "", 0, "L", false, 0, "")
	pdf.SetFont(fontFamily, "", 10)
	pdf.SetTextColor(20, 20, 20)
	pdf.MultiCell(0, 5.2, safeText(value, utf8OK), "", "L", false)
}

func fmtTime(ts int64) string {
	if ts <= 0 {
		return "-"
	}
	return time.Unix(ts, 0).UTC().Format("2006-01-02 15:04:05")
}

func safeText(s string, utf8OK bool) string {
	// gofpdf 的内置字体对 ASCII/Latin 表现最好；
	// 如果未成功加载 UTF-8 字体，则把非 ASCII 字符替换为 '?'，确保 PDF 一定能生成。
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	s = strings.TrimSpace(s)
	if utf8OK {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= 32 && r <= 126 {
			b.WriteRune(r)
		} else {
			b.WriteRune('?')
		}
	}
	return b.String()
}

// initPDFUnicodeFont 尝试加载 UTF-8 字体（TrueType），以支持非 ASCII 钱包名。
//
// 规则：
// 1) 如果设置了环境变量 WALLETS_LIST_PDF_FONT，优先使用该文件路径。
// 2) 否则按常见系统字体路径探测（macOS/Windows/Linux）。
// 3) 加载失败则回退到核心字体（Helvetica），并通过 safeText() 兜底替换非 ASCII 字符。
func initPDFUnicodeFont(pdf *gofpdf.Fpdf) (family string, utf8OK bool) {
	const familyName = "unicode"
	candidates := []string{}

	if v := strings.TrimSpace(os.Getenv("WALLETS_LIST_PDF_FONT")); v != "" {
		candidates = append(candidates, v)
	}

	switch runtime.GOOS {
	case "darwin":
		candidates = append(candidates,
			"/System/Library/Fonts/Supplemental/Arial Unicode.ttf",
			"/System/Library/Fonts/Supplemental/AppleMyungjo.ttf",
			"/System/Library/Fonts/Supplemental/AppleGothic.ttf",
			"/System/Library/Fonts/Hiragino Sans GB.ttc",
			"/System/Library/Fonts/PingFang.ttc",
		)
	case "windows":
		candidates = append(candidates,
			`C:\Windows\Fonts\arialuni.ttf`,
			`C:\Windows\Fonts\simhei.ttf`,
			`C:\Windows\Fonts\simsun.ttc`,
			`C:\Windows\Fonts\msyh.ttc`,
		)
	default:
		// Linux (best effort)
		candidates = append(candidates,
			"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
			"/usr/share/fonts/truetype/noto/NotoSansCJK-Regular.ttc",
			"/usr/share/fonts/opentype/noto/NotoSansCJK-Regular.ttc",
			"/usr/share/fonts/truetype/arphic/uming.ttc",
		)
	}

	for _, p := range candidates {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}

		// 即使只有一个字体文件，这里也注册 B 样式，避免 SetFont(...,"B",...) 报错。
		pdf.AddUTF8Font(familyName, "", p)
		if pdf.Err() {
			pdf.ClearError()
			continue
		}
		pdf.AddUTF8Font(familyName, "B", p)
		if pdf.Err() {
			// bold 失败也不致命：清错后仍可用 regular
			pdf.ClearError()
		}
		return familyName, true
	}

	return "Helvetica", false
}
