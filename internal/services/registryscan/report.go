package registryscan

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ton-blockchain/wallets-list/internal/domain/model"
	"github.com/ton-blockchain/wallets-list/internal/platform/hash"
)

// writeJSONReport 生成机器可读报告，返回文件路径与哈希。
func writeJSONReport(reportDir string, info model.RunInfo, diags []model.Diagnostic) (path string, sha string, err error) {
	if err := os.MkdirAll(reportDir, 0o755); err != nil {
		return "", "", err
	}
	if diags == nil {
		diags = []model.Diagnostic{}
	}

	payload := map[string]any{
		"run_id":         info.RunID,
		"generated_at":   time.Unix(info.FinishedAt, 0).UTC().Format(time.RFC3339),
		"generator":      "wallets-cli " + info.GeneratorVersion,
		"wallets_path":   info.WalletsPath,
		"wallets_sha256": info.WalletsSHA256,
		"assets_dir":     info.AssetsDir,
		"policy_sha256":  info.PolicySHA256,
		"record_count":   info.RecordCount,
		"summary": map[string]any{
			"status":   string(info.Status),
			"errors":   info.ErrorCount,
			"warnings": info.WarningCount,
		},
		"diagnostics": diags,
	}

	raw, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", "", err
	}

	path = filepath.Join(reportDir, fmt.Sprintf("%s_report.json", info.RunID))
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", "", err
	}

	sum, _, err := hash.File(path)
	if err != nil {
		return "", "", err
	}
	return path, sum, nil
}

// writeHTMLReport 生成人类可读报告，返回文件路径与哈希。
//
// 设计目标：
// - 不引入模板引擎，直接拼接 HTML（内部查看够用）
// - 诊断表保持流水线产出顺序，便于与 JSON 报告逐行对照
func writeHTMLReport(reportDir string, info model.RunInfo, diags []model.Diagnostic) (path string, sha string, err error) {
	if err := os.MkdirAll(reportDir, 0o755); err != nil {
		return "", "", err
	}

	path = filepath.Join(reportDir, fmt.Sprintf("%s_report.html", info.RunID))

	var b strings.Builder
	b.Grow(16 * 1024)
	b.WriteString("<!doctype html>\n<html lang=\"en\">\n<head>\n")
	b.WriteString("<meta charset=\"utf-8\"/>\n<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\"/>\n")
	b.WriteString("<title>Wallet Registry Validation Report</title>\n")
	b.WriteString("<style>\n")
	b.WriteString("body{font-family:ui-monospace,SFMono-Regular,Menlo,Monaco,Consolas,\"Liberation Mono\",monospace;background:#0b1220;color:#e8e8e8;margin:0;padding:24px;}\n")
	b.WriteString("h1{font-size:18px;margin:0 0 12px 0;}\n")
	b.WriteString("h2{font-size:14px;margin:20px 0 8px 0;color:#4fc3f7;border-bottom:1px solid #1f2937;padding-bottom:6px;}\n")
	b.WriteString(".muted{color:#b8bcc4;}\n")
	b.WriteString(".kv{display:grid;grid-template-columns:160px 1fr;gap:6px 12px;font-size:12px;}\n")
	b.WriteString(".box{border:1px solid #1f2937;background:#111827;padding:12px;border-radius:6px;}\n")
	b.WriteString("table{width:100%;border-collapse:collapse;font-size:12px;}\n")
	b.WriteString("th,td{border:1px solid #1f2937;padding:6px 8px;vertical-align:top;}\n")
	b.WriteString("th{background:#0d0f12;color:#b8bcc4;text-align:left;}\n")
	b.WriteString(".ok{color:#22c55e;}\n")
	b.WriteString(".warn{color:#ffa726;}\n")
	b.WriteString(".bad{color:#ff6b6b;}\n")
	b.WriteString(".mono{font-family:inherit;word-break:break-all;}\n")
	b.WriteString("</style>\n</head>\n<body>\n")

	b.WriteString("<h1>Wallet Registry Validation Report</h1>\n")
	b.WriteString("<div class=\"box kv\">")
	b.WriteString("<div class=\"muted\">run_id</div><div class=\"mono\">" + htmlEscape(info.RunID) + "</div>")
	b.WriteString("<div class=\"muted\">generated_at</div><div class=\"mono\">" + htmlEscape(time.Unix(info.FinishedAt, 0).Format("2006-01-02 15:04:05")) + "</div>")
	b.WriteString("<div class=\"muted\">wallets_path</div><div class=\"mono\">" + htmlEscape(info.WalletsPath) + "</div>")
	b.WriteString("<div class=\"muted\">wallets_sha256</div><div class=\"mono\">" + htmlEscape(info.WalletsSHA256) + "</div>")
	b.WriteString("<div class=\"muted\">assets_dir</div><div class=\"mono\">" + htmlEscape(info.AssetsDir) + "</div>")
	statusClass := "ok"
	if info.Status == model.RunFailed {
		statusClass = "bad"
	}
	b.WriteString("<div class=\"muted\">status</div><div class=\"" + statusClass + "\">" + htmlEscape(string(info.Status)) + "</div>")
	b.WriteString("</div>\n")

	b.WriteString("<h2>Summary</h2>\n<div class=\"box kv\">")
	b.WriteString("<div class=\"muted\">records</div><div class=\"mono\">" + fmt.Sprintf("%d", info.RecordCount) + "</div>")
	b.WriteString("<div class=\"muted\">errors</div><div class=\"mono\">" + fmt.Sprintf("%d", info.ErrorCount) + "</div>")
	b.WriteString("<div class=\"muted\">warnings</div><div class=\"mono\">" + fmt.Sprintf("%d", info.WarningCount) + "</div>")
	b.WriteString("</div>\n")

	b.WriteString("<h2>Diagnostics</h2>\n<div class=\"box\">")
	if len(diags) == 0 {
		b.WriteString("<div class=\"ok\">(no problems found)</div>")
	} else {
		b.WriteString("<table><thead><tr><th>severity</th><th>stage</th><th>kind</th><th>record</th><th>entity</th><th>message</th></tr></thead><tbody>")
		for _, d := range diags {
			sevClass := "warn"
			if d.Severity == model.SeverityError {
				sevClass = "bad"
			}
			recordCol := ""
			if d.RecordIndex >= 0 {
				recordCol = fmt.Sprintf("%d", d.RecordIndex)
			}
			b.WriteString("<tr>")
			b.WriteString("<td class=\"" + sevClass + "\">" + htmlEscape(string(d.Severity)) + "</td>")
			b.WriteString("<td class=\"mono\">" + htmlEscape(string(d.Stage)) + "</td>")
			b.WriteString("<td class=\"mono\">" + htmlEscape(string(d.Kind)) + "</td>")
			b.WriteString("<td class=\"mono\">" + htmlEscape(recordCol) + "</td>")
			b.WriteString("<td class=\"mono\">" + htmlEscape(d.Entity) + "</td>")
			b.WriteString("<td>" + htmlEscape(d.Message) + "</td>")
			b.WriteString("</tr>")
		}
		b.WriteString("</tbody></table>")
	}
	b.WriteString("</div>\n")

	b.WriteString("</body>\n</html>\n")

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", "", err
	}

	sum, _, err := hash.File(path)
	if err != nil {
		return "", "", err
	}
	return path, sum, nil
}

func htmlEscape(s string) string {
	if s == "" {
		return ""
	}
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\"", "&quot;",
		"'", "&#39;",
	)
	return replacer.Replace(s)
}
