package webapp

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ton-blockchain/wallets-list/internal/domain/model"
	"github.com/ton-blockchain/wallets-list/internal/services/historyverify"
	"github.com/ton-blockchain/wallets-list/internal/services/reportpdf"
	"github.com/ton-blockchain/wallets-list/internal/services/reportzip"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"service": "webapp",
		"time":    time.Now().Unix(),
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	q := model.RunQuery{
		Limit:  parseInt(r.URL.Query().Get("limit"), 50),
		Offset: parseInt(r.URL.Query().Get("offset"), 0),
		Status: model.RunStatus(strings.TrimSpace(r.URL.Query().Get("status"))),
	}

	stats, err := s.store.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	rows, err := s.store.ListRuns(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"stats": stats,
		"runs":  rows,
	})
}

func (s *Server) handleRunRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	rest = strings.Trim(rest, "/")
	if rest == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	parts := strings.Split(rest, "/")
	runID := parts[0]
	action := ""
	if len(parts) > 1 {
		action = parts[1]
	}

	switch action {
	case "":
		s.handleRunOverview(w, r, runID)
	case "report":
		s.handleRunReport(w, r, runID)
	case "download":
		s.handleRunDownload(w, r, runID)
	case "exports":
		// /api/runs/{run_id}/exports/{kind}
		//
		// 目前支持：
		// - POST /api/runs/{run_id}/exports/pdf
		// - POST /api/runs/{run_id}/exports/zip
		restParts := []string{}
		if len(parts) > 2 {
			restParts = parts[2:]
		}
		s.handleRunExports(w, r, runID, restParts)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// resolveRun 把路径里的 run_id 解析成运行记录；"latest" 是最新运行的别名。
func (s *Server) resolveRun(r *http.Request, runID string) (*model.RunInfo, error) {
	runID = strings.TrimSpace(runID)
	if runID == "" || runID == "latest" {
		return s.store.LatestRun(r.Context())
	}
	return s.store.GetRun(r.Context(), runID)
}

func (s *Server) handleRunOverview(w http.ResponseWriter, r *http.Request, runID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	info, err := s.resolveRun(r, runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if info == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("run not found: %s", runID))
		return
	}
	diags, err := s.store.ListRunDiagnostics(r.Context(), info.RunID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, model.RunOverview{
		Info:        *info,
		Diagnostics: diags,
	})
}

// handleRunReport 内联返回文本类报告（JSON/HTML）。
// PDF/ZIP 属于二进制产物，只能走 download。
func (s *Server) handleRunReport(w http.ResponseWriter, r *http.Request, runID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	info, err := s.resolveRun(r, runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if info == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("run not found: %s", runID))
		return
	}

	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "html" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("inline content supports json|html, got %s", format))
		return
	}
	includeContent := parseBool(r.URL.Query().Get("content"), true)

	path := filepath.Join(s.opts.ReportDir, fmt.Sprintf("%s_report.%s", info.RunID, format))
	st, err := os.Stat(path)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"run_id":            info.RunID,
			"format":            format,
			"content_available": false,
		})
		return
	}
	out := map[string]any{
		"run_id":            info.RunID,
		"format":            format,
		"content_available": true,
		"content_length":    st.Size(),
	}
	if includeContent {
		raw, err := os.ReadFile(path)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		out["content"] = string(raw)
		out["content_length"] = len(raw)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRunDownload(w http.ResponseWriter, r *http.Request, runID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	info, err := s.resolveRun(r, runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if info == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("run not found: %s", runID))
		return
	}

	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format == "" {
		format = "json"
	}
	switch format {
	case "json", "html", "pdf":
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("download supports json|html|pdf, got %s", format))
		return
	}

	path := filepath.Join(s.opts.ReportDir, fmt.Sprintf("%s_report.%s", info.RunID, format))
	if _, err := os.Stat(path); err != nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("report file not found: %s", filepath.Base(path)))
		return
	}
	serveFile(w, r, path, "report_"+info.RunID)
}

// handleRunExports 负责导出产物生成入口（同步生成；产物都很小）。
func (s *Server) handleRunExports(w http.ResponseWriter, r *http.Request, runID string, parts []string) {
	if len(parts) < 1 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	kind := strings.TrimSpace(parts[0])

	switch kind {
	case "pdf":
		s.handleRunExportPDF(w, r, runID)
	case "zip":
		s.handleRunExportZip(w, r, runID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (s *Server) handleRunExportPDF(w http.ResponseWriter, r *http.Request, runID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	type reqBody struct {
		Note string `json:"note,omitempty"`
	}
	var req reqBody
	_ = json.NewDecoder(r.Body).Decode(&req) // 允许空 body

	info, err := s.resolveRun(r, runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if info == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("run not found: %s", runID))
		return
	}

	res, err := reportpdf.GenerateRunPDF(r.Context(), s.store, reportpdf.Options{
		RunID:  info.RunID,
		OutDir: s.opts.ReportDir,
		Note:   strings.TrimSpace(req.Note),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"run_id":     res.RunID,
		"pdf_path":   res.PDFPath,
		"pdf_sha256": res.PDFSHA256,
		"warnings":   res.Warnings,
	})
}

func (s *Server) handleRunExportZip(w http.ResponseWriter, r *http.Request, runID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	type reqBody struct {
		Note string `json:"note,omitempty"`
	}
	var req reqBody
	_ = json.NewDecoder(r.Body).Decode(&req) // 允许空 body

	info, err := s.resolveRun(r, runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if info == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("run not found: %s", runID))
		return
	}

	res, err := reportzip.GenerateRunZip(r.Context(), s.store, reportzip.ZipOptions{
		RunID:      info.RunID,
		DBPath:     s.opts.DBPath,
		ReportDir:  s.opts.ReportDir,
		PolicyPath: s.activePolicyPath(r.Context()),
		Note:       strings.TrimSpace(req.Note),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"run_id":     res.RunID,
		"zip_path":   res.ZipPath,
		"zip_sha256": res.ZipSHA256,
		"warnings":   res.Warnings,
	})
}

// handleHistoryVerify 对运行历史链做强校验（详见 historyverify）。
func (s *Server) handleHistoryVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	runs, err := s.store.ListRunsChrono(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	res := historyverify.VerifyRuns(runs)
	writeJSON(w, http.StatusOK, res)
}

// --- helpers ---

// serveFile 以附件方式下发一个磁盘文件，文件名统一为 {base}{原扩展名}。
func serveFile(w http.ResponseWriter, r *http.Request, path string, downloadBase string) {
	name := filepath.Base(path)
	if downloadBase != "" {
		name = downloadBase + filepath.Ext(name)
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeFile(w, r, path)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{
		"error": err.Error(),
	})
}

func parseInt(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func parseBool(s string, def bool) bool {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return def
	}
	switch s {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}
