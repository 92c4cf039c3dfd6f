package webapp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ton-blockchain/wallets-list/internal/adapters/policy"
)

const metaActivePolicyPath = "active_policy_path"

type policyFileInfo struct {
	Path     string `json:"path"`
	Filename string `json:"filename"`
	Version  string `json:"version,omitempty"`
	SHA256   string `json:"sha256,omitempty"`
	Active   bool   `json:"active"`
}

func (s *Server) policiesDir() string {
	// 与 DB 同级的 data/policies（应用目录可能只读，运行数据落在 data/）。
	return filepath.Join(filepath.Dir(s.opts.DBPath), "policies")
}

// activePolicyPath 返回当前生效的策略文件路径：
// UI 里导入/切换过则以 schema_meta 记录为准，否则用启动参数。
func (s *Server) activePolicyPath(ctx context.Context) string {
	if v, _ := s.store.GetSchemaMetaValue(ctx, metaActivePolicyPath); strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return s.opts.PolicyPath
}

func (s *Server) handlePolicy(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handlePolicyList(w, r)
	case http.MethodPost:
		// /api/policy (POST) 作为一个简化路由：根据 action 分发
		action := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("action")))
		switch action {
		case "import":
			s.handlePolicyImport(w, r)
		case "activate":
			s.handlePolicyActivate(w, r)
		default:
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid action: %s", action))
		}
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handlePolicyList(w http.ResponseWriter, r *http.Request) {
	policiesDir := s.policiesDir()
	_ = os.MkdirAll(policiesDir, 0o755)

	activePath := s.activePolicyPath(r.Context())

	// 收集候选文件：
	// - 启动参数指定的路径（允许用户“切回默认文件”）
	// - 当前 active 的路径
	// - policiesDir 下的 *.yaml/*.yml
	candidates := map[string]struct{}{}
	for _, p := range []string{s.opts.PolicyPath, activePath} {
		p = strings.TrimSpace(p)
		if p != "" {
			candidates[p] = struct{}{}
		}
	}
	for _, pat := range []string{"*.yaml", "*.yml"} {
		files, _ := filepath.Glob(filepath.Join(policiesDir, pat))
		for _, f := range files {
			candidates[f] = struct{}{}
		}
	}

	var files []policyFileInfo
	for p := range candidates {
		info, err := inspectPolicyFile(r.Context(), p)
		if err != nil {
			continue
		}
		info.Active = p == activePath
		files = append(files, info)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Filename < files[j].Filename })

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":           true,
		"active_path":  activePath,
		"policies_dir": policiesDir,
		"policies":     files,
	})
}

// handlePolicyImport 接收 YAML 文本并落盘到 policiesDir，然后把该文件设为 active。
func (s *Server) handlePolicyImport(w http.ResponseWriter, r *http.Request) {
	type reqBody struct {
		Filename string `json:"filename,omitempty"` // 可选
		Content  string `json:"content"`            // YAML 原文
	}
	var req reqBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}

	content := strings.TrimSpace(req.Content)
	if content == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("empty content"))
		return
	}

	policiesDir := s.policiesDir()
	if err := os.MkdirAll(policiesDir, 0o755); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("create policies dir: %w", err))
		return
	}

	now := time.Now().Unix()
	name := sanitizePolicyFilename(filepath.Base(strings.TrimSpace(req.Filename)))
	if name == "" || name == "." {
		name = fmt.Sprintf("policy_import_%d.yaml", now)
	}
	if !strings.HasSuffix(strings.ToLower(name), ".yaml") && !strings.HasSuffix(strings.ToLower(name), ".yml") {
		name += ".yaml"
	}
	dst := filepath.Join(policiesDir, fmt.Sprintf("%d_%s", now, name))
	if err := os.WriteFile(dst, []byte(content), 0o644); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("write file: %w", err))
		return
	}

	// 用 loader 做一次完整校验；坏文件直接拒收并删除落盘副本。
	info, err := inspectPolicyFile(r.Context(), dst)
	if err != nil {
		_ = os.Remove(dst)
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid policy file: %w", err))
		return
	}

	if err := s.store.UpsertSchemaMetaValue(r.Context(), metaActivePolicyPath, dst); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	info.Active = true

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"file": info,
	})
}

func (s *Server) handlePolicyActivate(w http.ResponseWriter, r *http.Request) {
	type reqBody struct {
		Path string `json:"path"`
	}
	var req reqBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	path := strings.TrimSpace(req.Path)
	if path == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("path is required"))
		return
	}

	info, err := inspectPolicyFile(r.Context(), path)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("policy validation failed: %w", err))
		return
	}
	if err := s.store.UpsertSchemaMetaValue(r.Context(), metaActivePolicyPath, path); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	info.Active = true

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":          true,
		"active_path": path,
		"file":        info,
	})
}

func sanitizePolicyFilename(in string) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return ""
	}
	in = strings.ReplaceAll(in, " ", "_")
	in = strings.ReplaceAll(in, string(os.PathSeparator), "_")
	in = strings.ReplaceAll(in, "..", "_")
	return in
}

// inspectPolicyFile 加载并校验一个策略文件（显式路径，缺失即错误）。
func inspectPolicyFile(ctx context.Context, path string) (policyFileInfo, error) {
	if strings.TrimSpace(path) == "" {
		return policyFileInfo{}, fmt.Errorf("empty path")
	}
	loaded, err := policy.NewLoader(path, false).Load(ctx)
	if err != nil {
		return policyFileInfo{}, err
	}
	return policyFileInfo{
		Path:     path,
		Filename: filepath.Base(path),
		Version:  loaded.Policy.Version,
		SHA256:   loaded.SHA256,
	}, nil
}
