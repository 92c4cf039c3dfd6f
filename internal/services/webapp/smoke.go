package webapp

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ton-blockchain/wallets-list/internal/adapters/policy"
	"github.com/ton-blockchain/wallets-list/internal/services/smoketest"
)

// handleSmoke 对一个已部署的镜像站点跑线上冒烟检查。
//
// 统一用 POST：目标地址与附加端点列表放在 body 里，避免 URL 超长。
func (s *Server) handleSmoke(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	type reqBody struct {
		BaseURL         string   `json:"base_url"`
		ExpectedBaseURL string   `json:"expected_base_url,omitempty"`
		AssetsPrefix    string   `json:"assets_prefix,omitempty"`
		TimeoutSeconds  int      `json:"timeout_seconds,omitempty"`
		Endpoints       []string `json:"endpoints,omitempty"`
	}
	var req reqBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	if strings.TrimSpace(req.BaseURL) == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("base_url is required"))
		return
	}

	// 缺省参数跟着当前策略走，保证 UI 冒烟与 CI 冒烟口径一致。
	warnings := []string{}
	loaded, err := policy.NewLoader(s.activePolicyPath(r.Context()), true).Load(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	expected := strings.TrimSpace(req.ExpectedBaseURL)
	if expected == "" {
		expected = loaded.Policy.Proxy.BaseURL
		warnings = append(warnings, "expected_base_url not provided; fallback to policy proxy.base_url")
	}
	timeout := time.Duration(req.TimeoutSeconds) * time.Second
	if req.TimeoutSeconds <= 0 {
		timeout = time.Duration(loaded.Policy.Smoke.TimeoutSeconds) * time.Second
	}
	endpoints := req.Endpoints
	if len(endpoints) == 0 {
		endpoints = loaded.Policy.Smoke.ExtraEndpoints
	}

	res, err := smoketest.Run(r.Context(), smoketest.Options{
		BaseURL:         req.BaseURL,
		ExpectedBaseURL: expected,
		AssetsPrefix:    strings.TrimSpace(req.AssetsPrefix),
		Timeout:         timeout,
		ExtraEndpoints:  endpoints,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       res.Failed == 0,
		"result":   res,
		"warnings": warnings,
	})
}
