package webapp

import (
	"net/http"
	"time"

	"github.com/ton-blockchain/wallets-list/internal/adapters/policy"
	"github.com/ton-blockchain/wallets-list/internal/adapters/registry"
	"github.com/ton-blockchain/wallets-list/internal/app"
)

func (s *Server) handleMeta(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	schemaVersion, _ := s.store.GetSchemaMetaValue(r.Context(), "schema_version")

	// 注册表文件可能正处于“改坏了待修”状态，meta 不能因此 500：
	// 坏文件用 error 字段透出，UI 据此提示用户先跑 validate。
	wallets := map[string]any{
		"path": s.opts.WalletsPath,
	}
	if reg, err := registry.NewLoader(s.opts.WalletsPath).Load(r.Context()); err != nil {
		wallets["error"] = err.Error()
	} else {
		wallets["sha256"] = reg.SHA256
		wallets["record_count"] = reg.RecordCount()
	}

	policyPath := s.activePolicyPath(r.Context())
	pol := map[string]any{
		"path": policyPath,
	}
	if loaded, err := policy.NewLoader(policyPath, true).Load(r.Context()); err != nil {
		pol["error"] = err.Error()
	} else {
		pol["version"] = loaded.Policy.Version
		pol["sha256"] = loaded.SHA256
		pol["edge_pixels"] = loaded.Policy.Assets.EdgePixels
		pol["enforce_dimensions"] = loaded.Policy.Assets.EnforceDimensions
		pol["strict_orphans"] = loaded.Policy.Assets.StrictOrphans
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"time": time.Now().Unix(),
		"app": map[string]any{
			"version":    app.Version,
			"commit":     app.Commit,
			"build_time": app.BuildTime,
		},
		"db": map[string]any{
			"schema_version": schemaVersion,
			"path":           s.opts.DBPath,
		},
		"wallets":    wallets,
		"policy":     pol,
		"assets_dir": s.opts.AssetsDir,
		"report_dir": s.opts.ReportDir,
	})
}
