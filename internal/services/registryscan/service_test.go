package registryscan

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	sqliteadapter "github.com/ton-blockchain/wallets-list/internal/adapters/store/sqlite"
	"github.com/ton-blockchain/wallets-list/internal/domain/model"
)

const validWalletsJSON = `[
  {
    "app_name": "tonkeeper",
    "name": "Tonkeeper",
    "image": "https://tonkeeper.com/assets/tonconnect-icon.png",
    "about_url": "https://tonkeeper.com",
    "universal_url": "https://app.tonkeeper.com/ton-connect",
    "bridge": [
      {"type": "sse", "url": "https://bridge.tonapi.io/bridge"},
      {"type": "js", "key": "tonkeeper"}
    ],
    "platforms": ["ios", "android", "chrome", "firefox"],
    "features": [
      {"name": "SendTransaction", "maxMessages": 4, "extraCurrencySupported": true},
      {"name": "SignData", "types": ["text", "binary", "cell"]}
    ]
  }
]`

func pngBytes(width, height uint32) []byte {
	b := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	b = append(b, 0, 0, 0, 13)
	b = append(b, 'I', 'H', 'D', 'R')
	b = binary.BigEndian.AppendUint32(b, width)
	b = binary.BigEndian.AppendUint32(b, height)
	b = append(b, 8, 6, 0, 0, 0)
	return b
}

const testPolicyYAML = `version: "1"
assets:
  edge_pixels: 288
  enforce_dimensions: true
  strict_orphans: true
`

type fixture struct {
	walletsPath string
	assetsDir   string
	policyPath  string
	dbPath      string
	reportDir   string
}

func newFixture(t *testing.T, walletsJSON string) fixture {
	t.Helper()
	tmp := t.TempDir()
	f := fixture{
		walletsPath: filepath.Join(tmp, "wallets-v2.json"),
		assetsDir:   filepath.Join(tmp, "assets"),
		policyPath:  filepath.Join(tmp, "registry-policy.yaml"),
		dbPath:      filepath.Join(tmp, "data", "registry.db"),
		reportDir:   filepath.Join(tmp, "data", "reports"),
	}
	if err := os.WriteFile(f.walletsPath, []byte(walletsJSON), 0o644); err != nil {
		t.Fatalf("write wallets: %v", err)
	}
	if err := os.WriteFile(f.policyPath, []byte(testPolicyYAML), 0o644); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	if err := os.MkdirAll(f.assetsDir, 0o755); err != nil {
		t.Fatalf("mkdir assets: %v", err)
	}
	return f
}

func (f fixture) options() Options {
	return Options{
		WalletsPath: f.walletsPath,
		AssetsDir:   f.assetsDir,
		PolicyPath:  f.policyPath,
		DBPath:      f.dbPath,
		ReportDir:   f.reportDir,
	}
}

func TestRunPassesOnValidRegistry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, validWalletsJSON)
	if err := os.WriteFile(filepath.Join(f.assetsDir, "tonkeeper.png"), pngBytes(288, 288), 0o644); err != nil {
		t.Fatalf("write asset: %v", err)
	}

	res, err := Run(ctx, f.options())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != model.RunPassed {
		t.Fatalf("status = %s, want passed; diagnostics: %+v", res.Status, res.Diagnostics)
	}
	if res.ErrorCount != 0 || res.WarningCount != 0 {
		t.Fatalf("errors=%d warnings=%d, want 0/0", res.ErrorCount, res.WarningCount)
	}
	if res.RecordCount != 1 {
		t.Fatalf("record_count = %d, want 1", res.RecordCount)
	}
	if res.WalletsSHA256 == "" {
		t.Fatalf("wallets sha not computed")
	}

	// 报告落盘且 JSON 可解析。
	raw, err := os.ReadFile(res.ReportJSONPath)
	if err != nil {
		t.Fatalf("read json report: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("parse json report: %v", err)
	}
	summary, ok := payload["summary"].(map[string]any)
	if !ok || summary["status"] != "passed" {
		t.Fatalf("unexpected summary: %+v", payload["summary"])
	}
	if _, err := os.Stat(res.ReportHTMLPath); err != nil {
		t.Fatalf("stat html report: %v", err)
	}

	// 运行落入历史库并接上链。
	db, err := sqliteadapter.Open(ctx, f.dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()
	store := sqliteadapter.NewStore(db)
	info, err := store.GetRun(ctx, res.RunID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if info == nil {
		t.Fatalf("run %s not persisted", res.RunID)
	}
	if info.ChainHash == "" {
		t.Fatalf("chain hash empty")
	}
	if info.Status != model.RunPassed {
		t.Fatalf("persisted status = %s", info.Status)
	}
}

func TestRunFailsAndKeepsFullDiagnosticList(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, `[
		{"app_name": "tonkeeper", "name": "Tonkeeper"},
		{"app_name": "tonkeeper", "name": "Clone", "image": "https://x.example/i.png"}
	]`)

	res, err := Run(ctx, f.options())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != model.RunFailed {
		t.Fatalf("status = %s, want failed", res.Status)
	}
	if res.ErrorCount == 0 {
		t.Fatalf("expected errors, got none")
	}

	var stages []model.Stage
	for _, d := range res.Diagnostics {
		stages = append(stages, d.Stage)
	}
	var hasRecord, hasRegistry, hasAssets bool
	for _, s := range stages {
		switch s {
		case model.StageRecord:
			hasRecord = true
		case model.StageRegistry:
			hasRegistry = true
		case model.StageAssets:
			hasAssets = true
		}
	}
	if !hasRecord || !hasRegistry || !hasAssets {
		t.Fatalf("diagnostic list incomplete (record=%v registry=%v assets=%v): %+v",
			hasRecord, hasRegistry, hasAssets, res.Diagnostics)
	}

	// 诊断也进了历史库。
	db, err := sqliteadapter.Open(ctx, f.dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()
	diags, err := sqliteadapter.NewStore(db).ListRunDiagnostics(ctx, res.RunID)
	if err != nil {
		t.Fatalf("list diagnostics: %v", err)
	}
	if len(diags) != len(res.Diagnostics) {
		t.Fatalf("persisted %d diagnostics, want %d", len(diags), len(res.Diagnostics))
	}
}

func TestRunSkipFlags(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, validWalletsJSON)
	if err := os.WriteFile(filepath.Join(f.assetsDir, "tonkeeper.png"), pngBytes(64, 64), 0o644); err != nil {
		t.Fatalf("write asset: %v", err)
	}
	if err := os.WriteFile(filepath.Join(f.assetsDir, "leftover.png"), pngBytes(288, 288), 0o644); err != nil {
		t.Fatalf("write orphan: %v", err)
	}

	opts := f.options()
	opts.NoHistory = true
	opts.NoReports = true

	res, err := Run(ctx, opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ErrorCount != 2 {
		t.Fatalf("baseline errors = %d, want 2 (dimensions + orphan): %+v", res.ErrorCount, res.Diagnostics)
	}

	opts.SkipDimensions = true
	res, err = Run(ctx, opts)
	if err != nil {
		t.Fatalf("Run skip dimensions: %v", err)
	}
	if res.ErrorCount != 1 {
		t.Fatalf("skip-dimensions errors = %d, want 1: %+v", res.ErrorCount, res.Diagnostics)
	}

	opts.SkipOrphans = true
	res, err = Run(ctx, opts)
	if err != nil {
		t.Fatalf("Run skip orphans: %v", err)
	}
	if res.ErrorCount != 0 {
		t.Fatalf("skip-both errors = %d, want 0: %+v", res.ErrorCount, res.Diagnostics)
	}
	if res.Status != model.RunPassed {
		t.Fatalf("status = %s, want passed", res.Status)
	}

	opts.SkipAssets = true
	opts.SkipDimensions = false
	opts.SkipOrphans = false
	res, err = Run(ctx, opts)
	if err != nil {
		t.Fatalf("Run skip assets: %v", err)
	}
	if res.ErrorCount != 0 {
		t.Fatalf("skip-assets errors = %d, want 0: %+v", res.ErrorCount, res.Diagnostics)
	}
	if res.ReportJSONPath != "" {
		t.Fatalf("reports should be skipped, got %s", res.ReportJSONPath)
	}
}

func TestRunUnreadableRegistryIsFatal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, `{"not": "an array"}`)

	opts := f.options()
	opts.NoHistory = true
	if _, err := Run(ctx, opts); err == nil {
		t.Fatalf("expected fatal error for non-array document")
	}

	opts.WalletsPath = filepath.Join(t.TempDir(), "missing.json")
	if _, err := Run(ctx, opts); err == nil {
		t.Fatalf("expected fatal error for missing file")
	}
}
