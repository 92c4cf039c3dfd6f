package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/ton-blockchain/wallets-list/internal/domain/model"
	"github.com/ton-blockchain/wallets-list/internal/platform/hash"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, filepath.Join(t.TempDir(), "registry.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db)
}

func TestSchemaMetaRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	// 迁移脚本会写入初始版本号。
	v, err := store.GetSchemaMetaValue(ctx, "schema_version")
	if err != nil {
		t.Fatalf("get schema_version: %v", err)
	}
	if v == "" {
		t.Fatalf("schema_version not seeded by migration")
	}

	v, err = store.GetSchemaMetaValue(ctx, "no_such_key")
	if err != nil {
		t.Fatalf("get missing key: %v", err)
	}
	if v != "" {
		t.Fatalf("missing key = %q, want empty", v)
	}

	if err := store.UpsertSchemaMetaValue(ctx, "last_export", "run_01"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := store.UpsertSchemaMetaValue(ctx, "last_export", "run_02"); err != nil {
		t.Fatalf("update: %v", err)
	}
	v, err = store.GetSchemaMetaValue(ctx, "last_export")
	if err != nil {
		t.Fatalf("get after upsert: %v", err)
	}
	if v != "run_02" {
		t.Fatalf("value = %q, want run_02", v)
	}
}

func TestSaveRunChainsRuns(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	now := time.Now().Unix()

	first := model.RunInfo{
		StartedAt:     now - 60,
		FinishedAt:    now - 59,
		WalletsPath:   "wallets-v2.json",
		WalletsSHA256: "aaaa",
		RecordCount:   3,
		ErrorCount:    0,
		WarningCount:  1,
		Status:        model.RunPassed,
	}
	diags := []model.Diagnostic{
		{Severity: model.SeverityWarning, Kind: model.KindReference, Stage: model.StageAssets, RecordIndex: -1, Entity: "assets/old.png", Message: "Unused asset file: old.png"},
	}
	if err := store.SaveRun(ctx, &first, diags); err != nil {
		t.Fatalf("save first run: %v", err)
	}
	if first.RunID == "" {
		t.Fatalf("run_id not generated")
	}
	if first.ChainPrevHash != "" {
		t.Fatalf("first run should have empty prev hash, got %q", first.ChainPrevHash)
	}

	wantChain := hash.Text(
		"", first.RunID, "aaaa",
		fmt.Sprintf("%d", first.StartedAt),
		"passed", "0", "1",
	)
	if first.ChainHash != wantChain {
		t.Fatalf("chain hash = %q, want %q", first.ChainHash, wantChain)
	}

	second := model.RunInfo{
		StartedAt:     now,
		FinishedAt:    now + 1,
		WalletsPath:   "wallets-v2.json",
		WalletsSHA256: "bbbb",
		RecordCount:   3,
		ErrorCount:    2,
		WarningCount:  0,
		Status:        model.RunFailed,
	}
	if err := store.SaveRun(ctx, &second, nil); err != nil {
		t.Fatalf("save second run: %v", err)
	}
	if second.ChainPrevHash != first.ChainHash {
		t.Fatalf("second run prev = %q, want %q", second.ChainPrevHash, first.ChainHash)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	now := time.Now().Unix()

	for i := 0; i < 3; i++ {
		info := model.RunInfo{
			StartedAt:     now + int64(i),
			WalletsPath:   "wallets-v2.json",
			WalletsSHA256: fmt.Sprintf("sha-%d", i),
			Status:        model.RunPassed,
		}
		if err := store.SaveRun(ctx, &info, nil); err != nil {
			t.Fatalf("save run %d: %v", i, err)
		}
	}

	runs, err := store.ListRuns(ctx, model.RunQuery{})
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("got %d runs, want 3", len(runs))
	}
	if runs[0].WalletsSHA256 != "sha-2" || runs[2].WalletsSHA256 != "sha-0" {
		t.Fatalf("runs not newest-first: %+v", runs)
	}

	chrono, err := store.ListRunsChrono(ctx)
	if err != nil {
		t.Fatalf("list chrono: %v", err)
	}
	if chrono[0].WalletsSHA256 != "sha-0" || chrono[2].WalletsSHA256 != "sha-2" {
		t.Fatalf("chrono not oldest-first: %+v", chrono)
	}
}

func TestListRunsStatusFilter(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	now := time.Now().Unix()

	pass := model.RunInfo{StartedAt: now - 1, WalletsPath: "w.json", WalletsSHA256: "a", Status: model.RunPassed}
	fail := model.RunInfo{StartedAt: now, WalletsPath: "w.json", WalletsSHA256: "b", ErrorCount: 4, Status: model.RunFailed}
	if err := store.SaveRun(ctx, &pass, nil); err != nil {
		t.Fatalf("save pass: %v", err)
	}
	if err := store.SaveRun(ctx, &fail, nil); err != nil {
		t.Fatalf("save fail: %v", err)
	}

	failed, err := store.ListRuns(ctx, model.RunQuery{Status: model.RunFailed})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(failed) != 1 || failed[0].RunID != fail.RunID {
		t.Fatalf("status filter wrong: %+v", failed)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 2 || stats.Passed != 1 || stats.Failed != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestGetRunAndDiagnostics(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	info := model.RunInfo{
		StartedAt:     time.Now().Unix(),
		WalletsPath:   "wallets-v2.json",
		WalletsSHA256: "cccc",
		ErrorCount:    2,
		Status:        model.RunFailed,
	}
	diags := []model.Diagnostic{
		{Severity: model.SeverityError, Kind: model.KindMissingField, Stage: model.StageRecord, RecordIndex: 0, Entity: "records[0].image", Message: "Missing required field: image"},
		{Severity: model.SeverityError, Kind: model.KindDuplicate, Stage: model.StageRegistry, RecordIndex: -1, Entity: "app_name:foo", Message: "Duplicate app_name: foo (records 0, 2)"},
	}
	if err := store.SaveRun(ctx, &info, diags); err != nil {
		t.Fatalf("save run: %v", err)
	}

	got, err := store.GetRun(ctx, info.RunID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if got == nil || got.WalletsSHA256 != "cccc" || got.Status != model.RunFailed {
		t.Fatalf("unexpected run: %+v", got)
	}

	latest, err := store.LatestRun(ctx)
	if err != nil {
		t.Fatalf("latest run: %v", err)
	}
	if latest == nil || latest.RunID != info.RunID {
		t.Fatalf("latest mismatch: %+v", latest)
	}

	list, err := store.ListRunDiagnostics(ctx, info.RunID)
	if err != nil {
		t.Fatalf("list diagnostics: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d diagnostics, want 2", len(list))
	}
	if list[0].Stage != model.StageRecord || list[1].Stage != model.StageRegistry {
		t.Fatalf("diagnostics out of order: %+v", list)
	}
	if list[1].RecordIndex != -1 {
		t.Fatalf("record_index not preserved: %+v", list[1])
	}

	missing, err := store.GetRun(ctx, "run_does_not_exist")
	if err != nil {
		t.Fatalf("get missing run: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing run, got %+v", missing)
	}
}
