package runview

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	sqliteadapter "github.com/ton-blockchain/wallets-list/internal/adapters/store/sqlite"
	"github.com/ton-blockchain/wallets-list/internal/app"
	"github.com/ton-blockchain/wallets-list/internal/domain/model"
	"github.com/ton-blockchain/wallets-list/internal/services/historyverify"

	_ "modernc.org/sqlite"
)

// HistoryView 是运行历史列表查询结果。
type HistoryView struct {
	Stats model.RunStats  `json:"stats"`
	Runs  []model.RunInfo `json:"runs"`
}

// openRead 以只读语义打开历史库：文件不存在时直接报错而不是建一个空库。
func openRead(ctx context.Context, dbPath string) (*sql.DB, error) {
	if dbPath == "" {
		dbPath = app.DefaultConfig().DBPath
	}
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("run history not found: %s", dbPath)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	return db, nil
}

// GetHistoryView 查询运行历史列表与聚合统计（用于 CLI history 与 UI 首页）。
func GetHistoryView(ctx context.Context, dbPath string, q model.RunQuery) (*HistoryView, error) {
	db, err := openRead(ctx, dbPath)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	store := sqliteadapter.NewStore(db)
	stats, err := store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	runs, err := store.ListRuns(ctx, q)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []model.RunInfo{}
	}

	return &HistoryView{
		Stats: stats,
		Runs:  runs,
	}, nil
}

// GetRunView 查询单次运行的索引信息与全部诊断明细。
// runID 为空时返回最新一次运行。
func GetRunView(ctx context.Context, dbPath, runID string) (*model.RunOverview, error) {
	db, err := openRead(ctx, dbPath)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	store := sqliteadapter.NewStore(db)

	var info *model.RunInfo
	if runID != "" {
		info, err = store.GetRun(ctx, runID)
	} else {
		info, err = store.LatestRun(ctx)
	}
	if err != nil {
		return nil, err
	}
	if info == nil {
		if runID != "" {
			return nil, fmt.Errorf("run not found: %s", runID)
		}
		return nil, fmt.Errorf("no runs recorded yet")
	}

	diags, err := store.ListRunDiagnostics(ctx, info.RunID)
	if err != nil {
		return nil, err
	}
	if diags == nil {
		diags = []model.Diagnostic{}
	}

	return &model.RunOverview{
		Info:        *info,
		Diagnostics: diags,
	}, nil
}

// VerifyHistory 对整条运行历史链做强校验。
func VerifyHistory(ctx context.Context, dbPath string) (*historyverify.Result, error) {
	db, err := openRead(ctx, dbPath)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	store := sqliteadapter.NewStore(db)
	runs, err := store.ListRunsChrono(ctx)
	if err != nil {
		return nil, err
	}

	res := historyverify.VerifyRuns(runs)
	return &res, nil
}
