package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ton-blockchain/wallets-list/internal/domain/model"
	"github.com/ton-blockchain/wallets-list/internal/platform/hash"
	"github.com/ton-blockchain/wallets-list/internal/platform/id"
)

// Store 封装运行历史的 SQLite 读写逻辑。
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetSchemaMetaValue 查询 schema_meta 表指定 key 的 value。
func (s *Store) GetSchemaMetaValue(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `
		SELECT value
		FROM schema_meta
		WHERE key = ?
		LIMIT 1
	`, key).Scan(&v)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("query schema_meta %s: %w", key, err)
	}
	return v, nil
}

// UpsertSchemaMetaValue 写入或更新 schema_meta 表指定 key 的 value。
// 用于记录 Web UI 的运行期设置（例如当前启用的策略文件路径）。
func (s *Store) UpsertSchemaMetaValue(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO schema_meta(key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("upsert schema_meta %s: %w", key, err)
	}
	return nil
}

// SaveRun 写入一次运行及其全部诊断，并把运行接到哈希链上。
// info.RunID 为空时自动生成；ChainPrevHash/ChainHash 由本方法填充。
func (s *Store) SaveRun(ctx context.Context, info *model.RunInfo, diags []model.Diagnostic) error {
	now := time.Now().Unix()
	if info.RunID == "" {
		info.RunID = id.New("run")
	}
	if info.StartedAt <= 0 {
		info.StartedAt = now
	}
	if info.FinishedAt <= 0 {
		info.FinishedAt = now
	}

	prev := ""
	err := s.db.QueryRowContext(ctx, `
		SELECT chain_hash
		FROM runs
		ORDER BY started_at DESC, run_id DESC
		LIMIT 1
	`).Scan(&prev)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("query previous chain hash: %w", err)
	}

	info.ChainPrevHash = prev
	info.ChainHash = runChainHash(prev, info)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx save run: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs(
			run_id, started_at, finished_at, wallets_path, wallets_sha256,
			assets_dir, policy_sha256, record_count, error_count, warning_count,
			status, generator_version, chain_prev_hash, chain_hash, created_at
		)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		info.RunID,
		info.StartedAt,
		info.FinishedAt,
		info.WalletsPath,
		info.WalletsSHA256,
		nullIfEmpty(info.AssetsDir),
		nullIfEmpty(info.PolicySHA256),
		info.RecordCount,
		info.ErrorCount,
		info.WarningCount,
		string(info.Status),
		nullIfEmpty(info.GeneratorVersion),
		nullIfEmpty(info.ChainPrevHash),
		info.ChainHash,
		now,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if len(diags) > 0 {
		var stmt *sql.Stmt
		stmt, err = tx.PrepareContext(ctx, `
			INSERT INTO run_diagnostics(
				diag_id, run_id, seq, severity, kind, stage,
				record_index, entity, message, created_at
			)
			VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("prepare insert diagnostics: %w", err)
		}
		defer stmt.Close()

		for i, d := range diags {
			_, err = stmt.ExecContext(ctx,
				id.New("diag"),
				info.RunID,
				i,
				string(d.Severity),
				string(d.Kind),
				string(d.Stage),
				d.RecordIndex,
				d.Entity,
				d.Message,
				now,
			)
			if err != nil {
				return fmt.Errorf("insert diagnostic %d: %w", i, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit save run: %w", err)
	}
	return nil
}

// runChainHash 计算运行链哈希。字段集合一旦变更，历史链校验会全部失效，
// 所以新增列时只能追加到末尾并升级 schema_version。
func runChainHash(prev string, info *model.RunInfo) string {
	return hash.Text(
		prev,
		info.RunID,
		info.WalletsSHA256,
		fmt.Sprintf("%d", info.StartedAt),
		string(info.Status),
		fmt.Sprintf("%d", info.ErrorCount),
		fmt.Sprintf("%d", info.WarningCount),
	)
}

const runColumns = `
	run_id, started_at, finished_at, wallets_path, wallets_sha256,
	COALESCE(assets_dir, ''), COALESCE(policy_sha256, ''),
	record_count, error_count, warning_count, status,
	COALESCE(generator_version, ''), COALESCE(chain_prev_hash, ''), chain_hash
`

// ListRuns 返回运行历史，按开始时间倒序。
func (s *Store) ListRuns(ctx context.Context, q model.RunQuery) ([]model.RunInfo, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	var (
		rows *sql.Rows
		err  error
	)
	if q.Status == "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT `+runColumns+`
			FROM runs
			ORDER BY started_at DESC, run_id DESC
			LIMIT ? OFFSET ?
		`, limit, offset)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT `+runColumns+`
			FROM runs
			WHERE status = ?
			ORDER BY started_at DESC, run_id DESC
			LIMIT ? OFFSET ?
		`, string(q.Status), limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	return collectRuns(rows)
}

// ListRunsChrono 返回全部运行，按开始时间升序。历史链校验按此顺序重算。
func (s *Store) ListRunsChrono(ctx context.Context) ([]model.RunInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		ORDER BY started_at ASC, run_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs chrono: %w", err)
	}
	defer rows.Close()

	return collectRuns(rows)
}

func collectRuns(rows *sql.Rows) ([]model.RunInfo, error) {
	var out []model.RunInfo
	for rows.Next() {
		var item model.RunInfo
		var status string
		if err := rows.Scan(
			&item.RunID,
			&item.StartedAt,
			&item.FinishedAt,
			&item.WalletsPath,
			&item.WalletsSHA256,
			&item.AssetsDir,
			&item.PolicySHA256,
			&item.RecordCount,
			&item.ErrorCount,
			&item.WarningCount,
			&status,
			&item.GeneratorVersion,
			&item.ChainPrevHash,
			&item.ChainHash,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		item.Status = model.RunStatus(status)
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	if out == nil {
		out = []model.RunInfo{}
	}
	return out, nil
}

// GetRun 按 run_id 查询运行索引；不存在时返回 (nil, nil)。
func (s *Store) GetRun(ctx context.Context, runID string) (*model.RunInfo, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		WHERE run_id = ?
		LIMIT 1
	`, runID)
	return scanRunInfo(row)
}

// LatestRun 返回最近一次运行；历史为空时返回 (nil, nil)。
func (s *Store) LatestRun(ctx context.Context) (*model.RunInfo, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		ORDER BY started_at DESC, run_id DESC
		LIMIT 1
	`)
	return scanRunInfo(row)
}

func scanRunInfo(row *sql.Row) (*model.RunInfo, error) {
	var item model.RunInfo
	var status string
	if err := row.Scan(
		&item.RunID,
		&item.StartedAt,
		&item.FinishedAt,
		&item.WalletsPath,
		&item.WalletsSHA256,
		&item.AssetsDir,
		&item.PolicySHA256,
		&item.RecordCount,
		&item.ErrorCount,
		&item.WarningCount,
		&status,
		&item.GeneratorVersion,
		&item.ChainPrevHash,
		&item.ChainHash,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query run info: %w", err)
	}
	item.Status = model.RunStatus(status)
	return &item, nil
}

// ListRunDiagnostics 返回一次运行的全部诊断，保持产出顺序。
func (s *Store) ListRunDiagnostics(ctx context.Context, runID string) ([]model.Diagnostic, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT severity, kind, stage, record_index, COALESCE(entity, ''), message
		FROM run_diagnostics
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query run diagnostics: %w", err)
	}
	defer rows.Close()

	var out []model.Diagnostic
	for rows.Next() {
		var item model.Diagnostic
		var severity, kind, stage string
		if err := rows.Scan(
			&severity,
			&kind,
			&stage,
			&item.RecordIndex,
			&item.Entity,
			&item.Message,
		); err != nil {
			return nil, fmt.Errorf("scan diagnostic: %w", err)
		}
		item.Severity = model.Severity(severity)
		item.Kind = model.DiagnosticKind(kind)
		item.Stage = model.Stage(stage)
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate diagnostics: %w", err)
	}
	if out == nil {
		out = []model.Diagnostic{}
	}
	return out, nil
}

// Stats 返回运行历史的按状态聚合统计。
func (s *Store) Stats(ctx context.Context) (model.RunStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*)
		FROM runs
		GROUP BY status
	`)
	if err != nil {
		return model.RunStats{}, fmt.Errorf("query run stats: %w", err)
	}
	defer rows.Close()

	var out model.RunStats
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return model.RunStats{}, fmt.Errorf("scan run stats: %w", err)
		}
		out.Total += n
		switch model.RunStatus(status) {
		case model.RunPassed:
			out.Passed += n
		case model.RunFailed:
			out.Failed += n
		}
	}
	if err := rows.Err(); err != nil {
		return model.RunStats{}, fmt.Errorf("iterate run stats: %w", err)
	}
	return out, nil
}

// 空字符串按 NULL 写入，避免无意义空值污染查询条件。
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
