package model

// RunStatus 表示一次校验运行的最终状态。
type RunStatus string

const (
	// RunPassed 表示运行无 error 级诊断。
	RunPassed RunStatus = "passed"
	// RunFailed 表示运行存在至少一条 error 级诊断。
	RunFailed RunStatus = "failed"
)

// RunInfo 表示一次校验运行的索引信息（对应 runs 表）。
type RunInfo struct {
	RunID            string    `json:"run_id"`
	StartedAt        int64     `json:"started_at"`
	FinishedAt       int64     `json:"finished_at"`
	WalletsPath      string    `json:"wallets_path"`
	WalletsSHA256    string    `json:"wallets_sha256"`
	AssetsDir        string    `json:"assets_dir,omitempty"`
	PolicySHA256     string    `json:"policy_sha256,omitempty"`
	RecordCount      int       `json:"record_count"`
	ErrorCount       int       `json:"error_count"`
	WarningCount     int       `json:"warning_count"`
	Status           RunStatus `json:"status"`
	GeneratorVersion string    `json:"generator_version,omitempty"`

	// 运行历史链路哈希：chain_hash = sha256(prev, run_id, wallets_sha256,
	// started_at, status, error_count, warning_count)。
	ChainPrevHash string `json:"chain_prev_hash,omitempty"`
	ChainHash     string `json:"chain_hash,omitempty"`
}

// RunQuery 是运行历史列表查询参数。
type RunQuery struct {
	Limit  int
	Offset int
	Status RunStatus // 为空表示不过滤
}

// RunOverview 是单次运行的聚合视图（CLI history show 与 /api/runs/{id} 共用）。
type RunOverview struct {
	Info        RunInfo      `json:"info"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

// RunStats 是运行历史的按状态聚合统计。
type RunStats struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}
