package webapp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ton-blockchain/wallets-list/internal/platform/id"
	"github.com/ton-blockchain/wallets-list/internal/services/registryscan"
)

type jobManager struct {
	mu   sync.Mutex
	jobs map[string]*validateJob
}

func newJobManager() *jobManager {
	return &jobManager{jobs: make(map[string]*validateJob)}
}

type validateJob struct {
	JobID      string `json:"job_id"`
	Kind       string `json:"kind"`
	Status     string `json:"status"` // running|success|failed
	CreatedAt  int64  `json:"created_at"`
	StartedAt  int64  `json:"started_at"`
	FinishedAt int64  `json:"finished_at"`

	// Stage/Progress/Logs 是给前端“控制台”用的轻量字段：
	// 校验本身是一次串行调用，进度只有粗粒度节点，但 UI 至少能展示
	// 当前阶段与实时日志。
	Stage    string       `json:"stage,omitempty"`    // validate|finished
	Progress int          `json:"progress,omitempty"` // 0-100
	Logs     []jobLogLine `json:"logs,omitempty"`

	RunID string `json:"run_id,omitempty"`

	Result *registryscan.Result `json:"result,omitempty"`

	Error string `json:"error,omitempty"`
}

type jobLogLine struct {
	Time    int64  `json:"time"`
	Message string `json:"message"`
}

func (m *jobManager) put(job *validateJob) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.JobID] = job
}

func (m *jobManager) getCopy(jobID string) (validateJob, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok || j == nil {
		return validateJob{}, false
	}
	cpy := *j
	// 深拷贝 slice，避免解锁后后台 goroutine append 导致 data race。
	if len(cpy.Logs) > 0 {
		tmp := make([]jobLogLine, len(cpy.Logs))
		copy(tmp, cpy.Logs)
		cpy.Logs = tmp
	}
	return cpy, true
}

func (m *jobManager) listCopies() []validateJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]validateJob, 0, len(m.jobs))
	for _, j := range m.jobs {
		if j == nil {
			continue
		}
		cpy := *j
		if len(cpy.Logs) > 0 {
			tmp := make([]jobLogLine, len(cpy.Logs))
			copy(tmp, cpy.Logs)
			cpy.Logs = tmp
		}
		out = append(out, cpy)
	}
	return out
}

type validateRequest struct {
	WalletsPath string `json:"wallets_path,omitempty"`
	AssetsDir   string `json:"assets_dir,omitempty"`
	PolicyPath  string `json:"policy_path,omitempty"`

	// 校验范围控制（UI 勾选项对齐）
	SkipAssets     *bool `json:"skip_assets,omitempty"`
	SkipDimensions *bool `json:"skip_dimensions,omitempty"`
	SkipOrphans    *bool `json:"skip_orphans,omitempty"`
}

func (s *Server) handleJobValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}

	walletsPath := strings.TrimSpace(req.WalletsPath)
	if walletsPath == "" {
		walletsPath = s.opts.WalletsPath
	}
	assetsDir := strings.TrimSpace(req.AssetsDir)
	if assetsDir == "" {
		assetsDir = s.opts.AssetsDir
	}
	policyPath := strings.TrimSpace(req.PolicyPath)
	if policyPath == "" {
		// UI 里切换过策略文件时，后台任务要跟着用切换后的文件。
		policyPath = s.activePolicyPath(r.Context())
	}

	skipAssets := false
	if req.SkipAssets != nil {
		skipAssets = *req.SkipAssets
	}
	skipDimensions := false
	if req.SkipDimensions != nil {
		skipDimensions = *req.SkipDimensions
	}
	skipOrphans := false
	if req.SkipOrphans != nil {
		skipOrphans = *req.SkipOrphans
	}

	jobID := id.New("job")
	now := time.Now().Unix()
	job := &validateJob{
		JobID:     jobID,
		Kind:      "validate",
		Status:    "running",
		CreatedAt: now,
		StartedAt: now,
		Stage:     "validate",
		Progress:  1,
		Logs: []jobLogLine{{
			Time:    now,
			Message: "job created",
		}},
	}
	s.jobs.put(job)

	// 先返回一份拷贝，避免后台 goroutine 修改同一对象导致数据竞争。
	resp := *job

	go func() {
		ctx := context.Background()

		// 内部辅助：追加一条 job 日志并更新 stage/progress（带锁，避免 data race）
		update := func(stage string, progress int, msg string) {
			s.jobs.mu.Lock()
			defer s.jobs.mu.Unlock()
			if stage != "" {
				job.Stage = stage
			}
			if progress >= 0 {
				job.Progress = progress
			}
			if strings.TrimSpace(msg) != "" {
				job.Logs = append(job.Logs, jobLogLine{
					Time:    time.Now().Unix(),
					Message: msg,
				})
			}
		}

		update("validate", 5, fmt.Sprintf("validation starting: %s", walletsPath))

		res, err := registryscan.Run(ctx, registryscan.Options{
			WalletsPath:    walletsPath,
			AssetsDir:      assetsDir,
			PolicyPath:     policyPath,
			DBPath:         s.opts.DBPath,
			ReportDir:      s.opts.ReportDir,
			SkipAssets:     skipAssets,
			SkipDimensions: skipDimensions,
			SkipOrphans:    skipOrphans,
		})

		s.jobs.mu.Lock()
		defer s.jobs.mu.Unlock()
		job.Stage = "finished"
		job.Progress = 100
		job.FinishedAt = time.Now().Unix()

		if err != nil {
			// 只有输入文档不可读/不可解析才会走到这里；校验出问题仍是正常完成。
			job.Status = "failed"
			job.Error = err.Error()
			job.Logs = append(job.Logs, jobLogLine{Time: time.Now().Unix(), Message: "validation failed: " + err.Error()})
			return
		}

		job.Status = "success"
		job.RunID = res.RunID
		job.Result = res
		job.Logs = append(job.Logs, jobLogLine{
			Time: time.Now().Unix(),
			Message: fmt.Sprintf("validation finished: %s (errors=%d, warnings=%d)",
				res.Status, res.ErrorCount, res.WarningCount),
		})
	}()

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleJobRoutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	rest = strings.Trim(rest, "/")
	if rest == "" {
		// 简单返回全部 job（后续可加 limit/排序）
		writeJSON(w, http.StatusOK, map[string]any{
			"jobs": s.jobs.listCopies(),
		})
		return
	}

	job, ok := s.jobs.getCopy(rest)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("job not found: %s", rest))
		return
	}
	writeJSON(w, http.StatusOK, job)
}
