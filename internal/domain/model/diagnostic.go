package model

// Severity 表示一条诊断的严重级别。
type Severity string

const (
	// SeverityError 表示阻断发布的错误（退出码非 0）。
	SeverityError Severity = "error"
	// SeverityWarning 表示不阻断发布的提示。
	SeverityWarning Severity = "warning"
)

// DiagnosticKind 表示诊断所属的问题类别。
type DiagnosticKind string

const (
	// KindStructural 表示记录或顶层文档形态不符合最低类型要求。
	KindStructural DiagnosticKind = "structural"
	// KindMissingField 表示缺少必填字段。
	KindMissingField DiagnosticKind = "missing_field"
	// KindField 表示已存在字段的类型/格式/枚举取值不合法。
	KindField DiagnosticKind = "field"
	// KindDuplicate 表示集合内或记录内唯一性被破坏。
	KindDuplicate DiagnosticKind = "duplicate"
	// KindReference 表示派生文件缺失或磁盘上存在未被引用的资产。
	KindReference DiagnosticKind = "reference"
	// KindFormat 表示资产字节不符合预期二进制签名/结构。
	KindFormat DiagnosticKind = "format"
)

// Stage 表示诊断产生的流水线阶段。
type Stage string

const (
	// StageRecord 表示单条记录校验阶段。
	StageRecord Stage = "record"
	// StageRegistry 表示集合级唯一性校验阶段。
	StageRegistry Stage = "registry"
	// StageAssets 表示资产交叉引用阶段。
	StageAssets Stage = "assets"
	// StageSmoke 表示线上冒烟检查阶段。
	StageSmoke Stage = "smoke"
)

// Diagnostic 表示一条校验结论。
//
// RecordIndex 为 -1 时表示诊断不挂靠具体记录（集合级或资产级）。
type Diagnostic struct {
	Severity    Severity       `json:"severity"`
	Kind        DiagnosticKind `json:"kind"`
	Stage       Stage          `json:"stage"`
	RecordIndex int            `json:"record_index"`
	Entity      string         `json:"entity"` // 例如 records[3].bridge 或 assets/foo.png
	Message     string         `json:"message"`
}

// Report 是一次校验运行的诊断累加器。
//
// 所有校验路径都向同一个 Report 追加，不中途终止；诊断顺序即追加顺序，
// 由调用方保证确定性（记录序在前、集合级居中、资产级最后）。
type Report struct {
	Diagnostics []Diagnostic `json:"diagnostics"`
	Errors      int          `json:"errors"`
	Warnings    int          `json:"warnings"`
}

// Append 追加一条诊断并更新计数。
func (r *Report) Append(d Diagnostic) {
	r.Diagnostics = append(r.Diagnostics, d)
	switch d.Severity {
	case SeverityError:
		r.Errors++
	case SeverityWarning:
		r.Warnings++
	}
}

// Merge 把另一个 Report 的诊断按序并入当前 Report。
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	for _, d := range other.Diagnostics {
		r.Append(d)
	}
}

// HasErrors 判断是否存在 error 级诊断（决定进程退出码）。
func (r *Report) HasErrors() bool {
	return r.Errors > 0
}
