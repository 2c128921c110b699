package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

const (
	StatusProcessed          = "processed"
	StatusSkippedUnsupported = "skipped_unsupported"
	StatusSkippedError       = "skipped_error"
)

const (
	ErrCodeUnsupportedExt      = "unsupported_ext"
	ErrCodeUnrecognizedContent = "unrecognized_content"
	ErrCodeDecodeFailed        = "decode_failed"
	ErrCodeEncodeFailed        = "encode_failed"
	ErrCodePathConflict        = "path_conflict"
	ErrCodeCrossDevice         = "cross_device"
	ErrCodeIOFailed            = "io_failed"
	ErrCodeRootNotFound        = "root_not_found"
	ErrCodeConfigInvalid       = "config_invalid"
)

// RunReport 是一次批处理的完整结果（不跨运行持久化；--report 只是导出）。
type RunReport struct {
	Root string `json:"root"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Items   []ItemResult  `json:"items"`

	Changes     []PathChange `json:"changes"`
	UpdatedRefs []string     `json:"updated_refs"`
}

type ReportSummary struct {
	Processed          int   `json:"processed"`
	SkippedUnsupported int   `json:"skipped_unsupported"`
	SkippedError       int   `json:"skipped_error"`
	BytesBefore        int64 `json:"bytes_before"`
	BytesAfter         int64 `json:"bytes_after"`
}

// ItemResult 是单个文件的结果变体：processed / skipped_unsupported / skipped_error(reason)。
type ItemResult struct {
	Src string `json:"src"`
	Dst string `json:"dst"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`

	Plan PlanKind `json:"plan,omitempty"`

	WidthBefore int `json:"width_before,omitempty"`
	WidthAfter  int `json:"width_after,omitempty"`

	SizeBefore int64 `json:"size_before"`
	SizeAfter  int64 `json:"size_after"`
}

// Moved 报告该条目的最终路径是否与原路径不同。
func (it ItemResult) Moved() bool { return it.Dst != "" && it.Dst != it.Src }

// Finalize 做三件事：
// 1) 时间统一为 UTC
// 2) items 稳定排序：按 src 字典序
// 3) summary 由 items 计算得出
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Items, func(i, j int) bool { return r.Items[i].Src < r.Items[j].Src })

	var s ReportSummary
	for _, it := range r.Items {
		switch it.Status {
		case StatusProcessed:
			s.Processed++
			s.BytesBefore += it.SizeBefore
			s.BytesAfter += it.SizeAfter
		case StatusSkippedUnsupported:
			s.SkippedUnsupported++
		case StatusSkippedError:
			s.SkippedError++
		}
	}
	r.Summary = s

	if r.Changes == nil {
		r.Changes = []PathChange{}
	}
	if r.UpdatedRefs == nil {
		r.UpdatedRefs = []string{}
	}
}

// MarshalJSON 集中约束输出稳定性：nil slice 一律输出为 []。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	a := Alias(r)
	if a.Items == nil {
		a.Items = []ItemResult{}
	}
	if a.Changes == nil {
		a.Changes = []PathChange{}
	}
	if a.UpdatedRefs == nil {
		a.UpdatedRefs = []string{}
	}
	return json.Marshal(a)
}

// FormatMB 把字节数格式化为 MiB，保留两位小数（"1.50"）。
func FormatMB(n int64) string {
	return fmt.Sprintf("%.2f", float64(n)/(1024*1024))
}
