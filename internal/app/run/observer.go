package run

import (
	"time"

	"github.com/John-Robertt/imgopt/internal/config"
	"github.com/John-Robertt/imgopt/internal/domain"
)

// Observer 用于把“运行进度/阶段/条目结果”从核心执行流程中解耦出来。
//
// 约束：run 包只负责发事件，不做任何输出（输出格式由 CLI 决定）。
// 批处理严格串行，事件总在调用 Execute 的 goroutine 上发出。
type Observer interface {
	// OnStart 在 ExecuteWithObserver 开始时调用。
	OnStart(eff config.EffectiveConfig)
	// OnPhaseDone 在阶段结束时调用（scan / exec / refs）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnItemDone 在每个文件处理完成时调用（含跳过的文件）。
	OnItemDone(idx, total int, res domain.ItemResult, dur time.Duration)
}
