package run

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/John-Robertt/imgopt/internal/app/classify"
	"github.com/John-Robertt/imgopt/internal/app/refs"
	"github.com/John-Robertt/imgopt/internal/app/transcode"
	"github.com/John-Robertt/imgopt/internal/config"
	"github.com/John-Robertt/imgopt/internal/domain"
	"github.com/John-Robertt/imgopt/internal/infra/fsx"
	"github.com/John-Robertt/imgopt/internal/infra/imgx"
	"github.com/John-Robertt/imgopt/internal/scan"
)

// Error 是中止整批处理的致命错误（带 error_code）。
// 逐文件的解码/探测失败不会产生 Error，而是记为 skipped_error。
type Error struct {
	Code string
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("%s：%v", e.Code, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Execute 执行一次批处理，返回本次运行的 RunReport。
func Execute(ctx context.Context, eff config.EffectiveConfig, log zerolog.Logger) (domain.RunReport, error) {
	return ExecuteWithObserver(ctx, eff, log, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 输出进度/阶段信息。
//
// 流程（严格串行）：walk -> 逐文件 classify -> transcode -> 汇总路径变化 -> 改写引用。
//
// 返回的 error 仅表示致命错误：根目录不存在、引用改写 I/O 失败、ctx 取消。
// 单个文件的解码/编码/写入失败只记为 skipped_error，批处理继续。
// 出错时 RunReport 仍包含已经处理完的条目（已完成的文件不会回滚）。
// ctx 只在文件之间检查，单个文件一旦开始就会处理完。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, log zerolog.Logger, obs Observer) (domain.RunReport, error) {
	if obs != nil {
		obs.OnStart(eff)
	}

	rr := domain.RunReport{
		Root:      eff.Dir,
		StartedAt: time.Now().UTC(),
		Items:     make([]domain.ItemResult, 0, 128),
	}
	finish := func(err error) (domain.RunReport, error) {
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		return rr, err
	}

	scanStarted := time.Now()
	files, err := scan.Walk(eff.Dir)
	if err != nil {
		code := domain.ErrCodeIOFailed
		if errors.Is(err, scan.ErrRootNotFound) {
			code = domain.ErrCodeRootNotFound
		}
		return finish(&Error{Code: code, Err: err})
	}
	if obs != nil {
		obs.OnPhaseDone("scan", map[string]any{"files": len(files)}, time.Since(scanStarted))
	}

	execStarted := time.Now()
	for i, rec := range files {
		if err := ctx.Err(); err != nil {
			return finish(&Error{Code: domain.ErrCodeIOFailed, Err: err})
		}

		oneStarted := time.Now()
		res := processOne(rec, eff, log)
		rr.Items = append(rr.Items, res)
		if res.Status == domain.StatusProcessed && res.Moved() {
			rr.Changes = append(rr.Changes, refs.Change(eff.PublicDir, res.Src, res.Dst))
		}
		if obs != nil {
			obs.OnItemDone(i+1, len(files), res, time.Since(oneStarted))
		}
	}
	if obs != nil {
		obs.OnPhaseDone("exec", map[string]any{
			"items":   len(rr.Items),
			"changes": len(rr.Changes),
		}, time.Since(execStarted))
	}

	if eff.UpdateMDX && len(rr.Changes) > 0 {
		refsStarted := time.Now()
		updated, err := refs.Rewrite(afero.NewOsFs(), eff.PostsDir, eff.PostSuffix, rr.Changes)
		rr.UpdatedRefs = updated
		if err != nil {
			return finish(&Error{Code: domain.ErrCodeIOFailed, Err: fmt.Errorf("改写引用失败：%w", err)})
		}
		for _, p := range updated {
			log.Info().Str("file", p).Msg("已改写图片引用")
		}
		if obs != nil {
			obs.OnPhaseDone("refs", map[string]any{"updated": len(updated)}, time.Since(refsStarted))
		}
	}

	return finish(nil)
}

// processOne 处理单个文件；所有失败都体现在 ItemResult 的状态里，不会中止批处理。
func processOne(rec domain.FileRecord, eff config.EffectiveConfig, log zerolog.Logger) domain.ItemResult {
	res := domain.ItemResult{
		Src:        rec.AbsPath,
		SizeBefore: rec.Size,
	}

	if !classify.Supported(rec.Ext) {
		res.Status = domain.StatusSkippedUnsupported
		res.ErrorCode = domain.ErrCodeUnsupportedExt
		res.ErrorMsg = fmt.Sprintf("不支持的扩展名 %q", rec.Ext)
		log.Debug().Str("file", rec.RelPath).Msg("跳过非图片文件")
		return res
	}

	img, meta, err := imgx.Decode(rec.AbsPath)
	if err != nil {
		res.Status = domain.StatusSkippedError
		res.ErrorCode = domain.ErrCodeDecodeFailed
		if errors.Is(err, imgx.ErrUnrecognized) {
			res.ErrorCode = domain.ErrCodeUnrecognizedContent
		}
		res.ErrorMsg = err.Error()
		log.Warn().Err(err).Str("file", rec.RelPath).Msg("无法解码，跳过")
		return res
	}

	plan := classify.Plan(rec, meta, eff)
	res.Plan = plan.Kind
	res.WidthBefore = meta.Width

	oc, err := transcode.Apply(img, plan, eff.DeleteOriginal)
	if err != nil {
		res.Status = domain.StatusSkippedError
		res.ErrorCode = applyErrorCode(err)
		res.ErrorMsg = err.Error()
		log.Warn().Err(err).Str("file", rec.RelPath).Str("code", res.ErrorCode).Msg("写入失败，跳过")
		return res
	}
	if oc.RemoveErr != nil {
		log.Warn().Err(oc.RemoveErr).Str("file", rec.RelPath).Msg("删除原文件失败（已忽略）")
	}

	res.Status = domain.StatusProcessed
	res.Dst = oc.DstAbs
	res.SizeAfter = oc.SizeAfter
	res.WidthAfter = oc.WidthAfter
	log.Debug().
		Str("file", rec.RelPath).
		Str("plan", string(plan.Kind)).
		Int("width", meta.Width).
		Bool("alpha", meta.HasAlpha).
		Msg("已处理")
	return res
}

// applyErrorCode 把 transcode.Apply 的错误映射为 error_code。
func applyErrorCode(err error) string {
	var ee *transcode.EncodeError
	switch {
	case errors.As(err, &ee):
		return domain.ErrCodeEncodeFailed
	case fsx.IsPathTypeConflict(err):
		return domain.ErrCodePathConflict
	case fsx.IsCrossDevice(err):
		return domain.ErrCodeCrossDevice
	default:
		return domain.ErrCodeIOFailed
	}
}
