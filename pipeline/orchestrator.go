package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/assetflow/config"
	"github.com/BaSui01/assetflow/internal/ctxkeys"
	"github.com/BaSui01/assetflow/internal/telemetry"
	"github.com/BaSui01/assetflow/llm"
	"github.com/BaSui01/assetflow/pipeline/prompt"
	"github.com/BaSui01/assetflow/pipeline/sanitize"
	"github.com/BaSui01/assetflow/types"
)

// Generator 编排器依赖的厂商能力，由 *llm.Client 实现
type Generator interface {
	CheckModel(mod llm.Modality, model string) error
	GenerateText(ctx context.Context, prompt, role, model string) (string, error)
	GenerateImage(ctx context.Context, prompt, size, model string) (types.ImageRef, error)
	ConvertTo3D(ctx context.Context, image types.ImageRef, model string) (types.ModelRef, error)
	GenerateAudio(ctx context.Context, prompt, model string) (types.AudioRef, error)
}

// Recorder 编排指标，internal/metrics.Collector 实现了该接口
type Recorder interface {
	RecordStage(stage string, duration time.Duration)
	RecordArtifact(slot, kind string)
}

type nopRecorder struct{}

func (nopRecorder) RecordStage(string, time.Duration) {}
func (nopRecorder) RecordArtifact(string, string)     {}

// 文本阶段使用的 system 消息
const (
	designerRole = "You are a senior game designer. Answer in plain prose without markdown code fences."
	coderRole    = "You are an expert %s game programmer. Reply with one complete source file in a single code block."
)

// Orchestrator 按阶段顺序生成计划
type Orchestrator struct {
	gen         Generator
	templates   prompt.Templates
	concurrency int
	recorder    Recorder
	instruments *telemetry.PlanInstruments
	now         func() time.Time
	logger      *zap.Logger
}

// Option 配置 Orchestrator
type Option func(*Orchestrator)

// WithConcurrency 阶段内并发度，小于 1 时按 1 处理
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n < 1 {
			n = 1
		}
		o.concurrency = n
	}
}

// WithTemplates 替换 prompt 模板
func WithTemplates(t prompt.Templates) Option {
	return func(o *Orchestrator) { o.templates = t }
}

// WithRecorder 设置指标记录器
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithInstruments 设置 OTel 计数器
func WithInstruments(i *telemetry.PlanInstruments) Option {
	return func(o *Orchestrator) { o.instruments = i }
}

// WithClock 替换时钟（测试用）
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator 创建编排器
func NewOrchestrator(gen Generator, logger *zap.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		gen:         gen,
		templates:   prompt.DefaultTemplates(),
		concurrency: 1,
		recorder:    nopRecorder{},
		now:         time.Now,
		logger:      logger.With(zap.String("component", "orchestrator")),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// DefaultModels 从流水线配置读取默认模型
func DefaultModels(cfg config.PipelineConfig) Models {
	return Models{
		Chat:   cfg.DefaultChatModel,
		Image:  cfg.DefaultImageModel,
		Code:   cfg.DefaultCodeModel,
		ThreeD: cfg.DefaultThreeModel,
		Music:  cfg.DefaultMusicModel,
	}
}

// CheckModels 校验请求实际会用到的模型，不发起网络请求
func (o *Orchestrator) CheckModels(req Request) error {
	checks := []struct {
		need  bool
		mod   llm.Modality
		model string
	}{
		{req.needsChat(), llm.ModalityChat, req.Models.Chat},
		{req.ImageCount() > 0, llm.ModalityImage, req.Models.Image},
		{req.needsCode(), llm.ModalityCode, req.Models.Code},
		{req.ThreeDCount() > 0, llm.Modality3D, req.Models.ThreeD},
		{req.Music, llm.ModalityAudio, req.Models.Music},
	}
	for _, c := range checks {
		if !c.need {
			continue
		}
		if err := o.gen.CheckModel(c.mod, c.model); err != nil {
			return err
		}
	}
	return nil
}

// Run 执行一次完整运行。
// 配置错误在任何厂商调用之前返回 (nil, err)；取消时返回部分计划和 ErrCancelled；
// 其余情况下返回完整计划和 nil，条目级失败记录在计划中
func (o *Orchestrator) Run(ctx context.Context, req Request, progress ProgressFunc) (*Plan, error) {
	if err := o.CheckModels(req); err != nil {
		return nil, err
	}

	runID, ok := ctxkeys.RunID(ctx)
	if !ok {
		runID = uuid.NewString()
		ctx = ctxkeys.WithRunID(ctx, runID)
	}
	r := &run{
		o:        o,
		req:      req,
		plan:     newPlanBuilder(runID),
		progress: newProgressTracker(TotalItems(req), progress),
		logger:   o.logger.With(zap.String("run_id", runID)),
	}

	ctx, span := telemetry.StartSpan(ctx, "pipeline", "run", attribute.String("run_id", runID))
	start := o.now()
	r.logger.Info("plan run started", zap.Int("items", r.progress.total))

	err := r.execute(ctx)
	plan := r.plan.freeze(o.now())
	telemetry.EndSpan(span, err)

	if err != nil {
		r.logger.Warn("plan run cancelled",
			zap.Int("entries", plan.Len()),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return plan, err
	}
	if plan.IsEmpty() {
		r.progress.finish("nothing requested")
	} else {
		r.progress.finish("complete")
	}
	r.logger.Info("plan run finished",
		zap.Int("entries", plan.Len()),
		zap.Int("failures", len(plan.Failures())),
		zap.Duration("duration", time.Since(start)))
	return plan, nil
}

// =============================================================================
// 单次运行
// =============================================================================

type run struct {
	o        *Orchestrator
	req      Request
	plan     *planBuilder
	progress *progressTracker
	logger   *zap.Logger
}

// item 阶段内的一个厂商调用
type item struct {
	key   string
	label string
	do    func(ctx context.Context) (types.Artifact, error)
}

// step 一个阶段内写入同一 slot 的一批条目，build 在执行到该步时才调用
type step struct {
	stage Stage
	slot  Slot
	build func() []item
}

func (r *run) steps() []step {
	steps := []step{
		{StageConcept, SlotGameConcept, r.conceptItems},
		{StageWorld, SlotWorldConcept, r.worldItems},
		{StageCharacters, SlotCharacterConcepts, r.characterItems},
		{StagePlot, SlotPlot, r.plotItems},
		{StageImages, SlotImages, r.imageItems},
		{StageScripts, SlotScripts, r.scriptItems},
		{StageExtras, SlotAdditional, r.extraItems},
		{StageExtras, SlotModels, r.modelItems},
	}
	for _, kind := range ProceduralKinds {
		steps = append(steps, step{StageProcedural, ProceduralSlot(kind), func() []item { return r.proceduralItems(kind) }})
	}
	return append(steps, step{StageMusic, SlotMusic, r.musicItems})
}

func (r *run) execute(ctx context.Context) error {
	for _, s := range r.steps() {
		if err := ctx.Err(); err != nil {
			return cancelled(err)
		}
		items := s.build()
		if len(items) == 0 {
			continue
		}
		if err := r.runStage(ctx, s.stage, s.slot, items); err != nil {
			return err
		}
	}
	return nil
}

// runStage 有界并发执行 items，按声明顺序合并
func (r *run) runStage(ctx context.Context, stage Stage, slot Slot, items []item) error {
	ctx = ctxkeys.WithStage(ctx, string(stage))
	ctx, span := telemetry.StartSpan(ctx, "pipeline", string(stage),
		attribute.String("slot", string(slot)),
		attribute.Int("items", len(items)),
	)
	start := time.Now()
	r.progress.begin(stage, fmt.Sprintf("Generating %s", strings.ReplaceAll(string(slot), "_", " ")))

	results := make([]types.Artifact, len(items))
	var g errgroup.Group
	g.SetLimit(r.o.concurrency)
	for i, it := range items {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			art, err := it.do(ctx)
			if err != nil {
				if ctx.Err() != nil && types.IsErrorCode(err, types.ErrCancelled) {
					return nil
				}
				r.logger.Warn("plan item failed",
					zap.String("stage", string(stage)),
					zap.String("item", it.label),
					zap.Error(err))
				art = types.NewFailure(err)
			}
			results[i] = art
			r.progress.advance(stage, it.label)
			return nil
		})
	}
	_ = g.Wait()

	for i, it := range items {
		if results[i] == nil {
			continue
		}
		r.plan.set(slot, it.key, results[i])
		r.o.recorder.RecordArtifact(string(slot), string(results[i].Kind()))
		r.o.instruments.RecordItem(ctx, string(slot), types.IsFailure(results[i]))
	}
	r.o.recorder.RecordStage(string(stage), time.Since(start))

	if err := ctx.Err(); err != nil {
		err = cancelled(err)
		telemetry.EndSpan(span, err)
		return err
	}
	telemetry.EndSpan(span, nil)
	return nil
}

func cancelled(err error) error {
	return types.NewError(types.ErrCancelled, "plan run cancelled").WithCause(err)
}

// =============================================================================
// 各阶段条目
// =============================================================================

func (r *run) textItem(label string, kind prompt.Kind, input string) item {
	return item{
		label: label,
		do: func(ctx context.Context) (types.Artifact, error) {
			p := r.o.templates.Render(kind, input, 0)
			out, err := r.o.gen.GenerateText(ctx, p, designerRole, r.req.Models.Chat)
			if err != nil {
				return nil, err
			}
			return types.Text{Body: strings.TrimSpace(out)}, nil
		},
	}
}

// conceptText 生成的游戏概念，缺失时回退到用户输入
func (r *run) conceptText() string {
	if t := r.plan.text(SlotGameConcept); t != "" {
		return t
	}
	return r.req.Concept
}

func (r *run) conceptItems() []item {
	if r.req.IsEmpty() {
		return nil
	}
	return []item{r.textItem("game concept", prompt.KindConcept, r.req.Concept)}
}

func (r *run) worldItems() []item {
	if !r.req.Narrative.World {
		return nil
	}
	return []item{r.textItem("world concept", prompt.KindWorld, r.plan.text(SlotGameConcept))}
}

func (r *run) characterItems() []item {
	if !r.req.Narrative.Characters {
		return nil
	}
	c := joinContext(r.plan.text(SlotGameConcept), r.plan.text(SlotWorldConcept))
	return []item{r.textItem("character concepts", prompt.KindCharacters, c)}
}

func (r *run) plotItems() []item {
	if !r.req.Narrative.Plot {
		return nil
	}
	c := joinContext(r.plan.text(SlotWorldConcept), r.plan.text(SlotCharacterConcepts))
	return []item{r.textItem("plot", prompt.KindPlot, c)}
}

func (r *run) imageItems() []item {
	var items []item
	for _, t := range AssetTypes {
		count := r.req.Assets[t]
		for n := 1; n <= count; n++ {
			variation := 0
			if count > 1 {
				variation = n
			}
			items = append(items, item{
				key:   ImageKey(t, n),
				label: fmt.Sprintf("%s image %d", t, n),
				do: func(ctx context.Context) (types.Artifact, error) {
					p := r.o.templates.Render(prompt.ImageKind(string(t)), r.req.Concept, variation)
					ref, err := r.o.gen.GenerateImage(ctx, p, r.req.ImageSize, r.req.Models.Image)
					if err != nil {
						return nil, err
					}
					return ref, nil
				},
			})
		}
	}
	return items
}

func (r *run) scriptItems() []item {
	var items []item
	for _, t := range ScriptTypes {
		count := r.req.Scripts[t]
		for n := 1; n <= count; n++ {
			variation := 0
			if count > 1 {
				variation = n
			}
			items = append(items, item{
				key:   fmt.Sprintf("%s_%d", t, n),
				label: fmt.Sprintf("%s script %d", t, n),
				do: func(ctx context.Context) (types.Artifact, error) {
					return r.script(ctx, prompt.ScriptKind(string(t)), r.req.Concept, variation)
				},
			})
		}
	}
	return items
}

// script 代码模型生成并经过 sanitize
func (r *run) script(ctx context.Context, kind prompt.Kind, concept string, variation int) (types.Artifact, error) {
	p := r.o.templates.Render(kind, concept, variation)
	role := fmt.Sprintf(coderRole, r.req.Language.DisplayName())
	raw, err := r.o.gen.GenerateText(ctx, p, role, r.req.Models.Code)
	if err != nil {
		return nil, err
	}
	res := sanitize.Sanitize(raw)
	_, isolated := res.(sanitize.Isolated)
	return types.Script{
		Source:    res.Body(),
		Language:  string(r.req.Language),
		Extension: r.req.Language.Extension(),
		Isolated:  isolated,
	}, nil
}

func (r *run) extraItems() []item {
	var items []item
	for _, e := range Extras {
		if !r.req.Extras[e] {
			continue
		}
		it := r.textItem(strings.ReplaceAll(string(e), "_", " "), prompt.ExtraKind(string(e)), r.conceptText())
		it.key = string(e)
		items = append(items, it)
	}
	return items
}

// modelItems 源图片缺失或失败时直接记为 Failure，不调用厂商
func (r *run) modelItems() []item {
	var items []item
	for _, t := range AssetTypes {
		if !r.req.ThreeD[t] {
			continue
		}
		for n := 1; n <= r.req.Assets[t]; n++ {
			src, ok := r.plan.get(SlotImages, ImageKey(t, n))
			key := fmt.Sprintf("%s_model_%d", t, n)
			label := fmt.Sprintf("%s model %d", t, n)
			img, isImage := src.(types.ImageRef)
			if !ok || !isImage {
				cause := "source image was not generated"
				if f, isFailure := src.(types.Failure); isFailure {
					cause = "source image failed: " + f.Cause
				}
				items = append(items, item{key: key, label: label, do: func(context.Context) (types.Artifact, error) {
					return types.Failure{Cause: cause}, nil
				}})
				continue
			}
			items = append(items, item{
				key:   key,
				label: label,
				do: func(ctx context.Context) (types.Artifact, error) {
					ref, err := r.o.gen.ConvertTo3D(ctx, img, r.req.Models.ThreeD)
					if err != nil {
						return nil, err
					}
					return ref, nil
				},
			})
		}
	}
	return items
}

func (r *run) proceduralItems(kind ProceduralKind) []item {
	if !r.req.Procedural[kind] {
		return nil
	}
	return []item{{
		label: "procedural " + string(kind),
		do: func(ctx context.Context) (types.Artifact, error) {
			return r.script(ctx, prompt.ProceduralKind(string(kind)), r.req.Concept, 0)
		},
	}}
}

func (r *run) musicItems() []item {
	if !r.req.Music {
		return nil
	}
	return []item{{
		label: "music",
		do: func(ctx context.Context) (types.Artifact, error) {
			p := r.o.templates.Render(prompt.KindMusic, r.req.Concept, 0)
			ref, err := r.o.gen.GenerateAudio(ctx, p, r.req.Models.Music)
			if err != nil {
				return nil, err
			}
			return ref, nil
		},
	}}
}

// ImageKey 形如 character_image_1
func ImageKey(t AssetType, n int) string {
	return fmt.Sprintf("%s_image_%d", t, n)
}

func joinContext(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}
