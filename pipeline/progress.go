package pipeline

import "sync"

// Stage 编排阶段
type Stage string

const (
	StageConcept    Stage = "concept"
	StageWorld      Stage = "world"
	StageCharacters Stage = "characters"
	StagePlot       Stage = "plot"
	StageImages     Stage = "images"
	StageScripts    Stage = "scripts"
	StageExtras     Stage = "extras"
	StageProcedural Stage = "procedural"
	StageMusic      Stage = "music"
	StageDone       Stage = "done"
)

// Stages 固定执行顺序
var Stages = []Stage{
	StageConcept, StageWorld, StageCharacters, StagePlot,
	StageImages, StageScripts, StageExtras, StageProcedural, StageMusic,
}

// Progress 进度快照，Fraction 单调不减，完成时恰为 1
type Progress struct {
	Fraction float64 `json:"fraction"`
	Stage    Stage   `json:"stage"`
	Label    string  `json:"label"`
	Done     int     `json:"done"`
	Total    int     `json:"total"`
}

// ProgressFunc 进度回调，仅用于观察。调用是串行的
type ProgressFunc func(Progress)

// progressTracker 串行化进度回调
type progressTracker struct {
	mu    sync.Mutex
	fn    ProgressFunc
	done  int
	total int
	last  float64
}

func newProgressTracker(total int, fn ProgressFunc) *progressTracker {
	return &progressTracker{fn: fn, total: total}
}

// TotalItems 请求对应的厂商条目总数（包括不会发起调用的 3D 失败条目）
func TotalItems(r Request) int {
	if r.IsEmpty() {
		return 0
	}
	n := 1 // concept
	if r.Narrative.World {
		n++
	}
	if r.Narrative.Characters {
		n++
	}
	if r.Narrative.Plot {
		n++
	}
	n += r.ImageCount() + r.ScriptCount() + len(r.Extras) + r.ThreeDCount() + len(r.Procedural)
	if r.Music {
		n++
	}
	return n
}

// begin 进入某阶段时上报，不推进计数
func (t *progressTracker) begin(stage Stage, label string) {
	t.emit(stage, label, 0)
}

// advance 完成一个条目
func (t *progressTracker) advance(stage Stage, label string) {
	t.emit(stage, label, 1)
}

// finish 上报 1.0
func (t *progressTracker) finish(label string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done = t.total
	t.last = 1
	if t.fn != nil {
		t.fn(Progress{Fraction: 1, Stage: StageDone, Label: label, Done: t.done, Total: t.total})
	}
}

func (t *progressTracker) emit(stage Stage, label string, delta int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done += delta
	if t.done > t.total {
		t.done = t.total
	}
	frac := 0.0
	if t.total > 0 {
		frac = float64(t.done) / float64(t.total)
	}
	if frac < t.last {
		frac = t.last
	}
	t.last = frac
	if t.fn != nil {
		t.fn(Progress{Fraction: frac, Stage: stage, Label: label, Done: t.done, Total: t.total})
	}
}
