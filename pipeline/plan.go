package pipeline

import (
	"time"

	"github.com/BaSui01/assetflow/types"
)

// Slot 计划中的命名位置
type Slot string

const (
	SlotGameConcept       Slot = "game_concept"
	SlotWorldConcept      Slot = "world_concept"
	SlotCharacterConcepts Slot = "character_concepts"
	SlotPlot              Slot = "plot"
	SlotImages            Slot = "images"
	SlotScripts           Slot = "scripts"
	SlotAdditional        Slot = "additional_elements"
	SlotModels            Slot = "models"
	SlotMusic             Slot = "music"
)

// ProceduralSlot procedural_<kind>
func ProceduralSlot(kind ProceduralKind) Slot {
	return Slot("procedural_" + string(kind))
}

// Entry 计划中的一个条目。Key 为空表示该 slot 只有一个产物
type Entry struct {
	Slot     Slot
	Key      string
	Artifact types.Artifact
}

// Path 形如 "images.character_image_1" 或 "game_concept"
func (e Entry) Path() string {
	if e.Key == "" {
		return string(e.Slot)
	}
	return string(e.Slot) + "." + e.Key
}

// Name 归档文件名的主干：有 Key 时取 Key，否则取 slot 名
func (e Entry) Name() string {
	if e.Key == "" {
		return string(e.Slot)
	}
	return e.Key
}

// Plan 一次运行的冻结结果，只读
type Plan struct {
	runID       string
	entries     []Entry
	index       map[string]int
	completedAt time.Time
}

// RunID 产生该计划的运行 ID
func (p *Plan) RunID() string { return p.runID }

// CompletedAt 运行结束时间，归档条目以此为修改时间
func (p *Plan) CompletedAt() time.Time { return p.completedAt }

// Len 条目数
func (p *Plan) Len() int { return len(p.entries) }

// IsEmpty 没有任何条目
func (p *Plan) IsEmpty() bool { return len(p.entries) == 0 }

// Get 按 slot 与 key 查找，单产物 slot 的 key 为空
func (p *Plan) Get(slot Slot, key string) (types.Artifact, bool) {
	i, ok := p.index[entryID(slot, key)]
	if !ok {
		return nil, false
	}
	return p.entries[i].Artifact, true
}

// Entries 全部条目，按写入顺序
func (p *Plan) Entries() []Entry {
	return append([]Entry(nil), p.entries...)
}

// Items 某 slot 的条目，按写入顺序
func (p *Plan) Items(slot Slot) []Entry {
	var out []Entry
	for _, e := range p.entries {
		if e.Slot == slot {
			out = append(out, e)
		}
	}
	return out
}

// Slots 出现过的 slot，按首次写入顺序
func (p *Plan) Slots() []Slot {
	seen := make(map[Slot]bool)
	var out []Slot
	for _, e := range p.entries {
		if !seen[e.Slot] {
			seen[e.Slot] = true
			out = append(out, e.Slot)
		}
	}
	return out
}

// Failures 失败的条目
func (p *Plan) Failures() []Entry {
	var out []Entry
	for _, e := range p.entries {
		if types.IsFailure(e.Artifact) {
			out = append(out, e)
		}
	}
	return out
}

// Text 返回文本类条目的正文，不存在或失败时返回空字符串
func (p *Plan) Text(slot Slot) string {
	a, _ := p.Get(slot, "")
	switch v := a.(type) {
	case types.Text:
		return v.Body
	case types.Script:
		return v.Source
	default:
		return ""
	}
}

// Summary 以 Path 为键的产物摘要
func (p *Plan) Summary() []EntrySummary {
	out := make([]EntrySummary, 0, len(p.entries))
	for _, e := range p.entries {
		out = append(out, EntrySummary{Path: e.Path(), Artifact: types.Describe(e.Artifact)})
	}
	return out
}

// EntrySummary 条目的 JSON 摘要
type EntrySummary struct {
	Path     string                `json:"path"`
	Artifact types.ArtifactSummary `json:"artifact"`
}

func entryID(slot Slot, key string) string {
	return string(slot) + "\x00" + key
}

// planBuilder 运行期间由 Orchestrator 独占
type planBuilder struct {
	plan *Plan
}

func newPlanBuilder(runID string) *planBuilder {
	return &planBuilder{plan: &Plan{runID: runID, index: make(map[string]int)}}
}

// set 写入条目；同一位置重复写入时覆盖原值并保留原顺序
func (b *planBuilder) set(slot Slot, key string, a types.Artifact) {
	id := entryID(slot, key)
	if i, ok := b.plan.index[id]; ok {
		b.plan.entries[i].Artifact = a
		return
	}
	b.plan.index[id] = len(b.plan.entries)
	b.plan.entries = append(b.plan.entries, Entry{Slot: slot, Key: key, Artifact: a})
}

func (b *planBuilder) get(slot Slot, key string) (types.Artifact, bool) {
	return b.plan.Get(slot, key)
}

func (b *planBuilder) text(slot Slot) string {
	return b.plan.Text(slot)
}

// freeze 返回只读计划，之后 builder 不可再用
func (b *planBuilder) freeze(at time.Time) *Plan {
	p := b.plan
	p.completedAt = at
	b.plan = nil
	return p
}

// NewPlan 由条目直接构造冻结的计划，用于从存储恢复
func NewPlan(runID string, completedAt time.Time, entries []Entry) *Plan {
	b := newPlanBuilder(runID)
	for _, e := range entries {
		b.set(e.Slot, e.Key, e.Artifact)
	}
	return b.freeze(completedAt)
}
