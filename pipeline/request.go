package pipeline

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/BaSui01/assetflow/config"
	"github.com/BaSui01/assetflow/types"
)

// =============================================================================
// 枚举
// =============================================================================

// AssetType 图片资产类型
type AssetType string

const (
	AssetCharacter   AssetType = "character"
	AssetEnvironment AssetType = "environment"
	AssetObject      AssetType = "object"
	AssetTexture     AssetType = "texture"
	AssetUI          AssetType = "ui"
)

// AssetTypes 声明顺序
var AssetTypes = []AssetType{AssetCharacter, AssetEnvironment, AssetObject, AssetTexture, AssetUI}

// ScriptType 脚本类型
type ScriptType string

const (
	ScriptPlayerController ScriptType = "player_controller"
	ScriptEnemyAI          ScriptType = "enemy_ai"
	ScriptGameManager      ScriptType = "game_manager"
	ScriptInventorySystem  ScriptType = "inventory_system"
	ScriptLevelManager     ScriptType = "level_manager"
)

// ScriptTypes 声明顺序
var ScriptTypes = []ScriptType{
	ScriptPlayerController, ScriptEnemyAI, ScriptGameManager, ScriptInventorySystem, ScriptLevelManager,
}

// Extra 附加文本
type Extra string

const (
	ExtraStoryline   Extra = "storyline"
	ExtraDialogue    Extra = "dialogue"
	ExtraMechanics   Extra = "mechanics"
	ExtraLevelDesign Extra = "level_design"
)

// Extras 声明顺序
var Extras = []Extra{ExtraStoryline, ExtraDialogue, ExtraMechanics, ExtraLevelDesign}

// ProceduralKind 程序化生成脚本
type ProceduralKind string

const (
	ProceduralTerrain ProceduralKind = "terrain"
	ProceduralDungeon ProceduralKind = "dungeon"
	ProceduralLoot    ProceduralKind = "loot"
	ProceduralQuest   ProceduralKind = "quest"
)

// ProceduralKinds 声明顺序
var ProceduralKinds = []ProceduralKind{ProceduralTerrain, ProceduralDungeon, ProceduralLoot, ProceduralQuest}

// Language 脚本目标语言
type Language string

const (
	LangCSharp     Language = "csharp"
	LangPython     Language = "python"
	LangGDScript   Language = "gdscript"
	LangCPP        Language = "cpp"
	LangJavaScript Language = "javascript"
	LangLua        Language = "lua"
)

var languageInfo = map[Language]struct{ ext, display string }{
	LangCSharp:     {"cs", "C# (Unity)"},
	LangPython:     {"py", "Python (Pygame)"},
	LangGDScript:   {"gd", "GDScript (Godot)"},
	LangCPP:        {"cpp", "C++ (Unreal)"},
	LangJavaScript: {"js", "JavaScript (Phaser)"},
	LangLua:        {"lua", "Lua (LÖVE)"},
}

// Extension 文件扩展名，不含点
func (l Language) Extension() string { return languageInfo[l].ext }

// DisplayName 用于 prompt 的语言描述
func (l Language) DisplayName() string { return languageInfo[l].display }

// =============================================================================
// 请求
// =============================================================================

// Narrative 叙事阶段开关
type Narrative struct {
	World      bool `json:"world"`
	Characters bool `json:"characters"`
	Plot       bool `json:"plot"`
}

// Models 各模态选用的模型，空字段使用配置默认值
type Models struct {
	Chat   string `json:"chat,omitempty"`
	Image  string `json:"image,omitempty"`
	Code   string `json:"code,omitempty"`
	ThreeD string `json:"three_d,omitempty"`
	Music  string `json:"music,omitempty"`
}

func (m Models) withDefaults(d Models) Models {
	pick := func(v, def string) string {
		if strings.TrimSpace(v) == "" {
			return def
		}
		return strings.TrimSpace(v)
	}
	return Models{
		Chat:   pick(m.Chat, d.Chat),
		Image:  pick(m.Image, d.Image),
		Code:   pick(m.Code, d.Code),
		ThreeD: pick(m.ThreeD, d.ThreeD),
		Music:  pick(m.Music, d.Music),
	}
}

// RequestInput HTTP / CLI 传入的原始请求（JSON）
type RequestInput struct {
	Concept    string         `json:"concept"`
	Assets     map[string]int `json:"assets,omitempty"`
	Scripts    map[string]int `json:"scripts,omitempty"`
	Language   string         `json:"language,omitempty"`
	Narrative  Narrative      `json:"narrative"`
	Extras     []string       `json:"extras,omitempty"`
	Music      bool           `json:"music,omitempty"`
	ThreeD     []string       `json:"three_d,omitempty"`
	Procedural []string       `json:"procedural,omitempty"`
	Models     Models         `json:"models"`
	ImageSize  string         `json:"image_size,omitempty"`
}

// Request 校验后的不可变请求，按值传递
type Request struct {
	Concept    string
	Assets     map[AssetType]int
	Scripts    map[ScriptType]int
	Language   Language
	Narrative  Narrative
	Extras     map[Extra]bool
	Music      bool
	ThreeD     map[AssetType]bool
	Procedural map[ProceduralKind]bool
	Models     Models
	ImageSize  string
}

// DefaultImageSize 默认图片尺寸
const DefaultImageSize = "1024x1024"

// 单次请求的默认条目上限
const (
	DefaultMaxPerType = 10
	DefaultMaxItems   = 100
)

// Limits 单次请求的条目上限
type Limits struct {
	// MaxPerType 每种图片或脚本类型的最大数量
	MaxPerType int
	// MaxItems 一次运行的厂商条目总数上限
	MaxItems int
}

// DefaultLimits 默认上限
func DefaultLimits() Limits {
	return Limits{MaxPerType: DefaultMaxPerType, MaxItems: DefaultMaxItems}
}

// LimitsFromConfig 从流水线配置读取上限，未设置的项使用默认值
func LimitsFromConfig(cfg config.PipelineConfig) Limits {
	l := DefaultLimits()
	if cfg.MaxItemsPerType > 0 {
		l.MaxPerType = cfg.MaxItemsPerType
	}
	if cfg.MaxItems > 0 {
		l.MaxItems = cfg.MaxItems
	}
	return l
}

// NewRequest 按默认上限校验并构造请求
func NewRequest(in RequestInput, defaults Models) (Request, error) {
	return NewRequestWithLimits(in, defaults, DefaultLimits())
}

// NewRequestWithLimits 校验并构造请求。未知的标签、负数或超出上限的数量返回 types.ErrInvalidRequest
func NewRequestWithLimits(in RequestInput, defaults Models, limits Limits) (Request, error) {
	if limits.MaxPerType <= 0 {
		limits.MaxPerType = DefaultMaxPerType
	}
	if limits.MaxItems <= 0 {
		limits.MaxItems = DefaultMaxItems
	}

	req := Request{
		Concept:    strings.TrimSpace(in.Concept),
		Assets:     make(map[AssetType]int),
		Scripts:    make(map[ScriptType]int),
		Language:   LangCSharp,
		Narrative:  in.Narrative,
		Extras:     make(map[Extra]bool),
		Music:      in.Music,
		ThreeD:     make(map[AssetType]bool),
		Procedural: make(map[ProceduralKind]bool),
		Models:     in.Models.withDefaults(defaults),
		ImageSize:  DefaultImageSize,
	}

	var problems []string
	for _, tag := range sortedKeys(in.Assets) {
		n := in.Assets[tag]
		t := AssetType(tag)
		switch {
		case !contains(AssetTypes, t):
			problems = append(problems, fmt.Sprintf("unknown asset type %q", tag))
		case n < 0:
			problems = append(problems, fmt.Sprintf("negative count for asset type %q", tag))
		case n > limits.MaxPerType:
			problems = append(problems, fmt.Sprintf("count %d for asset type %q exceeds %d", n, tag, limits.MaxPerType))
		case n > 0:
			req.Assets[t] = n
		}
	}
	for _, tag := range sortedKeys(in.Scripts) {
		n := in.Scripts[tag]
		t := ScriptType(tag)
		switch {
		case !contains(ScriptTypes, t):
			problems = append(problems, fmt.Sprintf("unknown script type %q", tag))
		case n < 0:
			problems = append(problems, fmt.Sprintf("negative count for script type %q", tag))
		case n > limits.MaxPerType:
			problems = append(problems, fmt.Sprintf("count %d for script type %q exceeds %d", n, tag, limits.MaxPerType))
		case n > 0:
			req.Scripts[t] = n
		}
	}
	if in.Language != "" {
		l := Language(strings.ToLower(in.Language))
		if _, ok := languageInfo[l]; !ok {
			problems = append(problems, fmt.Sprintf("unknown language %q", in.Language))
		} else {
			req.Language = l
		}
	}
	for _, tag := range in.Extras {
		if !contains(Extras, Extra(tag)) {
			problems = append(problems, fmt.Sprintf("unknown extra %q", tag))
			continue
		}
		req.Extras[Extra(tag)] = true
	}
	for _, tag := range in.ThreeD {
		if !contains(AssetTypes, AssetType(tag)) {
			problems = append(problems, fmt.Sprintf("unknown 3d asset type %q", tag))
			continue
		}
		req.ThreeD[AssetType(tag)] = true
	}
	for _, tag := range in.Procedural {
		if !contains(ProceduralKinds, ProceduralKind(tag)) {
			problems = append(problems, fmt.Sprintf("unknown procedural kind %q", tag))
			continue
		}
		req.Procedural[ProceduralKind(tag)] = true
	}
	if s := strings.TrimSpace(in.ImageSize); s != "" {
		if validImageSize(s) {
			req.ImageSize = s
		} else {
			problems = append(problems, fmt.Sprintf("invalid image size %q", s))
		}
	}
	// 单类数量已封顶，总数不会溢出
	if len(problems) == 0 {
		if total := TotalItems(req); total > limits.MaxItems {
			problems = append(problems, fmt.Sprintf("request needs %d items, limit is %d", total, limits.MaxItems))
		}
	}

	if len(problems) > 0 {
		return Request{}, types.NewInvalidRequestError("%s", strings.Join(problems, "; "))
	}
	return req, nil
}

// validImageSize 形如 1024x1024，两边都是正整数且没有多余字符
func validImageSize(s string) bool {
	ws, hs, ok := strings.Cut(s, "x")
	if !ok {
		return false
	}
	w, err := strconv.Atoi(ws)
	if err != nil || w <= 0 {
		return false
	}
	h, err := strconv.Atoi(hs)
	return err == nil && h > 0
}

// IsEmpty 请求没有要求任何产出
func (r Request) IsEmpty() bool {
	return len(r.Assets) == 0 && len(r.Scripts) == 0 && len(r.Extras) == 0 &&
		len(r.Procedural) == 0 && !r.Music &&
		!r.Narrative.World && !r.Narrative.Characters && !r.Narrative.Plot
}

// ThreeDCount 需要转换 3D 的条目数
func (r Request) ThreeDCount() int {
	n := 0
	for t := range r.ThreeD {
		n += r.Assets[t]
	}
	return n
}

// ImageCount 图片总数
func (r Request) ImageCount() int {
	n := 0
	for _, c := range r.Assets {
		n += c
	}
	return n
}

// ScriptCount 脚本总数
func (r Request) ScriptCount() int {
	n := 0
	for _, c := range r.Scripts {
		n += c
	}
	return n
}

func (r Request) needsChat() bool {
	return !r.IsEmpty()
}

func (r Request) needsCode() bool {
	return len(r.Scripts) > 0 || len(r.Procedural) > 0
}

func contains[T comparable](list []T, v T) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
