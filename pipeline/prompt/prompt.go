// Package prompt 把模板与游戏概念拼接成发往厂商的 prompt。
// 替换是纯字符串插值，不做任何转义。
package prompt

import (
	"strconv"
	"strings"
)

// Kind 标识一类 prompt
type Kind string

const (
	KindConcept    Kind = "concept"
	KindWorld      Kind = "world"
	KindCharacters Kind = "characters"
	KindPlot       Kind = "plot"
	KindMusic      Kind = "music"
)

// ImageKind 某资产类型的图片 prompt
func ImageKind(assetType string) Kind { return Kind("image:" + assetType) }

// ScriptKind 某脚本类型的代码 prompt
func ScriptKind(scriptType string) Kind { return Kind("script:" + scriptType) }

// ExtraKind 附加文本 prompt
func ExtraKind(extra string) Kind { return Kind("extra:" + extra) }

// ProceduralKind 程序化生成脚本 prompt
func ProceduralKind(kind string) Kind { return Kind("procedural:" + kind) }

// Placeholder 模板中的概念占位符
const Placeholder = "{concept}"

// genericTemplate 未登记模板的 kind 使用
func genericTemplate(kind Kind) string {
	return "Create " + strings.ReplaceAll(string(kind), ":", " ") + " content for the following game.\nConcept: " + Placeholder
}

// Build 渲染单个 prompt，不会失败。
// concept 为空时删除含占位符的行；variation > 0 时追加一行 "Variation n"
func Build(kind Kind, template, concept string, variation int) string {
	if strings.TrimSpace(template) == "" {
		template = genericTemplate(kind)
	}

	var out string
	if concept == "" {
		lines := strings.Split(template, "\n")
		kept := lines[:0]
		for _, l := range lines {
			if !strings.Contains(l, Placeholder) {
				kept = append(kept, l)
			}
		}
		out = strings.TrimSpace(strings.Join(kept, "\n"))
	} else {
		out = strings.ReplaceAll(template, Placeholder, concept)
	}

	if variation > 0 {
		out += "\nVariation " + strconv.Itoa(variation)
	}
	return out
}

// Templates kind 到模板的映射
type Templates map[Kind]string

// Render 查找 kind 的模板并渲染，未知 kind 使用通用模板
func (t Templates) Render(kind Kind, concept string, variation int) string {
	return Build(kind, t[kind], concept, variation)
}

// With 返回覆盖了部分模板的副本
func (t Templates) With(overrides Templates) Templates {
	out := make(Templates, len(t)+len(overrides))
	for k, v := range t {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}
