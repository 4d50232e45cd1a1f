// Package sanitize 从模型回复中尽力提取源代码。
//
// 这是启发式的文本变换而非解析器：有代码围栏时取围栏内容；否则去掉第一个
// 代码起始行之前的说明文字和末尾的说明段落。注释永远不会被删除。
package sanitize

import (
	"regexp"
	"strings"
	"unicode"
)

// Result 是 Isolated 或 Unchanged 之一
type Result interface {
	// Body 返回结果文本
	Body() string
	isResult()
}

// Isolated 成功分离出的代码
type Isolated struct {
	Code string
}

// Unchanged 未找到代码区域，原样返回输入
type Unchanged struct {
	Text string
}

func (r Isolated) Body() string  { return r.Code }
func (r Unchanged) Body() string { return r.Text }

func (Isolated) isResult()  {}
func (Unchanged) isResult() {}

// Clean 返回 Sanitize 结果的文本
func Clean(raw string) string {
	return Sanitize(raw).Body()
}

// Sanitize 不会失败
func Sanitize(raw string) Result {
	text := strings.ReplaceAll(raw, "\r\n", "\n")
	lines := strings.Split(text, "\n")

	if code, ok := extractFences(lines); ok {
		if strings.TrimSpace(code) == "" {
			return Unchanged{Text: raw}
		}
		return Isolated{Code: code}
	}

	start := -1
	for i, l := range lines {
		if isCodeStart(l) {
			start = i
			break
		}
	}
	if start < 0 {
		return Unchanged{Text: raw}
	}

	lines = dropTrailingProse(lines[leadingCodeStart(lines, start):])
	code := trimBlankLines(strings.Join(lines, "\n"))
	if code == "" {
		return Unchanged{Text: raw}
	}
	return Isolated{Code: code}
}

// =============================================================================
// 围栏
// =============================================================================

// extractFences 拼接所有 ``` 代码块的内容。未闭合的围栏取到文本结尾
func extractFences(lines []string) (string, bool) {
	var (
		blocks []string
		cur    []string
		open   bool
		found  bool
	)
	for _, l := range lines {
		trimmed := strings.TrimSpace(l)
		if !open {
			if strings.HasPrefix(trimmed, "```") {
				open, found = true, true
				cur = cur[:0]
			}
			continue
		}
		if strings.HasPrefix(trimmed, "```") {
			blocks = append(blocks, trimBlankLines(strings.Join(cur, "\n")))
			open = false
			continue
		}
		cur = append(cur, l)
	}
	if open {
		blocks = append(blocks, trimBlankLines(strings.Join(cur, "\n")))
	}
	if !found {
		return "", false
	}

	nonEmpty := blocks[:0]
	for _, b := range blocks {
		if b != "" {
			nonEmpty = append(nonEmpty, b)
		}
	}
	return strings.Join(nonEmpty, "\n\n"), true
}

// =============================================================================
// 说明文字
// =============================================================================

var codeStartPrefixes = []string{
	"import ",
	"using ",
	"#include",
	"package ",
	"class ",
	"public class ",
	"struct ",
	"extends ",
	"def ",
	"func ",
	"function ",
	"local function ",
}

func isCodeStart(line string) bool {
	t := strings.TrimLeft(line, " \t")
	if strings.HasPrefix(t, "from ") && strings.Contains(t, " import ") {
		return true
	}
	for _, p := range codeStartPrefixes {
		if strings.HasPrefix(t, p) {
			return true
		}
	}
	return false
}

// codeWords 以这些词开头的行按代码处理
var codeWords = map[string]bool{
	"import": true, "from": true, "using": true, "package": true, "class": true,
	"public": true, "private": true, "protected": true, "static": true, "struct": true,
	"extends": true, "def": true, "func": true, "function": true, "local": true,
	"return": true, "var": true, "let": true, "const": true, "if": true, "for": true,
	"while": true, "else": true, "print": true, "end": true,
}

// isProse 以字母开头、至少三个词、不含代码符号，且以句末标点结尾或足够长
func isProse(line string) bool {
	t := strings.TrimSpace(line)
	if t == "" {
		return false
	}
	first := []rune(t)[0]
	if !unicode.IsLetter(first) {
		return false
	}
	if strings.ContainsAny(t, ";{}=<>[]`\"") {
		return false
	}
	words := strings.Fields(t)
	if len(words) < 3 || codeWords[strings.ToLower(words[0])] {
		return false
	}
	last := t[len(t)-1]
	return strings.IndexByte(".:!?", last) >= 0 || len(words) >= 6
}

// leadingCodeStart 从第一个代码起始行向上，连续的注释行和像代码的行一并保留，
// 更早的内容都视为说明文字丢弃
func leadingCodeStart(lines []string, start int) int {
	cut := start
	for i := start - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) == "" {
			continue
		}
		if !isComment(lines[i]) && !looksLikeCode(lines[i]) {
			break
		}
		cut = i
	}
	return cut
}

var commentPrefixes = []string{"//", "/*", "*", "#", "--", `"""`, "'''"}

func isComment(line string) bool {
	t := strings.TrimSpace(line)
	for _, p := range commentPrefixes {
		if strings.HasPrefix(t, p) {
			return true
		}
	}
	return false
}

// callPattern 标识符后紧跟括号，如 print(1)
var callPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*\(`)

// looksLikeCode 缩进行、含赋值或语句符号的行、函数调用
func looksLikeCode(line string) bool {
	if strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") {
		return true
	}
	t := strings.TrimSpace(line)
	return strings.ContainsAny(t, ";{}=") || callPattern.MatchString(t)
}

// dropTrailingProse 反复去掉空行之后全部由说明文字组成的末尾段落
func dropTrailingProse(lines []string) []string {
	for {
		end := len(lines)
		for end > 0 && strings.TrimSpace(lines[end-1]) == "" {
			end--
		}
		lines = lines[:end]

		start := end
		for start > 0 && strings.TrimSpace(lines[start-1]) != "" {
			start--
		}
		if start == 0 {
			return lines
		}
		for _, l := range lines[start:end] {
			if !isProse(l) {
				return lines
			}
		}
		lines = lines[:start]
	}
}

// trimBlankLines 去掉首尾空行与末尾空白，保留首行缩进
func trimBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimRight(strings.Join(lines, "\n"), " \t")
}
