package tokenizer

import (
	"strings"
	"sync"
)

// Tokenizer 统一的 token 计数接口
type Tokenizer interface {
	// CountTokens 返回文本的 token 数
	CountTokens(text string) (int, error)
	// CountMessages 返回消息列表的 token 数，含每条消息的角色开销
	CountMessages(messages []Message) (int, error)
	Name() string
}

// Message 轻量消息结构
type Message struct {
	Role    string
	Content string
}

// Registry 模型名到分词器的映射，支持前缀匹配
type Registry struct {
	mu       sync.RWMutex
	entries  map[string]Tokenizer
	fallback func(model string) Tokenizer
}

// NewRegistry 创建注册表，未登记的模型使用估算器
func NewRegistry() *Registry {
	return &Registry{
		entries:  make(map[string]Tokenizer),
		fallback: func(string) Tokenizer { return NewEstimator() },
	}
}

// Register 为模型（或模型前缀）登记分词器
func (r *Registry) Register(model string, t Tokenizer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[model] = t
}

// For 返回模型对应的分词器，精确匹配优先，其次取最长前缀
func (r *Registry) For(model string) Tokenizer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if t, ok := r.entries[model]; ok {
		return t
	}
	var (
		best    Tokenizer
		bestLen int
	)
	for prefix, t := range r.entries {
		if strings.HasPrefix(model, prefix) && len(prefix) > bestLen {
			best, bestLen = t, len(prefix)
		}
	}
	if best != nil {
		return best
	}
	return r.fallback(model)
}

// Count 统计单条 prompt（含可选 system 消息）的 token 数
func (r *Registry) Count(model, system, prompt string) (int, error) {
	msgs := make([]Message, 0, 2)
	if strings.TrimSpace(system) != "" {
		msgs = append(msgs, Message{Role: "system", Content: system})
	}
	msgs = append(msgs, Message{Role: "user", Content: prompt})
	return r.For(model).CountMessages(msgs)
}

// DefaultRegistry 登记 OpenAI 系 tiktoken 分词器的注册表
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for model, enc := range openAIEncodings {
		r.Register(model, NewTiktoken(enc))
	}
	return r
}
