package tokenizer

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// openAIEncodings 目录中 OpenAI 文本模型使用的编码
var openAIEncodings = map[string]string{
	"gpt-4o":      "o200k_base",
	"gpt-4o-mini": "o200k_base",
	"gpt-4":       "cl100k_base",
}

// Tiktoken 基于 tiktoken-go 的精确计数，编码表在首次使用时加载
type Tiktoken struct {
	encoding string

	once    sync.Once
	enc     *tiktoken.Tiktoken
	initErr error
}

// NewTiktoken 创建指定编码的分词器
func NewTiktoken(encoding string) *Tiktoken {
	return &Tiktoken{encoding: encoding}
}

func (t *Tiktoken) load() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("load tiktoken encoding %s: %w", t.encoding, err)
			return
		}
		t.enc = enc
	})
	return t.initErr
}

func (t *Tiktoken) CountTokens(text string) (int, error) {
	if err := t.load(); err != nil {
		return 0, err
	}
	return len(t.enc.Encode(text, nil, nil)), nil
}

// CountMessages 每条消息 <|start|>role\ncontent<|end|> 计 4 个额外 token
func (t *Tiktoken) CountMessages(messages []Message) (int, error) {
	if err := t.load(); err != nil {
		return 0, err
	}
	total := 3
	for _, m := range messages {
		total += 4 + len(t.enc.Encode(m.Content, nil, nil)) + len(t.enc.Encode(m.Role, nil, nil))
	}
	return total, nil
}

func (t *Tiktoken) Name() string {
	return "tiktoken[" + t.encoding + "]"
}
