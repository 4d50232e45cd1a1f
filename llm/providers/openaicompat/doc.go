// Package openaicompat 实现 OpenAI Chat Completions 兼容协议的文本生成，
// OpenAI、DeepSeek 与 Qwen(DashScope 兼容模式) 共用这一实现，
// 只在名称、BaseURL 与鉴权头上有所不同。
//
// 用法:
//
//	p := openaicompat.New(openaicompat.Config{
//	    ProviderName: "deepseek",
//	    APIKey:       cfg.APIKey,
//	    BaseURL:      "https://api.deepseek.com",
//	}, logger)
//	res, err := p.Complete(ctx, openaicompat.ChatRequest{Model: "deepseek-chat", Prompt: "..."})
package openaicompat
