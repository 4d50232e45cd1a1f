// 版权所有 2024 AssetFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

// Package tokenizer 统计发往文本模型的 prompt token 数，仅用于指标上报。
// OpenAI 系模型使用 tiktoken 精确计数，其余模型回退到按字符估算。
package tokenizer
