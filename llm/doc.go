// 版权所有 2024 AssetFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 llm 是生成式厂商的统一接入层，对流水线暴露按模态划分的四个能力：

  - GenerateText：OpenAI 兼容 Chat Completions（openai、deepseek、qwen）
  - GenerateImage：openai / flux / gemini
  - ConvertTo3D：meshy / tripo
  - GenerateAudio：suno / minimax

# 模型目录

可用模型是固定集合，见 [DefaultCatalog]。目录外的模型或缺少凭证的厂商在
[Client.CheckModel] 阶段返回 types.ErrConfiguration，不会产生任何网络请求。

# 错误语义

所有厂商失败都以 *types.Error 返回，包含 HTTP 状态码与厂商名。生成请求
最多发送一次；只有异步任务的状态查询会对瞬时错误重试。每次调用受
vendors.call_timeout 约束，超时返回 types.ErrUpstreamTimeout。

# 可观测

每次调用记录一个 OTel span，并通过 [Recorder] 上报耗时与结果；文本调用可选
统计 prompt token（llm/tokenizer）。
*/
package llm
