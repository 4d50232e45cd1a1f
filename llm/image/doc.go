// 版权所有 2024 AssetFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 image 提供文生图厂商适配，统一返回 types.ImageRef。

# 厂商

  - OpenAIProvider：DALL-E，同步返回 URL 或 base64。
  - FluxProvider：Black Forest Labs，提交后通过 polling_url 轮询到终态。
  - GeminiProvider：Gemini 原生多模态，响应中直接内嵌图片字节。

# 约定

  - 生成请求只发送一次；轮询查询失败时按 retry.PollPolicy 重试。
  - 非 2xx、无法解析的响应与空结果都返回 *types.Error。
*/
package image
