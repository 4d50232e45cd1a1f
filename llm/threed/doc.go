// 版权所有 2024 AssetFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 threed 提供图像转 3D 模型的厂商适配，适配 Meshy 与 Tripo3D。

两家都是异步任务：提交一次，然后用 poll.Until 轮询到终态。
返回的 types.ModelRef 按厂商顺序列出每种可下载格式（glb、fbx、obj、usdz）。
输入图片优先使用 URL；只有字节时，Meshy 使用 data URI，Tripo 先上传换取 file token。
*/
package threed
