// 版权所有 2024 AssetFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 archive 把冻结的 pipeline.Plan 序列化为 zip。

文件命名由 [Layout] 决定：文本为 .txt，图片统一转为 .png，3D 模型每种返回的格式
一个文件，脚本使用目标语言扩展名，音频为 .mp3。失败条目写成 <name>.error.txt；
远程资源下载或解码失败时同样写入占位文件，归档始终完整生成。
*/
package archive
