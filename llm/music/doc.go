// 版权所有 2024 AssetFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 music 提供背景音乐生成的厂商适配，统一返回 types.AudioRef。

  - SunoProvider：异步任务，提交后轮询到 completed。
  - MiniMaxProvider：同步返回编码后的音频字节（hex，兼容 base64）。
*/
package music
