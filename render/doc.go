// 版权所有 2024 AssetFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 render 是一个简单的场景渲染代理：把场景 JSON 写入临时目录，
以后台模式调用 Blender 执行内嵌的 render_script.py，返回渲染出的 PNG。

子进程受超时和并发信号量约束，但不做额外的沙箱隔离。
*/
package render
