// 版权所有 2024 AssetFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 pipeline 把一个游戏概念和一组选项变成一份生成计划（[Plan]）。

# 阶段

[Orchestrator] 按固定顺序执行阶段：

	concept → world → characters → plot → images → scripts → extras → procedural → music

阶段只在请求需要时执行。后续阶段读取之前生成的文本作为上下文，依赖被跳过时
使用空字符串，不会阻塞。

# 失败隔离

单个条目的厂商错误会记录为该条目的 types.Failure，同一阶段的其他条目与后续阶段
照常执行。配置错误（模型不在目录中、缺少凭证）在任何厂商调用之前返回。

# 并发与取消

images / scripts / extras / procedural 阶段按 Concurrency 有界并发，结果按声明
顺序合并。ctx 在每个阶段边界和每次厂商调用之前检查；取消时返回已完成部分的
计划和 types.ErrCancelled。
*/
package pipeline
