// 版权所有 2024 AssetFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package jobs runs plan generations in the background.

A Service accepts a request, persists a Job record and hands the run to a bounded
goroutine pool. Progress is streamed to subscribers through a Broker and mirrored
into the job record; on completion the plan is assembled into a zip that is kept
in a BlobStore until downloaded.

Job records live in a Store (MemoryStore or the gorm-backed GormStore over the
plan_jobs table). Archives live in a BlobStore (FileBlobStore on local disk or
RedisBlobStore on top of internal/cache).
*/
package jobs
