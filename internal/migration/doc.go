// 版权所有 2024 AssetFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 migration 管理异步任务库（plan_jobs 表）的 Schema 迁移，支持
PostgreSQL、MySQL 与 SQLite，基于 golang-migrate 实现。

# 概述

各方言的 SQL 文件通过 embed.FS 内嵌在 migrations/<dialect>/ 下，
由 iofs 源交给 golang-migrate 执行。

# 核心类型

  - Migrator：Up/Down/DownAll/Steps/Goto/Force/Version/Status/Info/Close。
  - DefaultMigrator：Migrator 的默认实现，自行打开并持有数据库连接。
  - CLI：`assetflow migrate <cmd>` 的输出层，Run 按子命令名分发。

# 辅助函数

  - ParseDatabaseType：解析 postgres/pg/mysql/mariadb/sqlite/sqlite3。
  - BuildDatabaseURL：按方言拼接连接 URL。
  - AvailableMigrations：列出内嵌的 up 迁移。
  - NewMigratorFromDatabaseConfig：从 config.DatabaseConfig 创建迁移器。
*/
package migration
