// 版权所有 2024 AssetFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 database 为异步任务存储提供基于 GORM 的数据库连接与连接池管理。

# 核心类型

  - Open / Dialector：按 config.DatabaseConfig 选择 postgres、mysql
    或纯 Go 的 sqlite（glebarez）方言并打开连接。
  - PoolManager：持有 GORM DB 与底层 sql.DB，提供 DB()、Ping()、
    Stats()、Close()，以及后台健康检查。
  - StatsRecorder：健康检查时接收连接数快照，metrics.Collector 实现了它。
  - TransactionFunc：事务回调函数类型。

# 主要能力

  - WithTransaction 提供单次事务执行，WithTransactionRetry 在死锁、
    序列化失败、sqlite 锁冲突时指数退避重试。
  - sqlite 固定为单连接。
*/
package database
