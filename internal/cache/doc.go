// 版权所有 2024 AssetFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 cache 提供基于 Redis 的归档存储能力，异步任务生成的 zip
可以放在 Redis 中并按 TTL 自动过期。

# 核心类型

  - Manager：持有 go-redis 客户端，提供 GetBytes/SetBytes/Delete/
    Exists/TTL 等操作，以及 GetJSON/SetJSON 便捷方法。所有键统一
    加上 KeyPrefix。
  - Config：地址、密码、键前缀、默认 TTL、连接池与健康检查间隔。

# 主要能力

  - 二进制读写：归档以原始字节存储，不做 base64 转换。
  - 健康检查：后台定时 Ping，Close 时退出。
  - 错误语义：ErrCacheMiss 哨兵错误与 IsCacheMiss 判断函数。
*/
package cache
