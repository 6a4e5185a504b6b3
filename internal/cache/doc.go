// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 cache 提供基于 Redis 的缓存管理能力，供压缩引擎缓存相似度、
关键词、重要性与摘要等确定性计算结果。

# 核心类型

  - Manager：缓存管理器，持有 Redis 客户端与连接池配置，
    提供 Get/Set/Delete/Exists 基础操作与 GetJSON/SetJSON 序列化方法。
    所有键自动加上 KeyPrefix。
  - Config：缓存配置，可由 config.RedisConfig 经 FromRedisConfig 构造。

# 主要能力

  - 健康检查：后台定时 Ping，Close 时停止。
  - 错误语义：ErrCacheMiss 与 ErrClosed 哨兵错误。
*/
package cache
