// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package compression 提供记忆层依赖的压缩引擎实现。

# 概述

记忆层通过七个语义操作使用压缩引擎：重要性评估、关键词提取、相似度计算、
摘要生成、低重要性压缩、相似合并与检索排序。本包提供一个不依赖模型的
本地启发式引擎，以及三个可叠加的装饰器。

# 核心类型

  - Engine             — 引擎接口，与 memory.CompressionEngine 方法集一致
  - LocalEngine        — 中日韩二元组 + 英文词的词频余弦相似度、关键词、句界摘要、贪心合并
  - CachedEngine       — 文本级结果写入 Redis，singleflight 合并并发的相同请求
  - RateLimitedEngine  — 调用前 rate.Limiter.Wait
  - InstrumentedEngine — 每次调用一个 OpenTelemetry span，并记录调用数、错误数与耗时

# 组合

装饰器按 本地引擎 → 缓存 → 限流 → 埋点 的顺序叠加，缓存命中不消耗限流配额。
*/
package compression
