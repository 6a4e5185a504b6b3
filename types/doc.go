// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 novelmemory 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 memory、compression、
config 等上层模块提供统一的类型契约，以避免循环依赖。

# 核心类型

  - MemoryItem        — 记忆条目（内容、重要性、类型、作用域、层级键、访问统计、压缩标记）
  - MemoryType        — 记忆类型枚举（世界观、角色、情节、事件、场景、对话、关系、系统、其他）
  - MemoryScope       — 作用域枚举（全局 / 卷 / 章节 / 段落）
  - Error / ErrorCode — 结构化错误体系，含 Retryable 与作用域标记

# 主要能力

  - 内容类型解析：ParseMemoryType 同时识别英文名与中文标签，未知标签回落到 MemoryTypeOther
  - 作用域解析：ParseMemoryScope
  - 集合语义：MergeSet / MemoryItem.AddTags 去重追加
  - 错误工具链：WrapError / AsError / IsErrorCode / IsRetryable
*/
package types
