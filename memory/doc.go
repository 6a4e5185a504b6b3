// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package memory 提供小说写作助手的分层工作记忆。

# 概述

每个项目持有四层有界存储：全局（世界观、角色、大纲、关系）、卷（情节线、
角色发展、关键事件）、章节（正文、场景、对话、角色状态）和段落（正文片段、
临时状态、写作提示）。各层共享同一套机制，只在容量、阈值与类别规则上不同。

# 核心类型

  - Layer            — 单作用域存储：增删改查、检索、压缩、过期清理、统计
  - ScopePolicy      — 作用域的容量、阈值、类别重要性下限/上限与回收钩子
  - GlobalMemory     — 全局层，附带设定一致性检查
  - VolumeMemory     — 卷层，附带完整性分析
  - ChapterMemory    — 章节层，附带完整性分析
  - ParagraphMemory  — 段落层，满载时优先回收过期临时状态
  - Manager          — 按项目与作用域路由的门面，组装上下文包
  - Maintainer       — 在工作池上执行的定期清理与压缩

# 故障处理

所有操作都不向调用方抛出错误：校验失败返回 false，引擎失败记录日志后
降级为空结果或保留原条目，写作流程在缺少记忆时继续执行。

# 并发

每层一把读写锁，只保护簿记；引擎调用在锁外进行，对外返回的都是副本。
*/
package memory
