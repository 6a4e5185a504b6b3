// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 novelmemory 命令行入口。

# 概述

cmd/novelmemory 用于在没有写作助手的情况下检验分层记忆：校验配置文件，
或按 YAML 剧本回放一组写入、检索、上下文组装、一致性检查与维护操作，
并把每一步的结果以 JSON 行输出。

# 主要能力

  - 子命令：version、validate、replay
  - 配置：YAML 文件 + NOVELMEMORY_ 前缀环境变量
  - 结构化日志（zap），级别与格式取自配置
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
