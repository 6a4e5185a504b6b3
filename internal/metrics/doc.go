// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的记忆层指标采集能力。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标。指标注册到调用方
传入的 prometheus.Registerer，传 nil 时不注册，便于测试隔离。
nil *Collector 的记录方法均为空操作。

# 主要能力

  - 操作指标：按 scope/op/status 统计 add、get、search、update、remove。
  - 容量指标：各层条目数与容量 Gauge。
  - 压缩指标：压缩次数、释放字节数、耗时分布。
  - 清理指标：过期清理与段落层廉价回收的移除条目数。
  - 引擎缓存指标：按操作统计命中与未命中。
*/
package metrics
