// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package testutil 提供 novelmemory 测试的共享工具和辅助函数。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 可控时钟: FakeClock，配合 memory.WithClock 测试访问时间与过期清理
  - 条目构造: NewItem / NewItemWith
  - 异步断言: WaitFor / AssertEventuallyTrue

# 子包

  - testutil/mocks: MockCompressionEngine，支持 Builder 模式、
    脚本化返回值、错误注入与调用计数
*/
package testutil
