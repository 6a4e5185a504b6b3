// Package config 提供 novelmemory 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → 环境变量 的顺序叠加，
// 覆盖分层记忆容量与阈值、压缩引擎、Redis 缓存、日志、遥测和指标。
package config
