// Package config 提供 ModelGate 的配置管理功能。
//
// 支持从文件和环境变量加载配置，启动时做完整校验：
// 预算限额、模型目录、存储后端与告警阈值不合法时拒绝启动。
package config
