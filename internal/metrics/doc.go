/*
包 metrics 提供基于 Prometheus 的指标采集能力，覆盖
路由、调度、成本与告警四个维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制，避免手动管理 Registry。所有指标按 namespace 隔离，
支持多维度 label 分组，便于 Grafana 等工具进行可视化与告警。

# 主要能力

  - 路由指标：路由总数（按任务类型/模型/原因分组）与预算回退计数。
  - 调度指标：调度总数与耗时、输入输出用量、累计成本，按模型分组。
  - 预算指标：各作用域剩余预算 Gauge。
  - 告警指标：触发计数，按级别/类别分组。
*/
package metrics
