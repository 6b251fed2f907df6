/*
Package main 提供 ModelGate 服务端程序入口。

# 概述

cmd/modelgate 是模型路由与成本治理服务的可执行入口，提供 HTTP API、
健康检查和版本查询等子命令。程序支持 YAML 配置文件加载、
结构化日志（zap）与 Prometheus 指标采集。

# 核心类型

  - Server         — 主服务器，管理 HTTP 端口及优雅关闭
  - middleware     — HTTP 中间件函数签名 func(http.Handler) http.Handler
  - responseWriter — 包装 http.ResponseWriter 以捕获状态码

# API 端点

  - POST /v1/route          路由一次请求（不执行调用）
  - POST /v1/usage/record   手工记账一次用量
  - GET  /v1/usage          最近 N 天用量汇总
  - POST /v1/usage/reset    管理性地清除一天的用量
  - GET  /v1/status         各作用域预算状态
  - GET  /v1/alerts         告警查询
  - POST /v1/alerts/resolve 解决告警
  - GET  /v1/alerts/export  告警导出
  - GET  /v1/personas       画像列表
  - GET  /healthz           健康检查
  - GET  /metrics           Prometheus 指标
*/
package main
