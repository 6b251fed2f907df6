package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/phoenixedu/modelgate"
	"github.com/phoenixedu/modelgate/alert"
	"github.com/phoenixedu/modelgate/config"
	"github.com/phoenixedu/modelgate/internal/server"
	"github.com/phoenixedu/modelgate/ledger"
	"github.com/phoenixedu/modelgate/persona"
	"github.com/phoenixedu/modelgate/router"
	"github.com/phoenixedu/modelgate/types"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 ModelGate 的 HTTP 服务器
type Server struct {
	cfg     *config.Config
	logger  *zap.Logger
	gateway *modelgate.Gateway
	manager *server.Manager
}

// NewServer 创建新的服务器实例并完成组件装配
func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	gw, err := modelgate.New(
		modelgate.WithConfig(cfg),
		modelgate.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build gateway: %w", err)
	}
	return &Server{cfg: cfg, logger: logger, gateway: gw}, nil
}

// =============================================================================
// 🚀 启动与停止
// =============================================================================

// Start 启动 HTTP 服务器
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/v1/route", s.handleRoute)
	mux.HandleFunc("/v1/usage", s.handleUsage)
	mux.HandleFunc("/v1/usage/record", s.handleRecord)
	mux.HandleFunc("/v1/usage/reset", s.handleResetDay)
	mux.HandleFunc("/v1/status", s.handleStatus)
	mux.HandleFunc("/v1/alerts", s.handleAlerts)
	mux.HandleFunc("/v1/alerts/resolve", s.handleResolveAlert)
	mux.HandleFunc("/v1/alerts/export", s.handleExportAlerts)
	mux.HandleFunc("/v1/personas", s.handlePersonas)

	managerCfg := server.DefaultConfig()
	managerCfg.Addr = fmt.Sprintf(":%d", s.cfg.Server.HTTPPort)
	managerCfg.ReadTimeout = s.cfg.Server.ReadTimeout
	managerCfg.WriteTimeout = s.cfg.Server.WriteTimeout
	managerCfg.ShutdownTimeout = s.cfg.Server.ShutdownTimeout

	s.manager = server.NewManager(
		chain(mux, recovery(s.logger), requestLogger(s.logger)),
		managerCfg, s.logger)
	if err := s.manager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

// Wait 阻塞直到收到退出信号或服务器异常退出，随后优雅关闭 HTTP 服务器。
// 关闭超时取自启动时的服务器配置。
func (s *Server) Wait() {
	s.manager.WaitForShutdown()
}

// Close 落盘并关闭台账与告警存储。
func (s *Server) Close() error {
	return s.gateway.Close()
}

// =============================================================================
// 📡 Handlers
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": Version,
	})
}

type routeRequest struct {
	TaskType       string `json:"task_type"`
	Complexity     string `json:"complexity"`
	Tier           string `json:"tier"`
	Modality       string `json:"modality"`
	Persona        string `json:"persona"`
	EstimatedUnits int    `json:"estimated_units"`
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	var req routeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	res := s.gateway.Select(router.Request{
		TaskType:       types.TaskType(req.TaskType),
		Complexity:     types.Complexity(req.Complexity),
		Tier:           types.Tier(req.Tier),
		Modality:       types.Modality(req.Modality),
		Persona:        persona.ID(req.Persona),
		EstimatedUnits: req.EstimatedUnits,
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"model_id": res.ModelID,
		"reason":   res.Reason,
		"fallback": res.Fallback,
	})
}

type recordRequest struct {
	ModelID     string `json:"model_id"`
	InputUnits  int    `json:"input_units"`
	OutputUnits int    `json:"output_units"`
	TaskType    string `json:"task_type"`
	Operation   string `json:"operation"`
	Success     bool   `json:"success"`
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	rec, err := s.gateway.Ledger.Record(r.Context(), ledger.Usage{
		ModelID:     req.ModelID,
		InputUnits:  req.InputUnits,
		OutputUnits: req.OutputUnits,
		TaskType:    types.TaskType(req.TaskType),
		Operation:   req.Operation,
		Success:     req.Success,
	})
	if err != nil {
		switch types.GetErrorCode(err) {
		case types.ErrModelNotFound, types.ErrInvalidInput:
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		if _, err := fmt.Sscanf(v, "%d", &days); err != nil || days <= 0 {
			writeError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
	}
	writeJSON(w, http.StatusOK, s.gateway.UsageSummary(days))
}

func (s *Server) handleResetDay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	day := time.Now()
	if v := r.URL.Query().Get("date"); v != "" {
		parsed, err := time.Parse(ledger.DateLayout, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		day = parsed
	}
	if err := s.gateway.ResetDay(r.Context(), day); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset", "date": day.Format(ledger.DateLayout)})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.gateway.Status())
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	var f alert.Filter
	if v := r.URL.Query().Get("level"); v != "" {
		level := alert.Level(v)
		f.Level = &level
	}
	if v := r.URL.Query().Get("resolved"); v != "" {
		resolved := v == "true"
		f.Resolved = &resolved
	}
	if v := r.URL.Query().Get("category"); v != "" {
		category := alert.Category(v)
		f.Category = &category
	}
	alerts := s.gateway.Alerts.Alerts(f)
	if alerts == nil {
		alerts = []alert.Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (s *Server) handleResolveAlert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	if !s.gateway.Alerts.Resolve(r.Context(), id) {
		writeError(w, http.StatusNotFound, "alert not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "resolved", "id": id})
}

func (s *Server) handleExportAlerts(w http.ResponseWriter, _ *http.Request) {
	data, err := s.gateway.Alerts.Export()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", "attachment; filename=alerts.json")
	w.Write(data)
}

func (s *Server) handlePersonas(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.gateway.Personas.Profiles())
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
