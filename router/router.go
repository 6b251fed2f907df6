// Package router 实现成本受控的模型路由：
// 先问预算策略，再按任务类型规则选型，最后套用画像偏好。
package router

import (
	"go.uber.org/zap"

	"github.com/phoenixedu/modelgate/budget"
	"github.com/phoenixedu/modelgate/catalog"
	"github.com/phoenixedu/modelgate/persona"
	"github.com/phoenixedu/modelgate/types"
)

// Request 是一次路由请求（短暂对象，消费后即丢弃）。
type Request struct {
	TaskType       types.TaskType
	Complexity     types.Complexity
	Tier           types.Tier
	Modality       types.Modality
	Persona        persona.ID // 可选；空值表示无画像
	EstimatedUnits int
}

// Result 路由结果
type Result struct {
	ModelID  string
	Reason   string
	Fallback bool // 预算超限触发回退表
}

// Router 是无状态的纯决策器：对良构输入永不失败、永不抛错，
// 总能终止于一个具体的模型 ID。串行化要求在台账一侧，路由器本身无锁。
type Router struct {
	catalog  *catalog.Catalog
	policy   *budget.Policy
	personas *persona.Policy
	logger   *zap.Logger
}

// New 创建路由器。规则表与回退表引用的每个模型都必须在目录中，
// 否则视为配置不一致，启动失败。
func New(cat *catalog.Catalog, policy *budget.Policy, personas *persona.Policy, logger *zap.Logger) (*Router, error) {
	for _, id := range routedModels() {
		if !cat.Contains(id) {
			return nil, types.NewErrorf(types.ErrInvalidConfig, "routing rules reference model %s missing from catalog", id)
		}
	}
	return &Router{
		catalog:  cat,
		policy:   policy,
		personas: personas,
		logger:   logger,
	}, nil
}

// Select 为请求选择一个模型。算法顺序：
//  1. 任一预算作用域 exceeded → 直接查回退表（忽略层级与复杂度），
//     系统降级为低成本运行而不是拒绝服务；
//  2. 按任务类型分派到全函数规则；未知任务类型走层级默认模型；
//  3. 画像偏好在层级白名单允许时覆盖规则结果。
func (r *Router) Select(req Request) Result {
	// 输入归一化保证规则的全函数性
	tier := types.ParseTier(string(req.Tier))
	complexity := types.ParseComplexity(string(req.Complexity))
	modality := types.ParseModality(string(req.Modality))

	if r.policy.Exceeded() {
		model := fallbackModel(req.TaskType)
		r.logger.Warn("budget exceeded, routing to fallback model",
			zap.String("task_type", string(req.TaskType)),
			zap.String("model", model))
		return Result{ModelID: model, Reason: "budget_fallback", Fallback: true}
	}

	model, reason := r.ruleSelect(req.TaskType, complexity, tier, modality)

	if req.Persona != "" {
		if preferred, ok := r.personas.PreferredModel(req.Persona, req.TaskType); ok {
			// 画像偏好永不绕过层级白名单
			if r.catalog.Allowed(tier, preferred) {
				r.logger.Debug("persona preference applied",
					zap.String("persona", string(req.Persona)),
					zap.String("model", preferred))
				return Result{ModelID: preferred, Reason: "persona_preference"}
			}
		}
	}

	return Result{ModelID: model, Reason: reason}
}

// ruleSelect 按任务类型分派。每条规则都是 (complexity, tier, modality)
// 的全函数：任何组合都落到一个具体模型，不存在未定义分支。
func (r *Router) ruleSelect(task types.TaskType, complexity types.Complexity, tier types.Tier, modality types.Modality) (string, string) {
	switch task {
	case types.TaskOrchestrator:
		return orchestratorModel(complexity, tier), "orchestrator_rule"
	case types.TaskWorker:
		return workerModel(complexity, tier, modality), "worker_rule"
	case types.TaskQualityControl:
		// 质量控制要求快且省
		return "gpt-5-nano", "quality_control_rule"
	case types.TaskResearch:
		return researchModel(complexity, tier), "research_rule"
	case types.TaskVoice:
		return voiceModel(modality, tier), "voice_rule"
	case types.TaskVisual:
		return visualModel(complexity, tier), "visual_rule"
	case types.TaskRealtime:
		return realtimeModel(tier), "realtime_rule"
	default:
		// 未知任务类型: 层级默认模型（预算未超限，不走回退表）
		return defaultModel(tier), "tier_default"
	}
}

func orchestratorModel(complexity types.Complexity, tier types.Tier) string {
	switch {
	case tier == types.TierFree:
		return "gpt-5-nano"
	case complexity == types.ComplexityAdvanced && tier.AtLeast(types.TierPremium):
		return "gpt-5"
	case complexity == types.ComplexityComplex && tier.AtLeast(types.TierBasic):
		return "gpt-5-mini"
	default:
		return "gpt-5-nano"
	}
}

func workerModel(complexity types.Complexity, tier types.Tier, modality types.Modality) string {
	switch {
	case tier == types.TierFree:
		return "gpt-5-nano"
	case modality == types.ModalityVisual:
		if tier.AtLeast(types.TierPremium) {
			return "gpt-image-1"
		}
		return "dall-e-3"
	case complexity == types.ComplexityAdvanced && tier == types.TierPro:
		return "gpt-5"
	default:
		return "gpt-5-mini"
	}
}

func researchModel(complexity types.Complexity, tier types.Tier) string {
	switch {
	case tier == types.TierFree:
		return "gpt-5-nano"
	case complexity == types.ComplexityAdvanced && tier == types.TierPro:
		return "o3-deep-research"
	default:
		return "o4-mini-deep-research"
	}
}

func voiceModel(modality types.Modality, tier types.Tier) string {
	if modality == types.ModalityRealtime {
		if tier.AtLeast(types.TierPremium) {
			return "gpt-realtime"
		}
		return "gpt-5-mini"
	}
	return "gpt-4o-mini-tts"
}

func visualModel(complexity types.Complexity, tier types.Tier) string {
	if complexity == types.ComplexityAdvanced && tier == types.TierPro {
		return "gpt-image-1"
	}
	return "dall-e-3"
}

func realtimeModel(tier types.Tier) string {
	if tier.AtLeast(types.TierPremium) {
		return "gpt-realtime"
	}
	return "gpt-5-mini"
}

func defaultModel(tier types.Tier) string {
	switch tier {
	case types.TierFree:
		return "gpt-5-nano"
	case types.TierBasic:
		return "gpt-5-mini"
	default:
		return "gpt-5"
	}
}

// fallbackModel 返回任务类型对应的最廉价模型（预算超限时使用）。
func fallbackModel(task types.TaskType) string {
	switch task {
	case types.TaskVoice, types.TaskRealtime:
		return "gpt-5-mini"
	case types.TaskVisual:
		return "dall-e-3"
	default:
		return "gpt-5-nano"
	}
}

// routedModels 列出规则表与回退表可能产出的全部模型 ID，
// 供启动期目录一致性校验。
func routedModels() []string {
	return []string{
		"gpt-5", "gpt-5-mini", "gpt-5-nano",
		"o3-deep-research", "o4-mini-deep-research",
		"gpt-4o-mini-tts", "gpt-realtime",
		"gpt-image-1", "dall-e-3",
	}
}
