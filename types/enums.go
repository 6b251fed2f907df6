package types

// TaskType identifies the stage of the content-generation pipeline that a
// routing request originates from.
type TaskType string

const (
	TaskOrchestrator   TaskType = "orchestrator"
	TaskWorker         TaskType = "worker"
	TaskQualityControl TaskType = "quality_control"
	TaskResearch       TaskType = "research"
	TaskVoice          TaskType = "voice"
	TaskVisual         TaskType = "visual"
	TaskRealtime       TaskType = "realtime"
)

// KnownTaskTypes lists every task type the router has a dedicated rule for.
// Unknown task types fall back to the tier default model.
func KnownTaskTypes() []TaskType {
	return []TaskType{
		TaskOrchestrator,
		TaskWorker,
		TaskQualityControl,
		TaskResearch,
		TaskVoice,
		TaskVisual,
		TaskRealtime,
	}
}

// Complexity is an ordinal task complexity level.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityMedium   Complexity = "medium"
	ComplexityComplex  Complexity = "complex"
	ComplexityAdvanced Complexity = "advanced"
)

// Rank returns the ordinal position of the complexity level
// (simple < medium < complex < advanced). Unknown values rank as simple.
func (c Complexity) Rank() int {
	switch c {
	case ComplexityMedium:
		return 1
	case ComplexityComplex:
		return 2
	case ComplexityAdvanced:
		return 3
	default:
		return 0
	}
}

// ParseComplexity normalizes a raw string to a Complexity.
// Unrecognized input maps to ComplexitySimple.
func ParseComplexity(s string) Complexity {
	switch Complexity(s) {
	case ComplexityMedium, ComplexityComplex, ComplexityAdvanced:
		return Complexity(s)
	default:
		return ComplexitySimple
	}
}

// Tier is an ordinal requester subscription tier.
type Tier string

const (
	TierFree    Tier = "free"
	TierBasic   Tier = "basic"
	TierPremium Tier = "premium"
	TierPro     Tier = "pro"
)

// Rank returns the ordinal position of the tier (free < basic < premium < pro).
// Unknown values rank as free.
func (t Tier) Rank() int {
	switch t {
	case TierBasic:
		return 1
	case TierPremium:
		return 2
	case TierPro:
		return 3
	default:
		return 0
	}
}

// AtLeast reports whether t ranks at or above other.
func (t Tier) AtLeast(other Tier) bool {
	return t.Rank() >= other.Rank()
}

// ParseTier normalizes a raw string to a Tier.
// Unrecognized input maps to TierFree.
func ParseTier(s string) Tier {
	switch Tier(s) {
	case TierBasic, TierPremium, TierPro:
		return Tier(s)
	default:
		return TierFree
	}
}

// Modality is the content modality of a request.
type Modality string

const (
	ModalityText     Modality = "text"
	ModalityVoice    Modality = "voice"
	ModalityVisual   Modality = "visual"
	ModalityRealtime Modality = "realtime"
	ModalityResearch Modality = "research"
)

// ParseModality normalizes a raw string to a Modality.
// Unrecognized input is treated as text.
func ParseModality(s string) Modality {
	switch Modality(s) {
	case ModalityVoice, ModalityVisual, ModalityRealtime, ModalityResearch:
		return Modality(s)
	default:
		return ModalityText
	}
}

// AllComplexities returns every complexity level in ascending order.
func AllComplexities() []Complexity {
	return []Complexity{ComplexitySimple, ComplexityMedium, ComplexityComplex, ComplexityAdvanced}
}

// AllTiers returns every tier in ascending order.
func AllTiers() []Tier {
	return []Tier{TierFree, TierBasic, TierPremium, TierPro}
}

// AllModalities returns every modality.
func AllModalities() []Modality {
	return []Modality{ModalityText, ModalityVoice, ModalityVisual, ModalityRealtime, ModalityResearch}
}
