package catalog

import "github.com/phoenixedu/modelgate/types"

// DefaultDescriptors 返回内置模型目录（可被配置覆盖）。
func DefaultDescriptors() []Descriptor {
	return []Descriptor{
		// 核心内容生成模型
		{
			ID:           "gpt-5",
			Capabilities: []string{"reasoning", "planning", "complex_content"},
			InputRate:    0.04, OutputRate: 0.08,
			MaxUnits: 128000,
			Speed:    SpeedMedium, Quality: QualityHighest,
		},
		{
			ID:           "gpt-5-mini",
			Capabilities: []string{"content_generation", "examples", "standard_content"},
			InputRate:    0.01, OutputRate: 0.03,
			MaxUnits: 128000,
			Speed:    SpeedFast, Quality: QualityHigh,
		},
		{
			ID:           "gpt-5-nano",
			Capabilities: []string{"validation", "fact_checking", "simple_content"},
			InputRate:    0.005, OutputRate: 0.01,
			MaxUnits: 128000,
			Speed:    SpeedFastest, Quality: QualityGood,
		},

		// 研究模型
		{
			ID:           "o3-deep-research",
			Capabilities: []string{"deep_research", "complex_analysis", "academic_content"},
			InputRate:    0.12, OutputRate: 0.25,
			MaxUnits: 128000,
			Speed:    SpeedSlow, Quality: QualityHighest,
		},
		{
			ID:           "o4-mini-deep-research",
			Capabilities: []string{"research", "fact_verification", "standard_research"},
			InputRate:    0.025, OutputRate: 0.05,
			MaxUnits: 128000,
			Speed:    SpeedMedium, Quality: QualityHigh,
		},

		// 语音模型（units 为字符/秒）
		{
			ID:           "gpt-4o-mini-tts",
			Capabilities: []string{"text_to_speech", "voice_generation"},
			InputRate:    0.015, OutputRate: 0,
			MaxUnits: 4000,
			Speed:    SpeedFast, Quality: QualityHigh,
		},
		{
			ID:           "gpt-4o-transcribe",
			Capabilities: []string{"speech_to_text", "audio_transcription"},
			InputRate:    0.01, OutputRate: 0,
			MaxUnits: 4000,
			Speed:    SpeedFast, Quality: QualityHigh,
		},

		// 实时模型
		{
			ID:           "gpt-realtime",
			Capabilities: []string{"realtime_chat", "interactive_conversation"},
			InputRate:    0.08, OutputRate: 0.15,
			MaxUnits: 128000,
			Speed:    SpeedRealtime, Quality: QualityHigh,
		},

		// 视觉模型
		{
			ID:           "gpt-image-1",
			Capabilities: []string{"image_generation", "visual_content"},
			InputRate:    0, OutputRate: 0.08,
			MaxUnits: 1000,
			Speed:    SpeedMedium, Quality: QualityHighest,
		},
		{
			ID:           "dall-e-3",
			Capabilities: []string{"image_generation", "visual_content"},
			InputRate:    0, OutputRate: 0.04,
			MaxUnits: 1000,
			Speed:    SpeedMedium, Quality: QualityHigh,
		},
	}
}

// DefaultTierAllowlists 返回各请求层的固定模型白名单，
// 最便宜在前、能力最强在后。
func DefaultTierAllowlists() map[types.Tier][]string {
	return map[types.Tier][]string{
		types.TierFree: {
			"gpt-5-nano", "dall-e-3",
		},
		types.TierBasic: {
			"gpt-5-nano", "gpt-5-mini", "gpt-4o-mini-tts", "dall-e-3",
		},
		types.TierPremium: {
			"gpt-5-nano", "gpt-5-mini", "gpt-5",
			"gpt-4o-mini-tts", "gpt-4o-transcribe",
			"gpt-realtime", "gpt-image-1", "dall-e-3",
			"o4-mini-deep-research",
		},
		types.TierPro: {
			"gpt-5-nano", "gpt-5-mini", "gpt-5",
			"gpt-4o-mini-tts", "gpt-4o-transcribe",
			"gpt-realtime", "gpt-image-1", "dall-e-3",
			"o4-mini-deep-research", "o3-deep-research",
		},
	}
}

// Default 构建内置目录。内置表保证自洽，构建失败视为编程错误。
func Default() *Catalog {
	c, err := New(DefaultDescriptors(), DefaultTierAllowlists())
	if err != nil {
		panic("catalog: built-in defaults failed validation: " + err.Error())
	}
	return c
}
