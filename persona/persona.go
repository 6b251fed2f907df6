// Package persona maps the Kelly/Ken avatar identities to per-task model
// preferences and voice parameters. Preferences are advisory: the router only
// applies them when the requester's tier is entitled to the preferred model.
package persona

import (
	"strings"

	"github.com/phoenixedu/modelgate/types"
)

// ID identifies an avatar persona.
type ID string

const (
	Kelly ID = "kelly"
	Ken   ID = "ken"
)

// VoiceConfig holds the speech-synthesis parameters for a persona.
type VoiceConfig struct {
	Voice    string  `json:"voice"`
	Speed    float64 `json:"speed"`
	Pitch    float64 `json:"pitch"`
	Emphasis string  `json:"emphasis"`
}

// Profile is the static description of one persona.
type Profile struct {
	ID          ID                        `json:"id"`
	Name        string                    `json:"name"`
	Description string                    `json:"description"`
	Specialty   string                    `json:"specialty"`
	Voice       VoiceConfig               `json:"voice"`
	Preferences map[types.TaskType]string `json:"preferences"`
}

// Policy is a static lookup table over the configured personas.
type Policy struct {
	profiles map[ID]Profile
}

// NewPolicy returns the built-in Kelly/Ken persona table.
func NewPolicy() *Policy {
	return &Policy{profiles: map[ID]Profile{
		Kelly: {
			ID:          Kelly,
			Name:        "Kelly",
			Description: "Patient, methodical educational specialist focused on foundational understanding",
			Specialty:   "Academic subjects, step-by-step learning, detailed explanations",
			Voice: VoiceConfig{
				Voice:    "alloy",
				Speed:    0.9,
				Pitch:    1.0,
				Emphasis: "educational",
			},
			// Kelly prefers models that excel at complex reasoning.
			Preferences: map[types.TaskType]string{
				types.TaskOrchestrator: "gpt-5",
				types.TaskWorker:       "gpt-5-mini",
				types.TaskResearch:     "o4-mini-deep-research",
			},
		},
		Ken: {
			ID:          Ken,
			Name:        "Ken",
			Description: "Dynamic, hands-on expert focused on practical applications and real-world examples",
			Specialty:   "Practical skills, real-world applications, hands-on learning",
			Voice: VoiceConfig{
				Voice:    "nova",
				Speed:    1.1,
				Pitch:    1.05,
				Emphasis: "practical",
			},
			// Ken prefers efficient models that generate practical content quickly.
			Preferences: map[types.TaskType]string{
				types.TaskOrchestrator: "gpt-5-mini",
				types.TaskWorker:       "gpt-5-mini",
				types.TaskResearch:     "gpt-5-mini",
			},
		},
	}}
}

// Profile returns the profile for a persona.
func (p *Policy) Profile(id ID) (Profile, bool) {
	prof, ok := p.profiles[id]
	return prof, ok
}

// PreferredModel returns the persona's preferred model for a task type.
// The second return value is false when the persona has no preference;
// the router then proceeds with its own rule.
func (p *Policy) PreferredModel(id ID, task types.TaskType) (string, bool) {
	prof, ok := p.profiles[id]
	if !ok {
		return "", false
	}
	model, ok := prof.Preferences[task]
	return model, ok
}

// Profiles returns all configured persona profiles in a stable order.
func (p *Policy) Profiles() []Profile {
	out := make([]Profile, 0, len(p.profiles))
	for _, id := range []ID{Kelly, Ken} {
		if prof, ok := p.profiles[id]; ok {
			out = append(out, prof)
		}
	}
	return out
}

// Names returns the display names of all configured personas.
func (p *Policy) Names() []string {
	names := make([]string, 0, len(p.profiles))
	for _, id := range []ID{Kelly, Ken} {
		if prof, ok := p.profiles[id]; ok {
			names = append(names, prof.Name)
		}
	}
	return names
}

var academicTerms = []string{
	"mathematics", "physics", "chemistry", "biology", "history",
	"literature", "philosophy", "theoretical", "research", "analysis",
}

var practicalTerms = []string{
	"programming", "engineering", "business", "marketing", "design",
	"cooking", "fitness", "crafts", "technology", "application",
}

// SelectForTopic picks the better-suited persona for a topic using a keyword
// heuristic: academic subjects go to Kelly, practical ones to Ken, and
// general educational content defaults to Kelly.
func (p *Policy) SelectForTopic(topic, subjectArea string) ID {
	haystack := strings.ToLower(topic) + " " + strings.ToLower(subjectArea)

	for _, term := range academicTerms {
		if strings.Contains(haystack, term) {
			return Kelly
		}
	}
	for _, term := range practicalTerms {
		if strings.Contains(haystack, term) {
			return Ken
		}
	}
	return Kelly
}
