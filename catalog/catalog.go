// Package catalog 提供进程级不可变的模型注册表：
// 模型描述符、分层白名单与基于单位数的成本计算。
package catalog

import (
	"fmt"
	"math"
	"sort"

	"github.com/phoenixedu/modelgate/types"
)

// SpeedClass 模型速度等级
type SpeedClass string

const (
	SpeedSlow     SpeedClass = "slow"
	SpeedMedium   SpeedClass = "medium"
	SpeedFast     SpeedClass = "fast"
	SpeedFastest  SpeedClass = "fastest"
	SpeedRealtime SpeedClass = "realtime"
)

// QualityClass 模型质量等级
type QualityClass string

const (
	QualityGood    QualityClass = "good"
	QualityHigh    QualityClass = "high"
	QualityHighest QualityClass = "highest"
)

// Descriptor 描述单个可调用模型的静态属性。
// 运行时只读；价格单位为每 1K units（tokens/字符/秒，视模型而定）。
type Descriptor struct {
	ID           string       `json:"id" yaml:"id"`
	Capabilities []string     `json:"capabilities" yaml:"capabilities"`
	InputRate    float64      `json:"input_rate" yaml:"input_rate"`
	OutputRate   float64      `json:"output_rate" yaml:"output_rate"`
	MaxUnits     int          `json:"max_units" yaml:"max_units"`
	Speed        SpeedClass   `json:"speed" yaml:"speed"`
	Quality      QualityClass `json:"quality" yaml:"quality"`
}

// Catalog 是进程级不可变的模型注册表。
// 启动时构建并校验，之后只读，无需加锁。
type Catalog struct {
	descriptors map[string]Descriptor
	tierAllow   map[types.Tier][]string
}

// New 根据描述符与分层白名单构建 Catalog。
// 配置不一致（空 ID、负价格、白名单引用未知模型）在此处失败，
// 系统拒绝带着不一致的目录开始路由。
func New(descriptors []Descriptor, tierAllow map[types.Tier][]string) (*Catalog, error) {
	if len(descriptors) == 0 {
		return nil, types.NewError(types.ErrInvalidConfig, "catalog requires at least one model descriptor")
	}

	byID := make(map[string]Descriptor, len(descriptors))
	for _, d := range descriptors {
		if d.ID == "" {
			return nil, types.NewError(types.ErrInvalidConfig, "model descriptor with empty id")
		}
		if d.InputRate < 0 || d.OutputRate < 0 {
			return nil, types.NewErrorf(types.ErrInvalidConfig, "model %s has negative rate", d.ID)
		}
		if _, dup := byID[d.ID]; dup {
			return nil, types.NewErrorf(types.ErrInvalidConfig, "duplicate model descriptor: %s", d.ID)
		}
		byID[d.ID] = d
	}

	allow := make(map[types.Tier][]string, len(tierAllow))
	for _, tier := range types.AllTiers() {
		ids, ok := tierAllow[tier]
		if !ok || len(ids) == 0 {
			return nil, types.NewErrorf(types.ErrInvalidConfig, "tier %s has no model allowlist", tier)
		}
		for _, id := range ids {
			if _, known := byID[id]; !known {
				return nil, types.NewErrorf(types.ErrInvalidConfig, "tier %s allowlist references unknown model %s", tier, id)
			}
		}
		allow[tier] = append([]string(nil), ids...)
	}

	return &Catalog{descriptors: byID, tierAllow: allow}, nil
}

// Describe 返回模型描述符。未知模型返回 ErrModelNotFound，
// 调用方应将其视为"回退到安全默认值"，而不是中止。
func (c *Catalog) Describe(modelID string) (Descriptor, error) {
	d, ok := c.descriptors[modelID]
	if !ok {
		return Descriptor{}, types.NewErrorf(types.ErrModelNotFound, "model not in catalog: %s", modelID)
	}
	return d, nil
}

// Contains 报告模型是否在目录中。
func (c *Catalog) Contains(modelID string) bool {
	_, ok := c.descriptors[modelID]
	return ok
}

// ListForTier 返回某个请求层可用的模型 ID，按固定白名单顺序
// （最便宜在前，能力最强在后）。
func (c *Catalog) ListForTier(tier types.Tier) []string {
	ids := c.tierAllow[tier]
	if ids == nil {
		ids = c.tierAllow[types.TierFree]
	}
	return append([]string(nil), ids...)
}

// Allowed 报告某个层是否有权使用该模型。
func (c *Catalog) Allowed(tier types.Tier, modelID string) bool {
	for _, id := range c.ListForTier(tier) {
		if id == modelID {
			return true
		}
	}
	return false
}

// ModelIDs 返回目录内全部模型 ID（字典序，用于调试与导出）。
func (c *Catalog) ModelIDs() []string {
	ids := make([]string, 0, len(c.descriptors))
	for id := range c.descriptors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Cost 按单位数计算一次调用的成本：
//
//	cost = (inputUnits/1000)*InputRate + (outputUnits/1000)*OutputRate
//
// 结果四舍五入到 6 位小数，避免小额调用的系统性少计。
func (c *Catalog) Cost(modelID string, inputUnits, outputUnits int) (float64, error) {
	d, err := c.Describe(modelID)
	if err != nil {
		return 0, err
	}
	if inputUnits < 0 || outputUnits < 0 {
		return 0, types.NewErrorf(types.ErrInvalidInput, "negative unit count for model %s", modelID)
	}

	cost := float64(inputUnits)/1000*d.InputRate + float64(outputUnits)/1000*d.OutputRate
	return roundCost(cost), nil
}

// EstimateCost 估算给定总单位数的调用成本。
// 按经验比例拆分输入/输出（约 40% 输入、60% 输出）。
func (c *Catalog) EstimateCost(modelID string, units int) (float64, error) {
	inputUnits := int(float64(units) * 0.4)
	outputUnits := units - inputUnits
	return c.Cost(modelID, inputUnits, outputUnits)
}

func roundCost(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// String 便于日志输出。
func (d Descriptor) String() string {
	return fmt.Sprintf("%s(in=%.4f out=%.4f %s/%s)", d.ID, d.InputRate, d.OutputRate, d.Speed, d.Quality)
}
