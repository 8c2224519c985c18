package model

// ChecklistBundle 是测前检查清单模板文件的顶层结构。
type ChecklistBundle struct {
	Version     string           `yaml:"version"`
	BundleType  string           `yaml:"bundle_type"`
	Maintainer  string           `yaml:"maintainer"`
	Description string           `yaml:"description"`
	Stages      []ChecklistStage `yaml:"stages"`
}

// ChecklistStage 是清单中的一个阶段，向导按阶段顺序推进。
type ChecklistStage struct {
	Title  string          `yaml:"title"`
	Steps  []ChecklistStep `yaml:"steps"`
	Issues []string        `yaml:"issues"`
	Refs   []string        `yaml:"refs"`
}

// ChecklistStep 定义一个检查条目。Step 是稳定编号（如 "1.3"），
// 落库时作为 preflight_answers.step_code。
type ChecklistStep struct {
	Step      string `yaml:"step"`
	Text      string `yaml:"text"`
	ValueType string `yaml:"value_type"` // 可选：text/number，空表示纯勾选项
}

// ThresholdBundle 是质量阈值配置文件的顶层结构。
// 不同勘测场景（实验室/野外/踏勘）各有一套阈值档位。
type ThresholdBundle struct {
	Version     string                      `yaml:"version"`
	BundleType  string                      `yaml:"bundle_type"`
	Maintainer  string                      `yaml:"maintainer"`
	Description string                      `yaml:"description"`
	Default     string                      `yaml:"default"`
	Profiles    map[string]ThresholdProfile `yaml:"profiles"`
}

// ThresholdProfile 是一套场景阈值，键为指标缩写（pss/tu/ups/ss/ssov/acc）。
type ThresholdProfile map[string]ThresholdLadder

// ThresholdLadder 是单个指标的分级阈值梯。
// 除 acc（接受率，越高越好）外，各指标数值越低越好。
type ThresholdLadder struct {
	Good     *float64 `yaml:"g"`
	Warn     *float64 `yaml:"w"`
	Poor     *float64 `yaml:"p"`
	Bad      *float64 `yaml:"b"`
	Unusable *float64 `yaml:"u"`
}

// MetricStatus 是指标经阈值梯分级后的结论。
type MetricStatus string

const (
	MetricGood     MetricStatus = "good"
	MetricWarn     MetricStatus = "warn"
	MetricPoor     MetricStatus = "poor"
	MetricBad      MetricStatus = "bad"
	MetricUnusable MetricStatus = "unusable"
)
