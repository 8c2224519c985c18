package model

// SurveyStatus 表示勘测任务的生命周期阶段。
type SurveyStatus string

const (
	// StatusNew 新建任务，尚未开始任何工作。
	StatusNew SurveyStatus = "new"
	// StatusPreflight 正在填写测前检查清单。
	StatusPreflight SurveyStatus = "preflight"
	// StatusMeasurements 正在导入测量数据。
	StatusMeasurements SurveyStatus = "measurements"
	// StatusCompleted 任务已完成。
	StatusCompleted SurveyStatus = "completed"
)

// ValidStatus 判断给定状态是否为合法枚举值。
// 四个状态之间不强制迁移顺序，状态只是标签而非守卫状态机。
func ValidStatus(s SurveyStatus) bool {
	switch s {
	case StatusNew, StatusPreflight, StatusMeasurements, StatusCompleted:
		return true
	}
	return false
}

// Survey 表示一个勘测点位任务（对应 site_surveys 表）。
type Survey struct {
	ID          int64        // 自增主键
	Name        string       // 点位名称
	Code        string       // 点位编号（可选，非唯一，仅建索引）
	Description string       // 描述
	Status      SurveyStatus // 生命周期状态
	CreatedAt   int64        // 创建时间（Unix 秒）
	UpdatedAt   int64        // 最后更新时间（Unix 秒），任何列变更都会刷新
}

// SurveyOverview 是任务列表页使用的聚合摘要。
type SurveyOverview struct {
	Survey
	AnswerCount      int // 已填写的检查项数量
	ImageCount       int // 点位照片数量
	MeasurementCount int // 测量会话数量
}

// PreflightAnswer 表示一条测前检查清单回答（对应 preflight_answers 表）。
// 同一任务下每个清单条目只保留一行，重复填写走覆盖而非追加。
type PreflightAnswer struct {
	ID       int64  // 自增主键
	SurveyID int64  // 关联任务
	StepCode string // 清单条目编号，例如 "1.3"
	Value    string // 自由文本回答
	Checked  bool   // 勾选标记
	Notes    string // 备注
}
