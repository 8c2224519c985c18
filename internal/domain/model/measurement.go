package model

// Measurement 表示一次测量会话（对应 measurements 表）。
// 一次会话聚合一组导入产物：project/set 文本、照片、图表与通用附件。
type Measurement struct {
	ID        int64  // 自增主键
	SurveyID  int64  // 关联任务
	Title     string // 会话标题
	Note      string // 备注
	CreatedAt int64  // 创建时间（Unix 秒）
}

// MeasurementFull 对应 v_measurements_full 视图的一行：
// 测量会话加上所属任务的摘要列，以及可能为空的导入文件名。
type MeasurementFull struct {
	MeasurementID   int64        // 测量会话 ID
	Title           string       // 会话标题
	Note            string       // 备注
	CreatedAt       int64        // 创建时间（Unix 秒）
	SurveyID        int64        // 所属任务 ID
	SurveyName      string       // 所属任务名称
	SurveyCode      string       // 所属任务编号
	SurveyStatus    SurveyStatus // 所属任务状态
	ProjectFilename string       // project 导入文件名；未导入时为空
	SetFilename     string       // set 导入文件名；未导入时为空
}

// ImportKind 表示测量文本导入的种类。
type ImportKind string

const (
	// ImportProject 仪器导出的 *.project.txt 汇总文件。
	ImportProject ImportKind = "project"
	// ImportSet 仪器导出的 *.set.txt 逐组数据文件。
	ImportSet ImportKind = "set"
)

// ImportFile 表示一条测量文本导入记录
// （对应 measurement_project / measurement_set 表，按 Kind 区分）。
// 每个测量会话下同种导入只保留一行，重复导入整体替换并重置导入时间。
type ImportFile struct {
	ID            int64      // 自增主键
	MeasurementID int64      // 关联测量会话
	Kind          ImportKind // 导入种类
	Filename      string     // 原始文件名
	RawText       string     // 原始文本内容
	MetaJSON      []byte     // 解析得到的结构化元数据（JSON）
	ImportedAt    int64      // 导入时间（Unix 秒）
}

// ProjectMeta 是 *.project.txt 解析后的结构化元数据。
type ProjectMeta struct {
	Keys map[string]string `json:"keys"` // 文件中全部 Key: Value 对（保留首个出现的原始文本）
	Site SiteInfo          `json:"site"` // 归一化的点位信息
	QM   QualityMetrics    `json:"qm"`   // 质量指标
}

// SiteInfo 是从 project 文件归一化出的点位与仪器信息。
// 字段保留文件中的原始文本，缺失的键为空串。
type SiteInfo struct {
	ProjectName        string `json:"project_name,omitempty"`
	SiteName           string `json:"site_name,omitempty"`
	SiteCode           string `json:"site_code,omitempty"`
	Latitude           string `json:"latitude,omitempty"`
	Longitude          string `json:"longitude,omitempty"`
	Elevation          string `json:"elevation,omitempty"`
	Gradient           string `json:"gradient,omitempty"`
	SetupHeight        string `json:"setup_height,omitempty"`
	TransferHeight     string `json:"transfer_height,omitempty"`
	FactoryHeight      string `json:"factory_height,omitempty"`
	BarometerFactor    string `json:"barometer_factor,omitempty"`
	PolarX             string `json:"polar_x,omitempty"`
	PolarY             string `json:"polar_y,omitempty"`
	Operator           string `json:"operator,omitempty"`
	Instrument         string `json:"instrument,omitempty"`
	InstrumentSN       string `json:"instrument_sn,omitempty"`
	AcquisitionVersion string `json:"acquisition_version,omitempty"`
	ProcessingVersion  string `json:"processing_version,omitempty"`
	ProcessingDate     string `json:"processing_date,omitempty"`
	ProcessingTime     string `json:"processing_time,omitempty"`
	Gravity            string `json:"gravity,omitempty"`
}

// QualityMetrics 是 project 文件中的核心质量指标。
// 指针字段为 nil 表示文件未给出该指标。
type QualityMetrics struct {
	ProjectSetScatter *float64 `json:"project_set_scatter"` // 组间离散度 (µGal)
	SetScatterOverall *float64 `json:"set_scatter_overall"` // 总体组离散 (µGal)
	UncertaintyPerSet *float64 `json:"uncertainty_per_set"` // 单组不确定度 (µGal)
	TotalUncertainty  *float64 `json:"total_uncertainty"`   // 总不确定度 (µGal)
	Gravity           *float64 `json:"gravity"`             // 重力值 (µGal)
}

// SetMeta 是 *.set.txt 解析后的结构化元数据。
type SetMeta struct {
	Rows []SetRow `json:"rows"` // 逐组数据
}

// SetRow 是 set 文件中的一行逐组数据。
// 数值列解析失败时为 nil，不中断整行。
type SetRow struct {
	ID           string   `json:"id"`             // 组号（原始文本，缺失时按行序补号）
	SetScatter   *float64 `json:"set_scatter"`    // 组内离散 (µGal)
	SetSigma     *float64 `json:"set_sigma"`      // 组误差 (µGal)
	DropRMS      *float64 `json:"drop_rms"`       // 落体不确定度 (µGal)
	DropAccept   *float64 `json:"drop_accept"`    // 接受的落体次数
	DropReject   *float64 `json:"drop_reject"`    // 剔除的落体次数
	DropAccRatio *float64 `json:"drop_acc_ratio"` // 接受率 (%)，接受与剔除均存在时计算
}
