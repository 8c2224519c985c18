package app

// Config 存放应用级默认路径配置。
type Config struct {
	DBPath        string
	ChecklistPath string
	ThresholdPath string
}

// DefaultConfig 返回本地开发环境的默认配置。
func DefaultConfig() Config {
	return Config{
		DBPath:        "data/surveys.db",
		ChecklistPath: "checklists/preflight_checklist.yaml",
		ThresholdPath: "checklists/quality_thresholds.yaml",
	}
}
