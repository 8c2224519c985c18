package model

// ArtifactKind 表示二进制附件的归属类别，同时决定其落库表。
type ArtifactKind string

const (
	// ArtifactSiteImage 点位照片，直接挂在任务下（site_images 表）。
	ArtifactSiteImage ArtifactKind = "site_image"
	// ArtifactMeasurementImage 测量照片（measurement_images 表）。
	ArtifactMeasurementImage ArtifactKind = "measurement_image"
	// ArtifactMeasurementGraph 仪器导出的图表（measurement_graphs 表）。
	ArtifactMeasurementGraph ArtifactKind = "measurement_graph"
	// ArtifactSiteFile 测量会话附带的通用文件（site_files 表）。
	ArtifactSiteFile ArtifactKind = "site_file"
)

// ValidArtifactKind 判断给定类别是否为合法枚举值。
func ValidArtifactKind(k ArtifactKind) bool {
	switch k {
	case ArtifactSiteImage, ArtifactMeasurementImage, ArtifactMeasurementGraph, ArtifactSiteFile:
		return true
	}
	return false
}

// ArtifactInfo 是不含二进制内容的附件元数据，用于列表展示。
// SHA256 与 SizeBytes 由摄入层计算写入，存储层只保管不校验；
// 哈希列仅建普通索引，重复内容允许多行并存。
type ArtifactInfo struct {
	ID         int64        // 自增主键
	OwnerID    int64        // 所属任务或测量会话 ID（取决于 Kind）
	Kind       ArtifactKind // 附件类别
	Filename   string       // 原始文件名
	MimeType   string       // MIME 类型
	SizeBytes  int64        // 字节大小
	SHA256     string       // 内容哈希（十六进制）
	Annotation string       // 说明文字（图片为 caption，其余为 note）
	ImportedAt int64        // 导入时间（Unix 秒）
}

// Artifact 是携带二进制内容的完整附件记录。
type Artifact struct {
	ArtifactInfo
	Blob []byte // 文件内容
}
