// Package surveyexport 生成“勘测交接包（ZIP）”：把一个点位任务的
// 结构化数据、检查清单回答、导入原文、附件与配置文件打包为单个归档，
// 便于外业结束后整体移交或归档备份。
package surveyexport

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	sqliteadapter "survey-manager/internal/adapters/store/sqlite"
	"survey-manager/internal/app"
	"survey-manager/internal/domain/model"
	"survey-manager/internal/platform/hash"
)

// Options 定义一次交接包导出的参数。
type Options struct {
	SurveyID int64

	// DBPath 用于决定导出落盘目录（默认写入 db 同级目录下 exports/）。
	DBPath string

	// ChecklistPath/ThresholdPath 指向本次外业使用的配置文件，
	// 随包带走以便复核时追溯阈值与清单版本。
	ChecklistPath string
	ThresholdPath string

	Note string

	// ExportDir 可选：显式指定导出目录。
	ExportDir string
}

// FileHashEntry 描述 ZIP 内单个文件的完整性信息。
type FileHashEntry struct {
	Path      string `json:"path"`       // ZIP 内路径（使用 "/" 分隔）
	SHA256    string `json:"sha256"`     // 文件内容 SHA-256
	SizeBytes int64  `json:"size_bytes"` // 原始字节数
	Kind      string `json:"kind"`       // artifact|import|config|manifest
}

// ManifestArtifact 把附件元数据与它在 ZIP 内的位置对应起来。
type ManifestArtifact struct {
	Artifact model.ArtifactInfo `json:"artifact"`
	ZipPath  string             `json:"zip_path"`
}

// ManifestImport 记录一条仪器文本导入在 ZIP 内的位置。
type ManifestImport struct {
	MeasurementID int64            `json:"measurement_id"`
	Kind          model.ImportKind `json:"kind"`
	Filename      string           `json:"filename"`
	ImportedAt    int64            `json:"imported_at"`
	ZipPath       string           `json:"zip_path"`
}

// Manifest 是交接包的结构化清单（manifest.json）。
type Manifest struct {
	Schema      string `json:"schema"`
	GeneratedAt int64  `json:"generated_at"`

	App struct {
		Version   string `json:"version"`
		Commit    string `json:"commit"`
		BuildTime string `json:"build_time"`
	} `json:"app"`

	Survey       *model.SurveyOverview   `json:"survey"`
	Measurements []model.MeasurementFull `json:"measurements"`
	Answers      []model.PreflightAnswer `json:"answers"`
	Artifacts    []ManifestArtifact      `json:"artifacts"`
	Imports      []ManifestImport        `json:"imports"`
	Files        []FileHashEntry         `json:"files"`
	Warnings     []string                `json:"warnings,omitempty"`
	Note         string                  `json:"note,omitempty"`
	Stats        map[string]any          `json:"stats,omitempty"`
}

// Result 是一次导出的摘要输出。
type Result struct {
	SurveyID   int64    `json:"survey_id"`
	ZipPath    string   `json:"zip_path"`
	ZipSHA256  string   `json:"zip_sha256"`
	Warnings   []string `json:"warnings,omitempty"`
	StartedAt  int64    `json:"started_at"`
	FinishedAt int64    `json:"finished_at"`
}

const manifestSchemaV1 = "survey_manager.survey_export_manifest.v1"

// Generate 生成勘测交接包。
//
// 输出 ZIP 内容（v1）：
// - manifest.json：任务/测量/检查单回答/附件/导入的结构化清单
// - hashes.sha256：ZIP 内各文件（除自身）sha256 列表（sha256sum 兼容格式）
// - images/..：点位照片
// - measurements/{id}/..：该测量会话的导入原文与图片/图表/附件
// - config/..：本次外业使用的检查清单模板与质量阈值文件
func Generate(ctx context.Context, store *sqliteadapter.Store, opts Options) (*Result, error) {
	startedAt := time.Now().Unix()

	if opts.SurveyID <= 0 {
		return nil, fmt.Errorf("survey_id is required")
	}

	defaults := app.DefaultConfig()
	dbPath := strings.TrimSpace(opts.DBPath)
	if dbPath == "" {
		dbPath = defaults.DBPath
	}
	checklistPath := strings.TrimSpace(opts.ChecklistPath)
	if checklistPath == "" {
		checklistPath = defaults.ChecklistPath
	}
	thresholdPath := strings.TrimSpace(opts.ThresholdPath)
	if thresholdPath == "" {
		thresholdPath = defaults.ThresholdPath
	}

	exportDir := strings.TrimSpace(opts.ExportDir)
	if exportDir == "" {
		exportDir = filepath.Join(filepath.Dir(dbPath), "exports")
	}
	if err := os.MkdirAll(exportDir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	overview, err := store.GetSurveyOverview(ctx, opts.SurveyID)
	if err != nil {
		return nil, err
	}
	if overview == nil {
		return nil, fmt.Errorf("survey not found: %d", opts.SurveyID)
	}

	measurements, err := store.ListMeasurementsFull(ctx, opts.SurveyID)
	if err != nil {
		return nil, err
	}
	answers, err := store.ListPreflightAnswers(ctx, opts.SurveyID)
	if err != nil {
		return nil, err
	}

	var warnings []string

	zipName := fmt.Sprintf("survey_%d_export_%d.zip", opts.SurveyID, time.Now().Unix())
	zipPath := filepath.Join(exportDir, zipName)
	f, err := os.Create(zipPath)
	if err != nil {
		return nil, fmt.Errorf("create zip: %w", err)
	}
	defer func() { _ = f.Close() }()

	zw := zip.NewWriter(f)
	defer func() { _ = zw.Close() }()

	var fileHashes []FileHashEntry
	usedPaths := make(map[string]int)

	// uniquePath 处理同目录下重名附件：第二个起追加 _2、_3 后缀。
	uniquePath := func(p string) string {
		n := usedPaths[p]
		usedPaths[p] = n + 1
		if n == 0 {
			return p
		}
		ext := filepath.Ext(p)
		return fmt.Sprintf("%s_%d%s", strings.TrimSuffix(p, ext), n+1, ext)
	}

	addBytes := func(zipPath string, data []byte, kind string) bool {
		sum, size, err := writeZipFileFromBytes(zw, zipPath, data)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("skip %s: %v", zipPath, err))
			return false
		}
		fileHashes = append(fileHashes, FileHashEntry{
			Path:      zipPath,
			SHA256:    sum,
			SizeBytes: size,
			Kind:      kind,
		})
		return true
	}

	// 附件：从库内 blob 直接写入 ZIP。缺失或读取失败不阻断导出，
	// 但必须在 manifest 里留下痕迹。
	var manifestArtifacts []ManifestArtifact
	addArtifacts := func(kind model.ArtifactKind, ownerID int64, dir string) error {
		infos, err := store.ListArtifacts(ctx, kind, ownerID)
		if err != nil {
			return err
		}
		for _, info := range infos {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			a, err := store.GetArtifact(ctx, kind, info.ID)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("read %s %d: %v", kind, info.ID, err))
				continue
			}
			if a == nil {
				warnings = append(warnings, fmt.Sprintf("%s %d vanished during export", kind, info.ID))
				continue
			}
			name := filepath.Base(strings.TrimSpace(a.Filename))
			if name == "" || name == "." {
				name = fmt.Sprintf("%s_%d", kind, a.ID)
			}
			zp := uniquePath(filepath.ToSlash(filepath.Join(dir, name)))
			if addBytes(zp, a.Blob, "artifact") {
				manifestArtifacts = append(manifestArtifacts, ManifestArtifact{
					Artifact: a.ArtifactInfo,
					ZipPath:  zp,
				})
			}
		}
		return nil
	}

	if err := addArtifacts(model.ArtifactSiteImage, opts.SurveyID, "images"); err != nil {
		return nil, err
	}

	// 测量会话：导入原文 + 三类附件。
	var manifestImports []ManifestImport
	for _, m := range measurements {
		base := fmt.Sprintf("measurements/%d", m.MeasurementID)

		for _, kind := range []model.ImportKind{model.ImportProject, model.ImportSet} {
			imp, err := store.GetImport(ctx, m.MeasurementID, kind)
			if err != nil {
				return nil, err
			}
			if imp == nil {
				continue
			}
			name := filepath.Base(strings.TrimSpace(imp.Filename))
			if name == "" || name == "." {
				name = fmt.Sprintf("%s.txt", kind)
			}
			zp := uniquePath(filepath.ToSlash(filepath.Join(base, name)))
			if addBytes(zp, []byte(imp.RawText), "import") {
				manifestImports = append(manifestImports, ManifestImport{
					MeasurementID: m.MeasurementID,
					Kind:          kind,
					Filename:      imp.Filename,
					ImportedAt:    imp.ImportedAt,
					ZipPath:       zp,
				})
			}
		}

		if err := addArtifacts(model.ArtifactMeasurementImage, m.MeasurementID, base+"/images"); err != nil {
			return nil, err
		}
		if err := addArtifacts(model.ArtifactMeasurementGraph, m.MeasurementID, base+"/graphs"); err != nil {
			return nil, err
		}
		if err := addArtifacts(model.ArtifactSiteFile, m.MeasurementID, base+"/files"); err != nil {
			return nil, err
		}
	}

	// 配置文件：可追溯本次外业的清单与阈值版本。
	for _, cfg := range []string{checklistPath, thresholdPath} {
		zp := filepath.ToSlash(filepath.Join("config", filepath.Base(cfg)))
		sum, size, err := writeZipFileFromDisk(zw, cfg, zp)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("skip config %s: %v", cfg, err))
			continue
		}
		fileHashes = append(fileHashes, FileHashEntry{
			Path:      zp,
			SHA256:    sum,
			SizeBytes: size,
			Kind:      "config",
		})
	}

	// manifest.json（先写入，再把它的 hash 也记录进 hashes.sha256）
	manifest := Manifest{
		Schema:       manifestSchemaV1,
		GeneratedAt:  time.Now().Unix(),
		Survey:       overview,
		Measurements: measurements,
		Answers:      answers,
		Artifacts:    manifestArtifacts,
		Imports:      manifestImports,
		Warnings:     warnings,
		Note:         strings.TrimSpace(opts.Note),
		Stats: map[string]any{
			"measurement_count": len(measurements),
			"answer_count":      len(answers),
			"artifact_count":    len(manifestArtifacts),
			"import_count":      len(manifestImports),
		},
	}
	manifest.App.Version = app.Version
	manifest.App.Commit = app.Commit
	manifest.App.BuildTime = app.BuildTime

	// 排序：让 manifest 与 hashes.sha256 尽量稳定（便于对比）。
	sort.Slice(fileHashes, func(i, j int) bool { return fileHashes[i].Path < fileHashes[j].Path })
	manifest.Files = fileHashes

	manifestRaw, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	manifestSum, manifestSize, err := writeZipFileFromBytes(zw, "manifest.json", manifestRaw)
	if err != nil {
		return nil, fmt.Errorf("write manifest to zip: %w", err)
	}
	fileHashes = append(fileHashes, FileHashEntry{
		Path:      "manifest.json",
		SHA256:    manifestSum,
		SizeBytes: manifestSize,
		Kind:      "manifest",
	})

	// hashes.sha256（sha256sum 兼容格式，默认不包含自身）
	sort.Slice(fileHashes, func(i, j int) bool { return fileHashes[i].Path < fileHashes[j].Path })
	hashLines := make([]string, 0, len(fileHashes)+4)
	hashLines = append(hashLines, "# survey-manager export hash list")
	hashLines = append(hashLines, fmt.Sprintf("# generated_at=%d", time.Now().Unix()))
	hashLines = append(hashLines, "# format: <sha256><two spaces><path>")
	for _, fh := range fileHashes {
		hashLines = append(hashLines, fmt.Sprintf("%s  %s", fh.SHA256, fh.Path))
	}
	hashLines = append(hashLines, "")
	if _, _, err := writeZipFileFromBytes(zw, "hashes.sha256", []byte(strings.Join(hashLines, "\n"))); err != nil {
		return nil, fmt.Errorf("write hashes.sha256 to zip: %w", err)
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close zip writer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close zip file: %w", err)
	}

	zipSum, _, err := hash.File(zipPath)
	if err != nil {
		return nil, fmt.Errorf("hash zip: %w", err)
	}

	return &Result{
		SurveyID:   opts.SurveyID,
		ZipPath:    zipPath,
		ZipSHA256:  zipSum,
		Warnings:   warnings,
		StartedAt:  startedAt,
		FinishedAt: time.Now().Unix(),
	}, nil
}

func writeZipFileFromDisk(zw *zip.Writer, srcPath, zipPath string) (sum string, size int64, err error) {
	fi, err := os.Stat(srcPath)
	if err != nil {
		return "", 0, err
	}
	if fi.IsDir() {
		return "", 0, fmt.Errorf("is a directory")
	}

	hdr, err := zip.FileInfoHeader(fi)
	if err != nil {
		return "", 0, err
	}
	hdr.Name = zipPath
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return "", 0, err
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return "", 0, err
	}
	defer src.Close()

	hasher := sha256.New()
	n, err := io.Copy(io.MultiWriter(w, hasher), src)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(hasher.Sum(nil)), n, nil
}

func writeZipFileFromBytes(zw *zip.Writer, zipPath string, b []byte) (sum string, size int64, err error) {
	hdr := &zip.FileHeader{
		Name:     zipPath,
		Method:   zip.Deflate,
		Modified: time.Now(),
	}
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return "", 0, err
	}
	hasher := sha256.New()
	n, err := io.Copy(io.MultiWriter(w, hasher), bytes.NewReader(b))
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(hasher.Sum(nil)), n, nil
}
