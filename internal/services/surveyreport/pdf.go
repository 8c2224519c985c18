package surveyreport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	sqliteadapter "survey-manager/internal/adapters/store/sqlite"
	"survey-manager/internal/domain/model"
	"survey-manager/internal/platform/hash"
	"survey-manager/internal/services/analysis"

	"github.com/phpdave11/gofpdf"
)

// 测量报告 PDF（measurement_report）
//
// 设计目标：
// - 先“能用”：输出一个可下载、可归档的单测量 PDF 报告
// - 先“可核对”：质量指标带阈值分级结论，附件列出哈希便于核对原件
// - 先“可扩展”：png/jpeg 附件内嵌在报告末尾，后续可加多测量汇总页等
//
// 注意：PDF 属于二进制产物，按需生成，不落库。下载走 /api/measurements/{id}/report。

type Options struct {
	MeasurementID int64
	DBPath        string
	Operator      string
	Note          string
	// Thresholds 用于质量指标分级；Profile 为空时取配置的默认档位。
	Thresholds model.ThresholdBundle
	Profile    string
	// Checklist 可选，用于把 step_code 还原成人类可读的条目文本。
	Checklist *model.ChecklistBundle
}

type Result struct {
	PDFPath     string   `json:"pdf_path"`
	PDFSHA256   string   `json:"pdf_sha256"`
	Warnings    []string `json:"warnings,omitempty"`
	GeneratedAt int64    `json:"generated_at"`
}

const pdfGeneratorVer = "surveyreport-0.1.0"

// Generate 生成单个测量会话的 PDF 报告并写到 DB 同级的 reports 目录。
func Generate(ctx context.Context, store *sqliteadapter.Store, opts Options) (*Result, error) {
	if opts.MeasurementID <= 0 {
		return nil, fmt.Errorf("measurement_id is required")
	}
	dbPath := strings.TrimSpace(opts.DBPath)
	if dbPath == "" {
		return nil, fmt.Errorf("db_path is required")
	}
	operator := strings.TrimSpace(opts.Operator)
	if operator == "" {
		operator = "system"
	}

	full, err := store.GetMeasurementFull(ctx, opts.MeasurementID)
	if err != nil {
		return nil, fmt.Errorf("get measurement: %w", err)
	}
	if full == nil {
		return nil, fmt.Errorf("measurement not found: %d", opts.MeasurementID)
	}

	warnings := []string{}

	projectImp, err := store.GetImport(ctx, opts.MeasurementID, model.ImportProject)
	if err != nil {
		warnings = append(warnings, "load project import failed: "+err.Error())
	}
	setImp, err := store.GetImport(ctx, opts.MeasurementID, model.ImportSet)
	if err != nil {
		warnings = append(warnings, "load set import failed: "+err.Error())
	}

	var projectMeta model.ProjectMeta
	if projectImp != nil {
		if err := json.Unmarshal(projectImp.MetaJSON, &projectMeta); err != nil {
			warnings = append(warnings, "project meta unreadable: "+err.Error())
			projectMeta = model.ProjectMeta{}
		}
	}
	var setMeta model.SetMeta
	if setImp != nil {
		if err := json.Unmarshal(setImp.MetaJSON, &setMeta); err != nil {
			warnings = append(warnings, "set meta unreadable: "+err.Error())
			setMeta = model.SetMeta{}
		}
	}

	images, err := store.ListArtifacts(ctx, model.ArtifactMeasurementImage, opts.MeasurementID)
	if err != nil {
		warnings = append(warnings, "list images failed: "+err.Error())
		images = []model.ArtifactInfo{}
	}
	graphs, err := store.ListArtifacts(ctx, model.ArtifactMeasurementGraph, opts.MeasurementID)
	if err != nil {
		warnings = append(warnings, "list graphs failed: "+err.Error())
		graphs = []model.ArtifactInfo{}
	}
	files, err := store.ListArtifacts(ctx, model.ArtifactSiteFile, opts.MeasurementID)
	if err != nil {
		warnings = append(warnings, "list files failed: "+err.Error())
		files = []model.ArtifactInfo{}
	}

	embeds, embedWarnings := loadEmbeddedImages(ctx, store, images, graphs)
	warnings = append(warnings, embedWarnings...)

	answers, err := store.ListPreflightAnswers(ctx, full.SurveyID)
	if err != nil {
		warnings = append(warnings, "list checklist answers failed: "+err.Error())
		answers = []model.PreflightAnswer{}
	}

	profile := opts.Profile
	if profile == "" {
		profile = opts.Thresholds.Default
	}
	ladders := opts.Thresholds.Profiles[profile]

	now := time.Now().Unix()
	reportDir := filepath.Join(filepath.Dir(dbPath), "reports")
	if err := os.MkdirAll(reportDir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir reports: %w", err)
	}
	pdfPath := filepath.Join(reportDir, fmt.Sprintf("measurement_%d_%d.pdf", opts.MeasurementID, now))

	pdf, utf8OK := buildPDF(buildInput{
		full:      *full,
		project:   projectImp,
		set:       setImp,
		meta:      projectMeta,
		setMeta:   setMeta,
		images:    images,
		graphs:    graphs,
		files:     files,
		embeds:    embeds,
		answers:   answers,
		checklist: opts.Checklist,
		ladders:   ladders,
		profile:   profile,
		operator:  operator,
		note:      opts.Note,
		warnings:  warnings,
		now:       now,
	})
	if !utf8OK {
		// 不支持 UTF-8 字体时，为了保证报告一定能生成，非 ASCII 字符会被替换为 '?'。
		warnings = append(warnings, "pdf utf8 font not available; non-ascii text may be replaced with '?'")
	}
	if err := pdf.OutputFileAndClose(pdfPath); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}

	sum, _, err := hash.File(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("sha256 pdf: %w", err)
	}

	return &Result{
		PDFPath:     pdfPath,
		PDFSHA256:   sum,
		Warnings:    warnings,
		GeneratedAt: now,
	}, nil
}

// embeddedImage 是准备内嵌进 PDF 的图片：blob 已读出并确认可按 imgType 解码。
type embeddedImage struct {
	info    model.ArtifactInfo
	label   string // image|graph
	imgType string // PNG|JPEG
	blob    []byte
}

// 内嵌图片数量上限：现场照片可能很多，报告只收前若干张，其余仍在附件清单里列出。
const maxEmbeddedImages = 12

// loadEmbeddedImages 读出测量照片与图表的 blob，挑出能解码的 png/jpeg 供内嵌。
// 非图片格式静默跳过（附件清单仍会列出），读取或解码失败记 warning。
func loadEmbeddedImages(ctx context.Context, store *sqliteadapter.Store, images, graphs []model.ArtifactInfo) ([]embeddedImage, []string) {
	var out []embeddedImage
	var warnings []string

	add := func(kind model.ArtifactKind, label string, infos []model.ArtifactInfo) {
		for _, info := range infos {
			if len(out) >= maxEmbeddedImages {
				return
			}
			if !looksLikeEmbeddableImage(info) {
				continue
			}
			a, err := store.GetArtifact(ctx, kind, info.ID)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("load %s %s failed: %v", label, info.Filename, err))
				continue
			}
			if a == nil {
				warnings = append(warnings, fmt.Sprintf("%s %s vanished during report generation", label, info.Filename))
				continue
			}
			_, format, err := image.DecodeConfig(bytes.NewReader(a.Blob))
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("%s %s is not a decodable image: %v", label, info.Filename, err))
				continue
			}
			var imgType string
			switch format {
			case "png":
				imgType = "PNG"
			case "jpeg":
				imgType = "JPEG"
			default:
				continue
			}
			out = append(out, embeddedImage{info: info, label: label, imgType: imgType, blob: a.Blob})
		}
	}

	add(model.ArtifactMeasurementImage, "image", images)
	add(model.ArtifactMeasurementGraph, "graph", graphs)
	return out, warnings
}

// looksLikeEmbeddableImage 按 MIME/扩展名粗筛 png/jpeg，省掉对明显非图片的 blob 读取。
func looksLikeEmbeddableImage(info model.ArtifactInfo) bool {
	switch strings.ToLower(strings.TrimSpace(info.MimeType)) {
	case "image/png", "image/jpeg", "image/jpg":
		return true
	}
	switch strings.ToLower(filepath.Ext(info.Filename)) {
	case ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}

type buildInput struct {
	full      model.MeasurementFull
	project   *model.ImportFile
	set       *model.ImportFile
	meta      model.ProjectMeta
	setMeta   model.SetMeta
	images    []model.ArtifactInfo
	graphs    []model.ArtifactInfo
	files     []model.ArtifactInfo
	embeds    []embeddedImage
	answers   []model.PreflightAnswer
	checklist *model.ChecklistBundle
	ladders   model.ThresholdProfile
	profile   string
	operator  string
	note      string
	warnings  []string
	now       int64
}

func buildPDF(in buildInput) (*gofpdf.Fpdf, bool) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(14, 14, 14)
	pdf.SetAutoPageBreak(true, 14)
	pdf.SetTitle("Site Survey Manager - Measurement Report", false)

	fontFamily, utf8OK := initPDFUnicodeFont(pdf)

	pdf.AddPage()

	// 标题
	pdf.SetFont(fontFamily, "B", 16)
	pdf.CellFormat(0, 9, "Measurement Report", "", 1, "L", false, 0, "")

	pdf.SetFont(fontFamily, "", 10)
	pdf.SetTextColor(60, 60, 60)
	pdf.CellFormat(0, 6, fmt.Sprintf("Generated at: %s (%s)", fmtTime(in.now), pdfGeneratorVer), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Operator: %s", safeText(in.operator, utf8OK)), "", 1, "L", false, 0, "")
	if strings.TrimSpace(in.note) != "" {
		pdf.MultiCell(0, 5, fmt.Sprintf("Note: %s", safeText(in.note, utf8OK)), "", "L", false)
	}
	pdf.Ln(2)

	// Summary
	sectionTitle(pdf, fontFamily, "1. Summary")
	kv(pdf, fontFamily, utf8OK, "Survey", in.full.SurveyName)
	kv(pdf, fontFamily, utf8OK, "Survey Code", in.full.SurveyCode)
	kv(pdf, fontFamily, utf8OK, "Survey Status", string(in.full.SurveyStatus))
	kv(pdf, fontFamily, utf8OK, "Measurement", in.full.Title)
	kv(pdf, fontFamily, utf8OK, "Measurement ID", fmt.Sprintf("%d", in.full.MeasurementID))
	kv(pdf, fontFamily, utf8OK, "Created At", fmtTime(in.full.CreatedAt))
	kv(pdf, fontFamily, utf8OK, "Measurement Note", in.full.Note)
	pdf.Ln(2)

	// Warnings（缺数据/回退行为显式写进 PDF）
	localWarnings := append([]string{}, in.warnings...)
	if !utf8OK {
		localWarnings = append(localWarnings, "pdf utf8 font not available; non-ascii text may be replaced with '?'")
	}
	if len(localWarnings) > 0 {
		sectionTitle(pdf, fontFamily, "Warnings")
		pdf.SetFont(fontFamily, "", 9)
		pdf.SetTextColor(120, 80, 0)
		for _, w := range localWarnings {
			pdf.MultiCell(0, 4.5, "- "+safeText(w, utf8OK), "", "L", false)
		}
		pdf.Ln(2)
	}

	// Quality metrics
	sectionTitle(pdf, fontFamily, fmt.Sprintf("2. Quality Metrics (profile: %s)", safeText(in.profile, utf8OK)))
	if in.project == nil {
		emptyHint(pdf, fontFamily, "(no project import)")
	} else {
		qm := in.meta.QM
		metricLine(pdf, fontFamily, utf8OK, "Project Set Scatter", qm.ProjectSetScatter, "uGal", analysis.Classify(qm.ProjectSetScatter, in.ladders["pss"], false))
		metricLine(pdf, fontFamily, utf8OK, "Total Uncertainty", qm.TotalUncertainty, "uGal", analysis.Classify(qm.TotalUncertainty, in.ladders["tu"], false))
		metricLine(pdf, fontFamily, utf8OK, "Set Scatter (overall)", qm.SetScatterOverall, "uGal", analysis.Classify(qm.SetScatterOverall, in.ladders["ssov"], false))
		metricLine(pdf, fontFamily, utf8OK, "Uncertainty per Set", qm.UncertaintyPerSet, "uGal", analysis.Classify(qm.UncertaintyPerSet, in.ladders["ups"], false))
		metricLine(pdf, fontFamily, utf8OK, "Gravity", qm.Gravity, "uGal", "")
	}
	pdf.Ln(2)

	// Site details
	sectionTitle(pdf, fontFamily, "3. Site Details")
	if in.project == nil {
		emptyHint(pdf, fontFamily, "(no project import)")
	} else {
		site := in.meta.Site
		kv(pdf, fontFamily, utf8OK, "Project Name", site.ProjectName)
		kv(pdf, fontFamily, utf8OK, "Site Name", site.SiteName)
		kv(pdf, fontFamily, utf8OK, "Site Code", site.SiteCode)
		kv(pdf, fontFamily, utf8OK, "Latitude", site.Latitude)
		kv(pdf, fontFamily, utf8OK, "Longitude", site.Longitude)
		kv(pdf, fontFamily, utf8OK, "Elevation (m)", site.Elevation)
		kv(pdf, fontFamily, utf8OK, "Gradient", site.Gradient)
		kv(pdf, fontFamily, utf8OK, "Setup Height (cm)", site.SetupHeight)
		kv(pdf, fontFamily, utf8OK, "Transfer Height (cm)", site.TransferHeight)
		kv(pdf, fontFamily, utf8OK, "Factory Height (cm)", site.FactoryHeight)
		kv(pdf, fontFamily, utf8OK, "Instrument", site.Instrument)
		kv(pdf, fontFamily, utf8OK, "Instrument S/N", site.InstrumentSN)
		kv(pdf, fontFamily, utf8OK, "Acquisition Version", site.AcquisitionVersion)
		kv(pdf, fontFamily, utf8OK, "Processing Version", site.ProcessingVersion)
		kv(pdf, fontFamily, utf8OK, "Processing Date", site.ProcessingDate)
		kv(pdf, fontFamily, utf8OK, "Processing Time", site.ProcessingTime)
	}
	pdf.Ln(2)

	// Acquisition totals
	sectionTitle(pdf, fontFamily, "4. Acquisition Totals")
	if in.project == nil {
		emptyHint(pdf, fontFamily, "(no project import)")
	} else {
		totals := []struct{ label, key string }{
			{"Number of Sets", "Number of Sets"},
			{"Number of Drops", "Number of Drops"},
			{"Sets Processed", "Set #s Processed"},
			{"Sets Ignored", "Number of Sets NOT Processed"},
			{"Drops Accepted", "Total Drops Accepted"},
			{"Drops Rejected", "Total Drops Rejected"},
			{"Fringes Acquired", "Total Fringes Acquired"},
			{"Fringe Start", "Fringe Start"},
			{"Processed Fringes", "Processed Fringes"},
		}
		for _, t := range totals {
			kv(pdf, fontFamily, utf8OK, t.label, in.meta.Keys[t.key])
		}
	}
	pdf.Ln(2)

	// Set table
	sectionTitle(pdf, fontFamily, "5. Sets")
	if in.set == nil || len(in.setMeta.Rows) == 0 {
		emptyHint(pdf, fontFamily, "(no set import)")
	} else {
		const maxRows = 200
		rows := in.setMeta.Rows
		if len(rows) > maxRows {
			rows = rows[:maxRows]
		}
		pdf.SetFont(fontFamily, "B", 9)
		pdf.SetTextColor(20, 20, 20)
		pdf.CellFormat(16, 5, "Set", "B", 0, "L", false, 0, "")
		pdf.CellFormat(28, 5, "Scatter", "B", 0, "R", false, 0, "")
		pdf.CellFormat(28, 5, "Error", "B", 0, "R", false, 0, "")
		pdf.CellFormat(28, 5, "Uncert", "B", 0, "R", false, 0, "")
		pdf.CellFormat(24, 5, "Accept", "B", 0, "R", false, 0, "")
		pdf.CellFormat(24, 5, "Reject", "B", 0, "R", false, 0, "")
		pdf.CellFormat(24, 5, "Acc %", "B", 1, "R", false, 0, "")
		pdf.SetFont(fontFamily, "", 9)
		pdf.SetTextColor(40, 40, 40)
		for _, r := range rows {
			pdf.CellFormat(16, 4.8, safeText(r.ID, utf8OK), "", 0, "L", false, 0, "")
			pdf.CellFormat(28, 4.8, fmtFloat(r.SetScatter), "", 0, "R", false, 0, "")
			pdf.CellFormat(28, 4.8, fmtFloat(r.SetSigma), "", 0, "R", false, 0, "")
			pdf.CellFormat(28, 4.8, fmtFloat(r.DropRMS), "", 0, "R", false, 0, "")
			pdf.CellFormat(24, 4.8, fmtFloat(r.DropAccept), "", 0, "R", false, 0, "")
			pdf.CellFormat(24, 4.8, fmtFloat(r.DropReject), "", 0, "R", false, 0, "")
			pdf.CellFormat(24, 4.8, fmtFloat(r.DropAccRatio), "", 1, "R", false, 0, "")
		}
		if len(in.setMeta.Rows) > maxRows {
			pdf.SetTextColor(90, 90, 90)
			pdf.MultiCell(0, 4.5, fmt.Sprintf("(%d more rows omitted)", len(in.setMeta.Rows)-maxRows), "", "L", false)
		}
	}
	pdf.Ln(2)

	// Preflight checklist（只列出已填写的条目）
	sectionTitle(pdf, fontFamily, "6. Preflight Checklist")
	stepText := map[string]string{}
	if in.checklist != nil {
		for _, stage := range in.checklist.Stages {
			for _, step := range stage.Steps {
				stepText[step.Step] = step.Text
			}
		}
	}
	answered := 0
	for _, a := range in.answers {
		if !a.Checked && strings.TrimSpace(a.Value) == "" {
			continue
		}
		answered++
		mark := "[ ]"
		if a.Checked {
			mark = "[x]"
		}
		line := fmt.Sprintf("%s %s", mark, a.StepCode)
		if text := stepText[a.StepCode]; text != "" {
			line += " " + safeText(text, utf8OK)
		}
		if strings.TrimSpace(a.Value) != "" {
			line += " = " + safeText(a.Value, utf8OK)
		}
		pdf.SetFont(fontFamily, "", 9)
		pdf.SetTextColor(30, 30, 30)
		pdf.MultiCell(0, 4.5, line, "", "L", false)
	}
	if answered == 0 {
		emptyHint(pdf, fontFamily, "(no answers)")
	}
	pdf.Ln(2)

	// Attachments
	sectionTitle(pdf, fontFamily, "7. Attachments")
	attachmentLines := 0
	if in.project != nil {
		attachmentLine(pdf, fontFamily, utf8OK, "project", in.project.Filename, fmtTime(in.project.ImportedAt), "")
		attachmentLines++
	}
	if in.set != nil {
		attachmentLine(pdf, fontFamily, utf8OK, "set", in.set.Filename, fmtTime(in.set.ImportedAt), "")
		attachmentLines++
	}
	for _, group := range []struct {
		label string
		items []model.ArtifactInfo
	}{
		{"image", in.images},
		{"graph", in.graphs},
		{"file", in.files},
	} {
		for _, a := range group.items {
			attachmentLine(pdf, fontFamily, utf8OK, group.label, a.Filename, fmtTime(a.ImportedAt), a.SHA256)
			attachmentLines++
		}
	}
	if attachmentLines == 0 {
		emptyHint(pdf, fontFamily, "(empty)")
	}
	pdf.Ln(2)

	// Images（内嵌现场照片与仪器图表）
	sectionTitle(pdf, fontFamily, "8. Images")
	if len(in.embeds) == 0 {
		emptyHint(pdf, fontFamily, "(no embeddable images)")
	}
	for _, e := range in.embeds {
		name := fmt.Sprintf("%s_%d", e.label, e.info.ID)
		pdf.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: e.imgType}, bytes.NewReader(e.blob))
		if pdf.Err() {
			pdf.ClearError()
			emptyHint(pdf, fontFamily, fmt.Sprintf("(failed to render %s)", safeText(e.info.Filename, utf8OK)))
			continue
		}
		pdf.ImageOptions(name, pdf.GetX(), 0, 120, 0, true, gofpdf.ImageOptions{ImageType: e.imgType}, 0, "")
		if pdf.Err() {
			pdf.ClearError()
			emptyHint(pdf, fontFamily, fmt.Sprintf("(failed to render %s)", safeText(e.info.Filename, utf8OK)))
			continue
		}
		caption := fmt.Sprintf("%s: %s", e.label, safeText(e.info.Filename, utf8OK))
		if strings.TrimSpace(e.info.Annotation) != "" {
			caption += " - " + safeText(e.info.Annotation, utf8OK)
		}
		pdf.SetFont(fontFamily, "", 8)
		pdf.SetTextColor(90, 90, 90)
		pdf.MultiCell(0, 4.2, caption, "", "L", false)
		pdf.Ln(2)
	}

	// 尾注
	pdf.Ln(2)
	pdf.SetFont(fontFamily, "", 9)
	pdf.SetTextColor(90, 90, 90)
	pdf.MultiCell(0, 4.5, "Note: attachment hashes are recorded at import time; verify downloaded originals against the listed SHA-256.", "", "L", false)

	return pdf, utf8OK
}

func sectionTitle(pdf *gofpdf.Fpdf, fontFamily string, title string) {
	pdf.SetFont(fontFamily, "B", 12)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 7, title, "", 1, "L", false, 0, "")
	pdf.SetDrawColor(200, 200, 200)
	pdf.Line(pdf.GetX(), pdf.GetY(), 200, pdf.GetY())
	pdf.Ln(2)
}

func kv(pdf *gofpdf.Fpdf, fontFamily string, utf8OK bool, key string, value string) {
	if strings.TrimSpace(value) == "" {
		value = "-"
	}
	pdf.SetFont(fontFamily, "B", 10)
	pdf.SetTextColor(30, 30, 30)
	pdf.CellFormat(44, 5.2, key+":", "", 0, "L", false, 0, "")
	pdf.SetFont(fontFamily, "", 10)
	pdf.SetTextColor(20, 20, 20)
	pdf.MultiCell(0, 5.2, safeText(value, utf8OK), "", "L", false)
}

func metricLine(pdf *gofpdf.Fpdf, fontFamily string, utf8OK bool, label string, value *float64, unit string, status model.MetricStatus) {
	text := "-"
	if value != nil {
		text = fmt.Sprintf("%.2f %s", *value, unit)
	}
	if status != "" {
		text += fmt.Sprintf("  [%s]", strings.ToUpper(string(status)))
	}
	kv(pdf, fontFamily, utf8OK, label, text)
}

func attachmentLine(pdf *gofpdf.Fpdf, fontFamily string, utf8OK bool, label, filename, when, sha string) {
	pdf.SetFont(fontFamily, "B", 9)
	pdf.SetTextColor(20, 20, 20)
	pdf.MultiCell(0, 4.8, fmt.Sprintf("%s | %s | %s", label, safeText(filename, utf8OK), when), "", "L", false)
	if strings.TrimSpace(sha) != "" {
		pdf.SetFont(fontFamily, "", 8)
		pdf.SetTextColor(90, 90, 90)
		pdf.MultiCell(0, 4.2, "sha256: "+safeText(sha, utf8OK), "", "L", false)
	}
}

func emptyHint(pdf *gofpdf.Fpdf, fontFamily, text string) {
	pdf.SetFont(fontFamily, "", 10)
	pdf.SetTextColor(90, 90, 90)
	pdf.MultiCell(0, 5, text, "", "L", false)
}

func fmtTime(ts int64) string {
	if ts <= 0 {
		return "-"
	}
	return time.Unix(ts, 0).Format("2006-01-02 15:04:05")
}

func fmtFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}

func safeText(s string, utf8OK bool) string {
	// gofpdf 的内置字体对 ASCII/Latin 表现最好；
	// 未加载 UTF-8 字体时把非 ASCII 字符替换为 '?'，确保 PDF 一定能生成。
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	s = strings.TrimSpace(s)
	if utf8OK {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= 32 && r <= 126 {
			b.WriteRune(r)
		} else {
			b.WriteRune('?')
		}
	}
	return b.String()
}

// initPDFUnicodeFont 尝试加载 UTF-8 字体（TrueType），以支持非 ASCII 字符。
//
// 规则：
// 1) 如果设置了环境变量 SURVEY_MANAGER_PDF_FONT，优先使用该文件路径。
// 2) 否则按常见系统字体路径探测（macOS/Windows/Linux）。
// 3) 加载失败则回退到核心字体（Helvetica），并通过 safeText() 兜底替换非 ASCII 字符。
func initPDFUnicodeFont(pdf *gofpdf.Fpdf) (family string, utf8OK bool) {
	const familyName = "unicode"
	candidates := []string{}

	if v := strings.TrimSpace(os.Getenv("SURVEY_MANAGER_PDF_FONT")); v != "" {
		candidates = append(candidates, v)
	}

	switch runtime.GOOS {
	case "darwin":
		candidates = append(candidates,
			"/System/Library/Fonts/Supplemental/Arial Unicode.ttf",
			"/System/Library/Fonts/Supplemental/AppleMyungjo.ttf",
			"/System/Library/Fonts/Supplemental/AppleGothic.ttf",
			"/System/Library/Fonts/Hiragino Sans GB.ttc",
			"/System/Library/Fonts/PingFang.ttc",
		)
	case "windows":
		candidates = append(candidates,
			`C:\Windows\Fonts\arialuni.ttf`,
			`C:\Windows\Fonts\simhei.ttf`,
			`C:\Windows\Fonts\simsun.ttc`,
			`C:\Windows\Fonts\msyh.ttc`,
		)
	default:
		// Linux (best effort)
		candidates = append(candidates,
			"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
			"/usr/share/fonts/truetype/noto/NotoSansCJK-Regular.ttc",
			"/usr/share/fonts/opentype/noto/NotoSansCJK-Regular.ttc",
			"/usr/share/fonts/truetype/arphic/uming.ttc",
		)
	}

	for _, p := range candidates {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}

		// 即使只有一个字体文件，这里也注册 B 样式，避免 SetFont(...,"B",...) 报错。
		pdf.AddUTF8Font(familyName, "", p)
		if pdf.Err() {
			pdf.ClearError()
			continue
		}
		pdf.AddUTF8Font(familyName, "B", p)
		if pdf.Err() {
			// bold 失败也不致命：清错后仍可用 regular
			pdf.ClearError()
		}
		return familyName, true
	}

	return "Helvetica", false
}
