package surveyreport

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	sqliteadapter "survey-manager/internal/adapters/store/sqlite"
	"survey-manager/internal/domain/model"
	"survey-manager/internal/services/importparse"

	_ "modernc.org/sqlite"
)

func testThresholds() model.ThresholdBundle {
	f := func(v float64) *float64 { return &v }
	ladder := model.ThresholdLadder{Good: f(5), Warn: f(10), Poor: f(20), Bad: f(40), Unusable: f(100)}
	return model.ThresholdBundle{
		Version:    "test",
		BundleType: "quality_thresholds",
		Default:    "laboratory",
		Profiles: map[string]model.ThresholdProfile{
			"laboratory": {
				"pss":  ladder,
				"tu":   ladder,
				"ups":  ladder,
				"ss":   ladder,
				"ssov": ladder,
				"acc":  {Good: f(95), Warn: f(90), Poor: f(80), Bad: f(60), Unusable: f(30)},
			},
		},
	}
}

func TestGenerate_CreatesPDFFile(t *testing.T) {
	ctx := context.Background()
	tmp := t.TempDir()
	dbPath := filepath.Join(tmp, "surveys.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		t.Fatalf("set busy_timeout: %v", err)
	}

	m := sqliteadapter.NewMigrator(db)
	if err := m.Up(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	store := sqliteadapter.NewStore(db)
	survey, err := store.CreateSurvey(ctx, "PDF Test Survey", "PDF-001", "unit test")
	if err != nil {
		t.Fatalf("create survey: %v", err)
	}

	meas, err := store.CreateMeasurement(ctx, survey.ID, "Session A", "note text")
	if err != nil {
		t.Fatalf("create measurement: %v", err)
	}

	// project 导入（带质量指标）
	projText := "Name: PDF Test Project\nLat: 59.3498  Long: 18.0706  Elev: 12.30 m\n" +
		"Set Scatter: 4.20 uGal\nMeasurement Precision: 1.10 uGal\n" +
		"Total Uncertainty: 6.40 uGal\nGravity: 981818123.45 uGal\n" +
		"Total Drops Accepted: 1180\nTotal Drops Rejected: 20\nNumber of Sets: 12\n"
	projMeta := importparse.ParseProject(projText)
	projJSON, err := json.Marshal(projMeta)
	if err != nil {
		t.Fatalf("marshal project meta: %v", err)
	}
	if err := store.SaveImport(ctx, model.ImportFile{
		MeasurementID: meas.ID,
		Kind:          model.ImportProject,
		Filename:      "project.txt",
		RawText:       projText,
		MetaJSON:      projJSON,
		ImportedAt:    time.Now().Unix(),
	}); err != nil {
		t.Fatalf("save project import: %v", err)
	}

	// set 导入
	setText := "header\nheader\nheader\nSet\tSigma\tError\tUncert\tAccept\tReject\n" +
		"1\t3.10\t0.50\t0.90\t98\t2\n2\t3.40\t0.60\t0.95\t97\t3\n"
	setMeta := importparse.ParseSet(setText)
	setJSON, err := json.Marshal(setMeta)
	if err != nil {
		t.Fatalf("marshal set meta: %v", err)
	}
	if err := store.SaveImport(ctx, model.ImportFile{
		MeasurementID: meas.ID,
		Kind:          model.ImportSet,
		Filename:      "set.txt",
		RawText:       setText,
		MetaJSON:      setJSON,
		ImportedAt:    time.Now().Unix(),
	}); err != nil {
		t.Fatalf("save set import: %v", err)
	}

	// 附件（用于 attachments 小节）
	if _, err := store.SaveArtifact(ctx, model.Artifact{
		ArtifactInfo: model.ArtifactInfo{
			OwnerID:    meas.ID,
			Kind:       model.ArtifactMeasurementImage,
			Filename:   "setup.jpg",
			MimeType:   "image/jpeg",
			ImportedAt: time.Now().Unix(),
		},
		Blob: []byte{0xff, 0xd8, 0xff},
	}); err != nil {
		t.Fatalf("save image artifact: %v", err)
	}

	// 检查单答案
	if err := store.UpsertPreflightAnswer(ctx, model.PreflightAnswer{
		SurveyID: survey.ID,
		StepCode: "1.1",
		Value:    "stable pillar",
		Checked:  true,
	}); err != nil {
		t.Fatalf("upsert answer: %v", err)
	}

	res, err := Generate(ctx, store, Options{
		MeasurementID: meas.ID,
		DBPath:        dbPath,
		Operator:      "tester",
		Note:          "unit_test",
		Thresholds:    testThresholds(),
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.PDFPath == "" {
		t.Fatalf("expected pdf_path, got empty")
	}
	if res.PDFSHA256 == "" {
		t.Fatalf("expected pdf_sha256, got empty")
	}
	if res.GeneratedAt <= 0 {
		t.Fatalf("expected generated_at, got %d", res.GeneratedAt)
	}

	st, err := os.Stat(res.PDFPath)
	if err != nil {
		t.Fatalf("stat pdf: %v", err)
	}
	if st.Size() <= 0 {
		t.Fatalf("pdf size should be > 0, got %d", st.Size())
	}
}

// 1x1 像素的合法 PNG，用于图片内嵌路径。
func tinyPNG(t *testing.T) []byte {
	t.Helper()
	const b64 = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mP8z8BQDwAEhQGAhKmMIQAAAABJRU5ErkJggg=="
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		t.Fatalf("decode png fixture: %v", err)
	}
	return raw
}

func TestGenerate_EmbedsDecodableImages(t *testing.T) {
	ctx := context.Background()
	tmp := t.TempDir()
	dbPath := filepath.Join(tmp, "surveys.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	m := sqliteadapter.NewMigrator(db)
	if err := m.Up(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	store := sqliteadapter.NewStore(db)
	survey, err := store.CreateSurvey(ctx, "Embed Test", "PDF-002", "")
	if err != nil {
		t.Fatalf("create survey: %v", err)
	}
	meas, err := store.CreateMeasurement(ctx, survey.ID, "Session B", "")
	if err != nil {
		t.Fatalf("create measurement: %v", err)
	}

	// 可解码 PNG：应被内嵌且不产生 warning
	if _, err := store.SaveArtifact(ctx, model.Artifact{
		ArtifactInfo: model.ArtifactInfo{
			OwnerID:    meas.ID,
			Kind:       model.ArtifactMeasurementImage,
			Filename:   "pillar.png",
			MimeType:   "image/png",
			ImportedAt: time.Now().Unix(),
		},
		Blob: tinyPNG(t),
	}); err != nil {
		t.Fatalf("save png artifact: %v", err)
	}

	// 扩展名是 png 但内容不可解码：应降级为 warning 而不是报错
	if _, err := store.SaveArtifact(ctx, model.Artifact{
		ArtifactInfo: model.ArtifactInfo{
			OwnerID:    meas.ID,
			Kind:       model.ArtifactMeasurementGraph,
			Filename:   "broken.png",
			MimeType:   "image/png",
			ImportedAt: time.Now().Unix(),
		},
		Blob: []byte("not an image"),
	}); err != nil {
		t.Fatalf("save broken artifact: %v", err)
	}

	res, err := Generate(ctx, store, Options{
		MeasurementID: meas.ID,
		DBPath:        dbPath,
		Thresholds:    testThresholds(),
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	brokenWarned := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "pillar.png") {
			t.Fatalf("decodable image should not warn: %q", w)
		}
		if strings.Contains(w, "broken.png") {
			brokenWarned = true
		}
	}
	if !brokenWarned {
		t.Fatalf("expected a warning for the undecodable image, got %v", res.Warnings)
	}

	st, err := os.Stat(res.PDFPath)
	if err != nil {
		t.Fatalf("stat pdf: %v", err)
	}
	if st.Size() <= 0 {
		t.Fatalf("pdf size should be > 0, got %d", st.Size())
	}
}

func TestGenerate_MissingMeasurement(t *testing.T) {
	ctx := context.Background()
	tmp := t.TempDir()
	dbPath := filepath.Join(tmp, "surveys.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	m := sqliteadapter.NewMigrator(db)
	if err := m.Up(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	store := sqliteadapter.NewStore(db)
	if _, err := Generate(ctx, store, Options{
		MeasurementID: 12345,
		DBPath:        dbPath,
		Thresholds:    testThresholds(),
	}); err == nil {
		t.Fatalf("expected error for missing measurement")
	}
}
