package surveyexport

import (
	"archive/zip"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	sqliteadapter "survey-manager/internal/adapters/store/sqlite"
	"survey-manager/internal/domain/model"
	"survey-manager/internal/platform/hash"

	_ "modernc.org/sqlite"
)

func newTestStore(t *testing.T) (string, *sqliteadapter.Store) {
	t.Helper()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "surveys.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		t.Fatalf("set foreign_keys: %v", err)
	}
	if err := sqliteadapter.NewMigrator(db).Up(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return dbPath, sqliteadapter.NewStore(db)
}

func readZipFile(t *testing.T, zr *zip.ReadCloser, name string) []byte {
	t.Helper()
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		return data
	}
	t.Fatalf("file %s not found in zip", name)
	return nil
}

func TestGenerate_BundlesSurveyTree(t *testing.T) {
	ctx := context.Background()
	dbPath, store := newTestStore(t)
	dir := filepath.Dir(dbPath)

	checklistPath := filepath.Join(dir, "checklist.yaml")
	thresholdPath := filepath.Join(dir, "thresholds.yaml")
	if err := os.WriteFile(checklistPath, []byte("version: \"1\"\n"), 0o644); err != nil {
		t.Fatalf("write checklist: %v", err)
	}
	if err := os.WriteFile(thresholdPath, []byte("version: \"1\"\n"), 0o644); err != nil {
		t.Fatalf("write thresholds: %v", err)
	}

	survey, err := store.CreateSurvey(ctx, "观测台", "ST-001", "")
	if err != nil {
		t.Fatalf("create survey: %v", err)
	}
	m, err := store.CreateMeasurement(ctx, survey.ID, "第一次观测", "")
	if err != nil {
		t.Fatalf("create measurement: %v", err)
	}

	if err := store.UpsertPreflightAnswer(ctx, model.PreflightAnswer{
		SurveyID: survey.ID, StepCode: "1.1", Checked: true,
	}); err != nil {
		t.Fatalf("save answer: %v", err)
	}

	raw := "Project Name: test\nGravity: 981818123.45 uGal\n"
	if err := store.SaveImport(ctx, model.ImportFile{
		MeasurementID: m.ID,
		Kind:          model.ImportProject,
		Filename:      "site.project.txt",
		RawText:       raw,
		MetaJSON:      []byte(`{}`),
		ImportedAt:    time.Now().Unix(),
	}); err != nil {
		t.Fatalf("save import: %v", err)
	}

	blob := []byte("fake png")
	if _, err := store.SaveArtifact(ctx, model.Artifact{
		ArtifactInfo: model.ArtifactInfo{
			OwnerID:    survey.ID,
			Kind:       model.ArtifactSiteImage,
			Filename:   "site.png",
			MimeType:   "image/png",
			SizeBytes:  int64(len(blob)),
			SHA256:     hash.Bytes(blob),
			ImportedAt: time.Now().Unix(),
		},
		Blob: blob,
	}); err != nil {
		t.Fatalf("save artifact: %v", err)
	}

	res, err := Generate(ctx, store, Options{
		SurveyID:      survey.ID,
		DBPath:        dbPath,
		ChecklistPath: checklistPath,
		ThresholdPath: thresholdPath,
		Note:          "外业结束移交",
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.ZipSHA256 == "" || res.ZipPath == "" {
		t.Fatalf("result = %+v", res)
	}
	if len(res.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", res.Warnings)
	}

	zr, err := zip.OpenReader(res.ZipPath)
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	defer zr.Close()

	if got := readZipFile(t, zr, "images/site.png"); string(got) != string(blob) {
		t.Fatalf("image content mismatch: %q", got)
	}
	importPath := "measurements/" + strconv.FormatInt(m.ID, 10) + "/site.project.txt"
	if got := readZipFile(t, zr, importPath); string(got) != raw {
		t.Fatalf("import content mismatch: %q", got)
	}
	readZipFile(t, zr, "config/checklist.yaml")
	readZipFile(t, zr, "config/thresholds.yaml")
	readZipFile(t, zr, "hashes.sha256")

	var manifest Manifest
	if err := json.Unmarshal(readZipFile(t, zr, "manifest.json"), &manifest); err != nil {
		t.Fatalf("unmarshal manifest: %v", err)
	}
	if manifest.Schema != manifestSchemaV1 {
		t.Fatalf("schema = %q", manifest.Schema)
	}
	if manifest.Survey == nil || manifest.Survey.ID != survey.ID {
		t.Fatalf("manifest survey = %+v", manifest.Survey)
	}
	if len(manifest.Measurements) != 1 || len(manifest.Answers) != 1 {
		t.Fatalf("manifest counts: measurements=%d answers=%d", len(manifest.Measurements), len(manifest.Answers))
	}
	if len(manifest.Artifacts) != 1 || manifest.Artifacts[0].ZipPath != "images/site.png" {
		t.Fatalf("manifest artifacts = %+v", manifest.Artifacts)
	}
	if len(manifest.Imports) != 1 || manifest.Imports[0].ZipPath != importPath {
		t.Fatalf("manifest imports = %+v", manifest.Imports)
	}
	if manifest.Note != "外业结束移交" {
		t.Fatalf("manifest note = %q", manifest.Note)
	}
}

func TestGenerate_MissingSurvey(t *testing.T) {
	dbPath, store := newTestStore(t)
	_, err := Generate(context.Background(), store, Options{SurveyID: 999, DBPath: dbPath})
	if err == nil {
		t.Fatal("expected error for missing survey")
	}
}

func TestGenerate_MissingConfigIsWarning(t *testing.T) {
	ctx := context.Background()
	dbPath, store := newTestStore(t)

	survey, err := store.CreateSurvey(ctx, "空任务", "", "")
	if err != nil {
		t.Fatalf("create survey: %v", err)
	}

	res, err := Generate(ctx, store, Options{
		SurveyID:      survey.ID,
		DBPath:        dbPath,
		ChecklistPath: filepath.Join(t.TempDir(), "nope.yaml"),
		ThresholdPath: filepath.Join(t.TempDir(), "nope2.yaml"),
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(res.Warnings) != 2 {
		t.Fatalf("warnings = %v, want 2 config warnings", res.Warnings)
	}
}

