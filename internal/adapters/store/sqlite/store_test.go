package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"survey-manager/internal/domain/model"

	_ "modernc.org/sqlite"
)

func newTestStore(t *testing.T) (*sql.DB, *Store) {
	t.Helper()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "surveys.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		t.Fatalf("set busy_timeout: %v", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		t.Fatalf("set foreign_keys: %v", err)
	}

	m := NewMigrator(db)
	if err := m.Up(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db, NewStore(db)
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	if err := db.QueryRow(`SELECT COUNT(1) FROM ` + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func mustCreateSurvey(t *testing.T, s *Store, name string) *model.Survey {
	t.Helper()
	survey, err := s.CreateSurvey(context.Background(), name, "ST-001", "test survey")
	if err != nil {
		t.Fatalf("create survey: %v", err)
	}
	return survey
}

func TestSchemaMeta_VersionPresent(t *testing.T) {
	_, s := newTestStore(t)

	v, err := s.GetSchemaMetaValue(context.Background(), "schema_version")
	if err != nil {
		t.Fatalf("get schema_version: %v", err)
	}
	if v == "" {
		t.Fatalf("schema_version should be set after migration")
	}
}

func TestCreateSurvey_DefaultsToNew(t *testing.T) {
	_, s := newTestStore(t)

	survey := mustCreateSurvey(t, s, "Station Alpha")
	if survey.ID <= 0 {
		t.Fatalf("expected positive id, got %d", survey.ID)
	}
	if survey.Status != model.StatusNew {
		t.Fatalf("expected status new, got %s", survey.Status)
	}
	if survey.CreatedAt <= 0 || survey.UpdatedAt <= 0 {
		t.Fatalf("expected timestamps set, got created=%d updated=%d", survey.CreatedAt, survey.UpdatedAt)
	}
}

func TestUpdateSurvey_InvalidStatusRejected(t *testing.T) {
	_, s := newTestStore(t)
	ctx := context.Background()

	survey := mustCreateSurvey(t, s, "Station Alpha")
	if _, err := s.UpdateSurvey(ctx, survey.ID, survey.Name, survey.Code, survey.Description, "archived"); err == nil {
		t.Fatalf("expected error for invalid status")
	}
	if _, err := s.UpdateSurveyStatus(ctx, survey.ID, "done"); err == nil {
		t.Fatalf("expected error for invalid status")
	}
}

func TestUpdateSurvey_StatusAnyOrder(t *testing.T) {
	_, s := newTestStore(t)
	ctx := context.Background()

	survey := mustCreateSurvey(t, s, "Station Alpha")

	// 状态之间没有固定顺序：completed 之后允许回到 new。
	for _, status := range []model.SurveyStatus{
		model.StatusCompleted,
		model.StatusNew,
		model.StatusMeasurements,
		model.StatusPreflight,
	} {
		found, err := s.UpdateSurveyStatus(ctx, survey.ID, status)
		if err != nil {
			t.Fatalf("set status %s: %v", status, err)
		}
		if !found {
			t.Fatalf("survey should exist")
		}
	}
}

func TestUpdateSurvey_TouchesUpdatedAtEvenWhenUnchanged(t *testing.T) {
	db, s := newTestStore(t)
	ctx := context.Background()

	survey := mustCreateSurvey(t, s, "Station Alpha")

	// 把 updated_at 拨回过去，用 Exec 直写绕过 touch。
	past := survey.UpdatedAt - 3600
	if _, err := db.ExecContext(ctx, `UPDATE site_surveys SET updated_at = ? WHERE id = ?`, past, survey.ID); err != nil {
		t.Fatalf("rewind updated_at: %v", err)
	}

	// 完全相同的内容也要推进 updated_at。
	found, err := s.UpdateSurvey(ctx, survey.ID, survey.Name, survey.Code, survey.Description, survey.Status)
	if err != nil {
		t.Fatalf("update survey: %v", err)
	}
	if !found {
		t.Fatalf("survey should exist")
	}

	after, err := s.GetSurvey(ctx, survey.ID)
	if err != nil {
		t.Fatalf("get survey: %v", err)
	}
	if after.UpdatedAt <= past {
		t.Fatalf("updated_at should advance: before=%d after=%d", past, after.UpdatedAt)
	}
}

func TestChildWrites_TouchSurveyUpdatedAt(t *testing.T) {
	db, s := newTestStore(t)
	ctx := context.Background()

	survey := mustCreateSurvey(t, s, "Station Alpha")
	m, err := s.CreateMeasurement(ctx, survey.ID, "Session 1", "")
	if err != nil {
		t.Fatalf("create measurement: %v", err)
	}

	rewind := func() int64 {
		past := time.Now().Unix() - 3600
		if _, err := db.ExecContext(ctx, `UPDATE site_surveys SET updated_at = ? WHERE id = ?`, past, survey.ID); err != nil {
			t.Fatalf("rewind updated_at: %v", err)
		}
		return past
	}
	check := func(step string, past int64) {
		t.Helper()
		after, err := s.GetSurvey(ctx, survey.ID)
		if err != nil {
			t.Fatalf("%s: get survey: %v", step, err)
		}
		if after.UpdatedAt <= past {
			t.Fatalf("%s: updated_at not advanced (before=%d after=%d)", step, past, after.UpdatedAt)
		}
	}

	past := rewind()
	if err := s.UpsertPreflightAnswer(ctx, model.PreflightAnswer{SurveyID: survey.ID, StepCode: "1.1", Checked: true}); err != nil {
		t.Fatalf("upsert answer: %v", err)
	}
	check("answer upsert", past)

	past = rewind()
	if err := s.SaveImport(ctx, model.ImportFile{
		MeasurementID: m.ID,
		Kind:          model.ImportProject,
		Filename:      "project.txt",
		RawText:       "Name: X\n",
		MetaJSON:      []byte(`{}`),
		ImportedAt:    time.Now().Unix(),
	}); err != nil {
		t.Fatalf("save import: %v", err)
	}
	check("import save", past)

	past = rewind()
	if _, err := s.SaveArtifact(ctx, model.Artifact{
		ArtifactInfo: model.ArtifactInfo{
			OwnerID:    m.ID,
			Kind:       model.ArtifactMeasurementGraph,
			Filename:   "drops.png",
			MimeType:   "image/png",
			ImportedAt: time.Now().Unix(),
		},
		Blob: []byte{0x89, 0x50},
	}); err != nil {
		t.Fatalf("save graph: %v", err)
	}
	check("graph save", past)

	past = rewind()
	if _, err := s.UpdateMeasurement(ctx, m.ID, "Session 1 renamed", "note"); err != nil {
		t.Fatalf("update measurement: %v", err)
	}
	check("measurement update", past)
}

func TestUpsertPreflightAnswer_ReplacesSingleRow(t *testing.T) {
	db, s := newTestStore(t)
	ctx := context.Background()

	survey := mustCreateSurvey(t, s, "Station Alpha")

	if err := s.UpsertPreflightAnswer(ctx, model.PreflightAnswer{
		SurveyID: survey.ID, StepCode: "2.3", Value: "first", Checked: false,
	}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := s.UpsertPreflightAnswer(ctx, model.PreflightAnswer{
		SurveyID: survey.ID, StepCode: "2.3", Value: "second", Checked: true, Notes: "revised",
	}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	if n := countRows(t, db, "preflight_answers"); n != 1 {
		t.Fatalf("expected 1 answer row, got %d", n)
	}
	answers, err := s.ListPreflightAnswers(ctx, survey.ID)
	if err != nil {
		t.Fatalf("list answers: %v", err)
	}
	if answers[0].Value != "second" || !answers[0].Checked || answers[0].Notes != "revised" {
		t.Fatalf("unexpected answer after upsert: %+v", answers[0])
	}
}

func TestSavePreflightAnswers_Batch(t *testing.T) {
	db, s := newTestStore(t)
	ctx := context.Background()

	survey := mustCreateSurvey(t, s, "Station Alpha")

	batch := []model.PreflightAnswer{
		{SurveyID: survey.ID, StepCode: "1.1", Checked: true},
		{SurveyID: survey.ID, StepCode: "1.2", Value: "120", Checked: true},
		{SurveyID: survey.ID, StepCode: "2.1", Checked: false, Notes: "windy"},
	}
	if err := s.SavePreflightAnswers(ctx, survey.ID, batch); err != nil {
		t.Fatalf("save batch: %v", err)
	}
	// 再次保存同一批（其中一条改值）：行数不变
	batch[1].Value = "121"
	if err := s.SavePreflightAnswers(ctx, survey.ID, batch); err != nil {
		t.Fatalf("save batch again: %v", err)
	}
	if n := countRows(t, db, "preflight_answers"); n != 3 {
		t.Fatalf("expected 3 answer rows, got %d", n)
	}
}

func TestSaveImport_ReimportReplaces(t *testing.T) {
	db, s := newTestStore(t)
	ctx := context.Background()

	survey := mustCreateSurvey(t, s, "Station Alpha")
	m, err := s.CreateMeasurement(ctx, survey.ID, "Session 1", "")
	if err != nil {
		t.Fatalf("create measurement: %v", err)
	}

	first := model.ImportFile{
		MeasurementID: m.ID,
		Kind:          model.ImportSet,
		Filename:      "set_v1.txt",
		RawText:       "old",
		MetaJSON:      []byte(`{"rows":[]}`),
		ImportedAt:    time.Now().Unix() - 100,
	}
	if err := s.SaveImport(ctx, first); err != nil {
		t.Fatalf("first import: %v", err)
	}
	second := first
	second.Filename = "set_v2.txt"
	second.RawText = "new"
	if err := s.SaveImport(ctx, second); err != nil {
		t.Fatalf("second import: %v", err)
	}

	if n := countRows(t, db, "measurement_set"); n != 1 {
		t.Fatalf("expected 1 set import row, got %d", n)
	}
	stored, err := s.GetImport(ctx, m.ID, model.ImportSet)
	if err != nil {
		t.Fatalf("get import: %v", err)
	}
	if stored.Filename != "set_v2.txt" || stored.RawText != "new" {
		t.Fatalf("reimport should replace: %+v", stored)
	}
	if stored.ImportedAt <= first.ImportedAt {
		t.Fatalf("imported_at should be re-stamped: first=%d stored=%d", first.ImportedAt, stored.ImportedAt)
	}
}

func TestDeleteSurvey_CascadeLeavesNoOrphans(t *testing.T) {
	db, s := newTestStore(t)
	ctx := context.Background()

	survey := mustCreateSurvey(t, s, "Station Alpha")
	keep := mustCreateSurvey(t, s, "Station Beta")

	m, err := s.CreateMeasurement(ctx, survey.ID, "Session 1", "")
	if err != nil {
		t.Fatalf("create measurement: %v", err)
	}
	keepM, err := s.CreateMeasurement(ctx, keep.ID, "Keep Session", "")
	if err != nil {
		t.Fatalf("create keep measurement: %v", err)
	}

	// 填满所有子表
	if err := s.UpsertPreflightAnswer(ctx, model.PreflightAnswer{SurveyID: survey.ID, StepCode: "1.1", Checked: true}); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if err := s.SaveImport(ctx, model.ImportFile{MeasurementID: m.ID, Kind: model.ImportProject, Filename: "p.txt", RawText: "x", MetaJSON: []byte(`{}`), ImportedAt: 1}); err != nil {
		t.Fatalf("project import: %v", err)
	}
	if err := s.SaveImport(ctx, model.ImportFile{MeasurementID: m.ID, Kind: model.ImportSet, Filename: "s.txt", RawText: "y", MetaJSON: []byte(`{}`), ImportedAt: 1}); err != nil {
		t.Fatalf("set import: %v", err)
	}
	for _, kind := range []model.ArtifactKind{model.ArtifactMeasurementImage, model.ArtifactMeasurementGraph, model.ArtifactSiteFile} {
		if _, err := s.SaveArtifact(ctx, model.Artifact{
			ArtifactInfo: model.ArtifactInfo{OwnerID: m.ID, Kind: kind, Filename: "f.bin", MimeType: "application/octet-stream", ImportedAt: 1},
			Blob:         []byte{1, 2, 3},
		}); err != nil {
			t.Fatalf("artifact %s: %v", kind, err)
		}
	}
	if _, err := s.SaveArtifact(ctx, model.Artifact{
		ArtifactInfo: model.ArtifactInfo{OwnerID: survey.ID, Kind: model.ArtifactSiteImage, Filename: "site.jpg", MimeType: "image/jpeg", ImportedAt: 1},
		Blob:         []byte{0xff},
	}); err != nil {
		t.Fatalf("site image: %v", err)
	}
	// 对照组：保留的勘测也放一条数据
	if err := s.UpsertPreflightAnswer(ctx, model.PreflightAnswer{SurveyID: keep.ID, StepCode: "1.1", Checked: true}); err != nil {
		t.Fatalf("keep answer: %v", err)
	}
	if err := s.SaveImport(ctx, model.ImportFile{MeasurementID: keepM.ID, Kind: model.ImportProject, Filename: "kp.txt", RawText: "z", MetaJSON: []byte(`{}`), ImportedAt: 1}); err != nil {
		t.Fatalf("keep import: %v", err)
	}

	found, err := s.DeleteSurvey(ctx, survey.ID)
	if err != nil {
		t.Fatalf("delete survey: %v", err)
	}
	if !found {
		t.Fatalf("survey should have been found")
	}

	// 被删勘测的整棵树清零，保留勘测不受影响。
	for table, want := range map[string]int{
		"site_surveys":        1,
		"measurements":        1,
		"preflight_answers":   1,
		"site_images":         0,
		"measurement_project": 1,
		"measurement_set":     0,
		"measurement_images":  0,
		"measurement_graphs":  0,
		"site_files":          0,
	} {
		if n := countRows(t, db, table); n != want {
			t.Fatalf("table %s: expected %d rows, got %d", table, want, n)
		}
	}

	// 再次删除同一 ID：not found，无报错
	found, err = s.DeleteSurvey(ctx, survey.ID)
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if found {
		t.Fatalf("second delete should report not found")
	}
}

func TestDeleteMeasurement_CascadeAndNotFound(t *testing.T) {
	db, s := newTestStore(t)
	ctx := context.Background()

	survey := mustCreateSurvey(t, s, "Station Alpha")
	m, err := s.CreateMeasurement(ctx, survey.ID, "Session 1", "")
	if err != nil {
		t.Fatalf("create measurement: %v", err)
	}
	if err := s.SaveImport(ctx, model.ImportFile{MeasurementID: m.ID, Kind: model.ImportSet, Filename: "s.txt", RawText: "x", MetaJSON: []byte(`{}`), ImportedAt: 1}); err != nil {
		t.Fatalf("import: %v", err)
	}
	if _, err := s.SaveArtifact(ctx, model.Artifact{
		ArtifactInfo: model.ArtifactInfo{OwnerID: m.ID, Kind: model.ArtifactMeasurementImage, Filename: "a.jpg", MimeType: "image/jpeg", ImportedAt: 1},
		Blob:         []byte{1},
	}); err != nil {
		t.Fatalf("artifact: %v", err)
	}

	found, err := s.DeleteMeasurement(ctx, m.ID)
	if err != nil {
		t.Fatalf("delete measurement: %v", err)
	}
	if !found {
		t.Fatalf("measurement should have been found")
	}
	for _, table := range []string{"measurement_set", "measurement_images"} {
		if n := countRows(t, db, table); n != 0 {
			t.Fatalf("table %s should be empty", table)
		}
	}
	// 勘测本身保留
	if n := countRows(t, db, "site_surveys"); n != 1 {
		t.Fatalf("survey should survive measurement delete")
	}

	found, err = s.DeleteMeasurement(ctx, m.ID)
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if found {
		t.Fatalf("second delete should report not found")
	}
}

func TestCreateMeasurement_MissingSurveyRejected(t *testing.T) {
	_, s := newTestStore(t)

	if _, err := s.CreateMeasurement(context.Background(), 9999, "orphan", ""); err == nil {
		t.Fatalf("expected foreign key error for missing survey")
	}
}

func TestMeasurementsFullView_NullImports(t *testing.T) {
	_, s := newTestStore(t)
	ctx := context.Background()

	survey := mustCreateSurvey(t, s, "Station Alpha")
	m, err := s.CreateMeasurement(ctx, survey.ID, "Session 1", "note")
	if err != nil {
		t.Fatalf("create measurement: %v", err)
	}

	// 无任何导入时：行仍然出现，文件名为空串
	full, err := s.GetMeasurementFull(ctx, m.ID)
	if err != nil {
		t.Fatalf("get full: %v", err)
	}
	if full == nil {
		t.Fatalf("expected view row for measurement without imports")
	}
	if full.ProjectFilename != "" || full.SetFilename != "" {
		t.Fatalf("expected empty filenames, got project=%q set=%q", full.ProjectFilename, full.SetFilename)
	}
	if full.SurveyName != survey.Name || full.SurveyStatus != survey.Status {
		t.Fatalf("survey columns mismatch: %+v", full)
	}

	if err := s.SaveImport(ctx, model.ImportFile{MeasurementID: m.ID, Kind: model.ImportProject, Filename: "p.txt", RawText: "x", MetaJSON: []byte(`{}`), ImportedAt: 1}); err != nil {
		t.Fatalf("import: %v", err)
	}
	full, err = s.GetMeasurementFull(ctx, m.ID)
	if err != nil {
		t.Fatalf("get full again: %v", err)
	}
	if full.ProjectFilename != "p.txt" || full.SetFilename != "" {
		t.Fatalf("expected project only, got project=%q set=%q", full.ProjectFilename, full.SetFilename)
	}

	rows, err := s.ListMeasurementsFull(ctx, survey.ID)
	if err != nil {
		t.Fatalf("list full: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one view row, got %d", len(rows))
	}
}

func TestSurveyOverview_Counts(t *testing.T) {
	_, s := newTestStore(t)
	ctx := context.Background()

	survey := mustCreateSurvey(t, s, "Station Alpha")
	if err := s.UpsertPreflightAnswer(ctx, model.PreflightAnswer{SurveyID: survey.ID, StepCode: "1.1", Checked: true}); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if _, err := s.SaveArtifact(ctx, model.Artifact{
		ArtifactInfo: model.ArtifactInfo{OwnerID: survey.ID, Kind: model.ArtifactSiteImage, Filename: "site.jpg", MimeType: "image/jpeg", ImportedAt: 1},
		Blob:         []byte{0xff},
	}); err != nil {
		t.Fatalf("site image: %v", err)
	}
	if _, err := s.CreateMeasurement(ctx, survey.ID, "Session 1", ""); err != nil {
		t.Fatalf("measurement: %v", err)
	}
	if _, err := s.CreateMeasurement(ctx, survey.ID, "Session 2", ""); err != nil {
		t.Fatalf("measurement: %v", err)
	}

	ov, err := s.GetSurveyOverview(ctx, survey.ID)
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if ov.AnswerCount != 1 || ov.ImageCount != 1 || ov.MeasurementCount != 2 {
		t.Fatalf("unexpected counts: %+v", ov)
	}
}

func TestArtifacts_RoundTripAndDelete(t *testing.T) {
	_, s := newTestStore(t)
	ctx := context.Background()

	survey := mustCreateSurvey(t, s, "Station Alpha")
	m, err := s.CreateMeasurement(ctx, survey.ID, "Session 1", "")
	if err != nil {
		t.Fatalf("measurement: %v", err)
	}

	blob := []byte("graph-bytes")
	id, err := s.SaveArtifact(ctx, model.Artifact{
		ArtifactInfo: model.ArtifactInfo{
			OwnerID:    m.ID,
			Kind:       model.ArtifactMeasurementGraph,
			Filename:   "residuals.png",
			MimeType:   "image/png",
			SizeBytes:  int64(len(blob)),
			SHA256:     "feed",
			Annotation: "drop residuals",
			ImportedAt: 42,
		},
		Blob: blob,
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	infos, err := s.ListArtifacts(ctx, model.ArtifactMeasurementGraph, m.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 1 || infos[0].Filename != "residuals.png" || infos[0].Annotation != "drop residuals" {
		t.Fatalf("unexpected list result: %+v", infos)
	}

	a, err := s.GetArtifact(ctx, model.ArtifactMeasurementGraph, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if a == nil || string(a.Blob) != "graph-bytes" {
		t.Fatalf("blob mismatch: %+v", a)
	}

	found, err := s.DeleteArtifact(ctx, model.ArtifactMeasurementGraph, id)
	if err != nil || !found {
		t.Fatalf("delete: found=%v err=%v", found, err)
	}
	a, err = s.GetArtifact(ctx, model.ArtifactMeasurementGraph, id)
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if a != nil {
		t.Fatalf("artifact should be gone")
	}
}

func TestGetSurvey_NotFoundReturnsNil(t *testing.T) {
	_, s := newTestStore(t)

	survey, err := s.GetSurvey(context.Background(), 777)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if survey != nil {
		t.Fatalf("expected nil for missing survey")
	}
}
