package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"survey-manager/internal/domain/model"
)

// Store 封装与 SQLite 的读写逻辑。
// 每个写操作都是单事务：级联删除、导入替换等要么整体成功要么整体回滚。
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetSchemaMetaValue 查询 schema_meta 表指定 key 的 value。
func (s *Store) GetSchemaMetaValue(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `
		SELECT value
		FROM schema_meta
		WHERE key = ?
		LIMIT 1
	`, key).Scan(&v)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("query schema_meta %s: %w", key, err)
	}
	return v, nil
}

// CreateSurvey 新建任务，状态固定为 new，创建与更新时间都取当前时间。
// name/code 不做唯一约束，允许重名重号。
func (s *Store) CreateSurvey(ctx context.Context, name, code, description string) (*model.Survey, error) {
	now := time.Now().Unix()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO site_surveys(name, code, description, status, created_at, updated_at)
		VALUES(?, ?, ?, 'new', ?, ?)
	`, name, nullIfEmpty(code), nullIfEmpty(description), now, now)
	if err != nil {
		return nil, fmt.Errorf("insert survey: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("survey last insert id: %w", err)
	}
	return &model.Survey{
		ID:          id,
		Name:        name,
		Code:        code,
		Description: description,
		Status:      model.StatusNew,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// GetSurvey 按 ID 查询任务；不存在时返回 (nil, nil)。
func (s *Store) GetSurvey(ctx context.Context, surveyID int64) (*model.Survey, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(code, ''), COALESCE(description, ''), status, created_at, updated_at
		FROM site_surveys
		WHERE id = ?
		LIMIT 1
	`, surveyID)

	var out model.Survey
	var status string
	if err := row.Scan(
		&out.ID,
		&out.Name,
		&out.Code,
		&out.Description,
		&status,
		&out.CreatedAt,
		&out.UpdatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query survey: %w", err)
	}
	out.Status = model.SurveyStatus(status)
	return &out, nil
}

// ListSurveyOverviews 返回任务列表及聚合计数，按更新时间倒序。
func (s *Store) ListSurveyOverviews(ctx context.Context, limit, offset int) ([]model.SurveyOverview, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT
			s.id,
			s.name,
			COALESCE(s.code, ''),
			COALESCE(s.description, ''),
			s.status,
			s.created_at,
			s.updated_at,
			(SELECT COUNT(*) FROM preflight_answers a WHERE a.survey_id = s.id),
			(SELECT COUNT(*) FROM site_images i WHERE i.survey_id = s.id),
			(SELECT COUNT(*) FROM measurements m WHERE m.survey_id = s.id)
		FROM site_surveys s
		ORDER BY s.updated_at DESC, s.created_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query survey overviews: %w", err)
	}
	defer rows.Close()

	var out []model.SurveyOverview
	for rows.Next() {
		var item model.SurveyOverview
		var status string
		if err := rows.Scan(
			&item.ID,
			&item.Name,
			&item.Code,
			&item.Description,
			&status,
			&item.CreatedAt,
			&item.UpdatedAt,
			&item.AnswerCount,
			&item.ImageCount,
			&item.MeasurementCount,
		); err != nil {
			return nil, fmt.Errorf("scan survey overview: %w", err)
		}
		item.Status = model.SurveyStatus(status)
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate survey overviews: %w", err)
	}
	if out == nil {
		out = []model.SurveyOverview{}
	}
	return out, nil
}

// GetSurveyOverview 返回单个任务的聚合摘要；不存在时返回 (nil, nil)。
func (s *Store) GetSurveyOverview(ctx context.Context, surveyID int64) (*model.SurveyOverview, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT
			s.id,
			s.name,
			COALESCE(s.code, ''),
			COALESCE(s.description, ''),
			s.status,
			s.created_at,
			s.updated_at,
			(SELECT COUNT(*) FROM preflight_answers a WHERE a.survey_id = s.id),
			(SELECT COUNT(*) FROM site_images i WHERE i.survey_id = s.id),
			(SELECT COUNT(*) FROM measurements m WHERE m.survey_id = s.id)
		FROM site_surveys s
		WHERE s.id = ?
	`, surveyID)

	var item model.SurveyOverview
	var status string
	if err := row.Scan(
		&item.ID,
		&item.Name,
		&item.Code,
		&item.Description,
		&status,
		&item.CreatedAt,
		&item.UpdatedAt,
		&item.AnswerCount,
		&item.ImageCount,
		&item.MeasurementCount,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query survey overview: %w", err)
	}
	item.Status = model.SurveyStatus(status)
	return &item, nil
}

// UpdateSurvey 更新任务基础字段。只要执行到这条 UPDATE，
// updated_at 一律推进到当前时间，即使其余列的新值与旧值相同。
// 返回 false 表示任务不存在。
func (s *Store) UpdateSurvey(ctx context.Context, surveyID int64, name, code, description string, status model.SurveyStatus) (bool, error) {
	if !model.ValidStatus(status) {
		return false, fmt.Errorf("invalid survey status %q", status)
	}

	now := time.Now().Unix()
	res, err := s.db.ExecContext(ctx, `
		UPDATE site_surveys
		SET name = ?, code = ?, description = ?, status = ?, updated_at = ?
		WHERE id = ?
	`, name, nullIfEmpty(code), nullIfEmpty(description), string(status), now, surveyID)
	if err != nil {
		return false, fmt.Errorf("update survey: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update survey rows affected: %w", err)
	}
	return n > 0, nil
}

// UpdateSurveyStatus 只切换状态。四个状态之间任意跳转都允许。
func (s *Store) UpdateSurveyStatus(ctx context.Context, surveyID int64, status model.SurveyStatus) (bool, error) {
	if !model.ValidStatus(status) {
		return false, fmt.Errorf("invalid survey status %q", status)
	}

	now := time.Now().Unix()
	res, err := s.db.ExecContext(ctx, `
		UPDATE site_surveys
		SET status = ?, updated_at = ?
		WHERE id = ?
	`, string(status), now, surveyID)
	if err != nil {
		return false, fmt.Errorf("update survey status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update survey status rows affected: %w", err)
	}
	return n > 0, nil
}

// DeleteSurvey 删除任务及其全部下级数据。
// 级联顺序：先删测量会话的孙级产物，再删会话与任务直属数据，最后删任务本身，
// 整个过程在一个事务里完成，不会出现“任务没了、孤儿还在”的中间态。
// 返回 false 表示任务不存在。
func (s *Store) DeleteSurvey(ctx context.Context, surveyID int64) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx delete survey: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	grandchildTables := []string{
		"measurement_project",
		"measurement_set",
		"measurement_images",
		"measurement_graphs",
		"site_files",
	}
	for _, table := range grandchildTables {
		_, err = tx.ExecContext(ctx, `
			DELETE FROM `+table+`
			WHERE measurement_id IN (SELECT id FROM measurements WHERE survey_id = ?)
		`, surveyID)
		if err != nil {
			return false, fmt.Errorf("delete %s for survey %d: %w", table, surveyID, err)
		}
	}

	for _, table := range []string{"measurements", "preflight_answers", "site_images"} {
		_, err = tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE survey_id = ?`, surveyID)
		if err != nil {
			return false, fmt.Errorf("delete %s for survey %d: %w", table, surveyID, err)
		}
	}

	var res sql.Result
	res, err = tx.ExecContext(ctx, `DELETE FROM site_surveys WHERE id = ?`, surveyID)
	if err != nil {
		return false, fmt.Errorf("delete survey %d: %w", surveyID, err)
	}
	var n int64
	n, err = res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete survey rows affected: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit delete survey: %w", err)
	}
	return n > 0, nil
}

// UpsertPreflightAnswer 写入一条检查清单回答。
// 同一 (survey_id, step_code) 重复写入走覆盖，不产生重复行。
// 回答变更视为任务的一次内容变更，同事务内刷新任务 updated_at。
func (s *Store) UpsertPreflightAnswer(ctx context.Context, a model.PreflightAnswer) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx upsert answer: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO preflight_answers(survey_id, step_code, value, checked, notes)
		VALUES(?, ?, ?, ?, ?)
		ON CONFLICT(survey_id, step_code) DO UPDATE SET
			value=excluded.value,
			checked=excluded.checked,
			notes=excluded.notes
	`, a.SurveyID, a.StepCode, nullIfEmpty(a.Value), boolToInt(a.Checked), nullIfEmpty(a.Notes))
	if err != nil {
		return fmt.Errorf("upsert answer %d/%s: %w", a.SurveyID, a.StepCode, err)
	}

	if err = touchSurvey(ctx, tx, a.SurveyID); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert answer: %w", err)
	}
	return nil
}

// SavePreflightAnswers 批量写入检查清单回答（例如整阶段一键勾选），
// 使用事务加预编译语句保证原子性。
func (s *Store) SavePreflightAnswers(ctx context.Context, surveyID int64, answers []model.PreflightAnswer) error {
	if len(answers) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx save answers: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO preflight_answers(survey_id, step_code, value, checked, notes)
		VALUES(?, ?, ?, ?, ?)
		ON CONFLICT(survey_id, step_code) DO UPDATE SET
			value=excluded.value,
			checked=excluded.checked,
			notes=excluded.notes
	`)
	if err != nil {
		return fmt.Errorf("prepare upsert answers: %w", err)
	}
	defer stmt.Close()

	for _, a := range answers {
		_, err = stmt.ExecContext(ctx, surveyID, a.StepCode, nullIfEmpty(a.Value), boolToInt(a.Checked), nullIfEmpty(a.Notes))
		if err != nil {
			return fmt.Errorf("upsert answer %d/%s: %w", surveyID, a.StepCode, err)
		}
	}

	if err = touchSurvey(ctx, tx, surveyID); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit save answers: %w", err)
	}
	return nil
}

// ListPreflightAnswers 返回任务的全部清单回答，按条目编号排序。
func (s *Store) ListPreflightAnswers(ctx context.Context, surveyID int64) ([]model.PreflightAnswer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, survey_id, step_code, COALESCE(value, ''), checked, COALESCE(notes, '')
		FROM preflight_answers
		WHERE survey_id = ?
		ORDER BY step_code ASC
	`, surveyID)
	if err != nil {
		return nil, fmt.Errorf("query answers: %w", err)
	}
	defer rows.Close()

	var out []model.PreflightAnswer
	for rows.Next() {
		var item model.PreflightAnswer
		var checked int
		if err := rows.Scan(
			&item.ID,
			&item.SurveyID,
			&item.StepCode,
			&item.Value,
			&checked,
			&item.Notes,
		); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		item.Checked = checked == 1
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate answers: %w", err)
	}
	if out == nil {
		out = []model.PreflightAnswer{}
	}
	return out, nil
}

// CreateMeasurement 在任务下新建测量会话。
// 外键约束保证 surveyID 必须真实存在，否则写入被整体拒绝。
func (s *Store) CreateMeasurement(ctx context.Context, surveyID int64, title, note string) (*model.Measurement, error) {
	now := time.Now().Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx create measurement: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var res sql.Result
	res, err = tx.ExecContext(ctx, `
		INSERT INTO measurements(survey_id, title, note, created_at)
		VALUES(?, ?, ?, ?)
	`, surveyID, title, nullIfEmpty(note), now)
	if err != nil {
		return nil, fmt.Errorf("insert measurement: %w", err)
	}
	var id int64
	id, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("measurement last insert id: %w", err)
	}

	if err = touchSurvey(ctx, tx, surveyID); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create measurement: %w", err)
	}

	return &model.Measurement{
		ID:        id,
		SurveyID:  surveyID,
		Title:     title,
		Note:      note,
		CreatedAt: now,
	}, nil
}

// GetMeasurement 按 ID 查询测量会话；不存在时返回 (nil, nil)。
func (s *Store) GetMeasurement(ctx context.Context, measurementID int64) (*model.Measurement, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, survey_id, title, COALESCE(note, ''), created_at
		FROM measurements
		WHERE id = ?
		LIMIT 1
	`, measurementID)

	var out model.Measurement
	if err := row.Scan(
		&out.ID,
		&out.SurveyID,
		&out.Title,
		&out.Note,
		&out.CreatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query measurement: %w", err)
	}
	return &out, nil
}

// UpdateMeasurement 更新会话标题与备注；返回 false 表示会话不存在。
func (s *Store) UpdateMeasurement(ctx context.Context, measurementID int64, title, note string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx update measurement: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var res sql.Result
	res, err = tx.ExecContext(ctx, `
		UPDATE measurements SET title = ?, note = ? WHERE id = ?
	`, title, nullIfEmpty(note), measurementID)
	if err != nil {
		return false, fmt.Errorf("update measurement: %w", err)
	}
	var n int64
	n, err = res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update measurement rows affected: %w", err)
	}

	if n > 0 {
		if err = touchSurveyOfMeasurement(ctx, tx, measurementID); err != nil {
			return false, err
		}
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit update measurement: %w", err)
	}
	return n > 0, nil
}

// DeleteMeasurement 删除会话及其全部导入与附件，单事务完成。
// 返回 false 表示会话不存在。
func (s *Store) DeleteMeasurement(ctx context.Context, measurementID int64) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx delete measurement: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// 先记下所属任务，会话删掉后就查不到了。
	var surveyID int64
	err = tx.QueryRowContext(ctx, `SELECT survey_id FROM measurements WHERE id = ?`, measurementID).Scan(&surveyID)
	if err != nil {
		if err == sql.ErrNoRows {
			err = nil
			_ = tx.Rollback()
			return false, nil
		}
		return false, fmt.Errorf("query measurement owner: %w", err)
	}

	childTables := []string{
		"measurement_project",
		"measurement_set",
		"measurement_images",
		"measurement_graphs",
		"site_files",
	}
	for _, table := range childTables {
		_, err = tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE measurement_id = ?`, measurementID)
		if err != nil {
			return false, fmt.Errorf("delete %s for measurement %d: %w", table, measurementID, err)
		}
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM measurements WHERE id = ?`, measurementID)
	if err != nil {
		return false, fmt.Errorf("delete measurement %d: %w", measurementID, err)
	}

	if err = touchSurvey(ctx, tx, surveyID); err != nil {
		return false, err
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit delete measurement: %w", err)
	}
	return true, nil
}

// ListMeasurements 返回任务下的全部会话，按标题排序。
func (s *Store) ListMeasurements(ctx context.Context, surveyID int64) ([]model.Measurement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, survey_id, title, COALESCE(note, ''), created_at
		FROM measurements
		WHERE survey_id = ?
		ORDER BY title ASC, id ASC
	`, surveyID)
	if err != nil {
		return nil, fmt.Errorf("query measurements: %w", err)
	}
	defer rows.Close()

	var out []model.Measurement
	for rows.Next() {
		var item model.Measurement
		if err := rows.Scan(
			&item.ID,
			&item.SurveyID,
			&item.Title,
			&item.Note,
			&item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan measurement: %w", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate measurements: %w", err)
	}
	if out == nil {
		out = []model.Measurement{}
	}
	return out, nil
}

// ListMeasurementsFull 走 v_measurements_full 视图返回任务下的会话全景行。
// 未导入 project/set 的会话照常出现，文件名列为空串。
func (s *Store) ListMeasurementsFull(ctx context.Context, surveyID int64) ([]model.MeasurementFull, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			measurement_id, title, COALESCE(note, ''), created_at,
			survey_id, survey_name, COALESCE(survey_code, ''), survey_status,
			COALESCE(project_filename, ''), COALESCE(set_filename, '')
		FROM v_measurements_full
		WHERE survey_id = ?
		ORDER BY title ASC, measurement_id ASC
	`, surveyID)
	if err != nil {
		return nil, fmt.Errorf("query measurements full: %w", err)
	}
	defer rows.Close()

	var out []model.MeasurementFull
	for rows.Next() {
		item, err := scanMeasurementFull(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate measurements full: %w", err)
	}
	if out == nil {
		out = []model.MeasurementFull{}
	}
	return out, nil
}

// GetMeasurementFull 返回单个会话的全景行；不存在时返回 (nil, nil)。
func (s *Store) GetMeasurementFull(ctx context.Context, measurementID int64) (*model.MeasurementFull, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT
			measurement_id, title, COALESCE(note, ''), created_at,
			survey_id, survey_name, COALESCE(survey_code, ''), survey_status,
			COALESCE(project_filename, ''), COALESCE(set_filename, '')
		FROM v_measurements_full
		WHERE measurement_id = ?
		LIMIT 1
	`, measurementID)

	var item model.MeasurementFull
	var status string
	if err := row.Scan(
		&item.MeasurementID,
		&item.Title,
		&item.Note,
		&item.CreatedAt,
		&item.SurveyID,
		&item.SurveyName,
		&item.SurveyCode,
		&status,
		&item.ProjectFilename,
		&item.SetFilename,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query measurement full: %w", err)
	}
	item.SurveyStatus = model.SurveyStatus(status)
	return &item, nil
}

func scanMeasurementFull(rows *sql.Rows) (*model.MeasurementFull, error) {
	var item model.MeasurementFull
	var status string
	if err := rows.Scan(
		&item.MeasurementID,
		&item.Title,
		&item.Note,
		&item.CreatedAt,
		&item.SurveyID,
		&item.SurveyName,
		&item.SurveyCode,
		&status,
		&item.ProjectFilename,
		&item.SetFilename,
	); err != nil {
		return nil, fmt.Errorf("scan measurement full: %w", err)
	}
	item.SurveyStatus = model.SurveyStatus(status)
	return &item, nil
}

// SaveImport 写入一条 project/set 文本导入。
// 每个会话下同种导入唯一：重复导入整体替换旧行，imported_at 重置为当前时间。
func (s *Store) SaveImport(ctx context.Context, f model.ImportFile) error {
	table, err := importTable(f.Kind)
	if err != nil {
		return err
	}

	now := time.Now().Unix()
	meta := f.MetaJSON
	if len(meta) == 0 {
		meta = []byte("{}")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx save import: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO `+table+`(measurement_id, filename, raw_text, meta_json, imported_at)
		VALUES(?, ?, ?, ?, ?)
		ON CONFLICT(measurement_id) DO UPDATE SET
			filename=excluded.filename,
			raw_text=excluded.raw_text,
			meta_json=excluded.meta_json,
			imported_at=excluded.imported_at
	`, f.MeasurementID, f.Filename, f.RawText, string(meta), now)
	if err != nil {
		return fmt.Errorf("save %s import for measurement %d: %w", f.Kind, f.MeasurementID, err)
	}

	if err = touchSurveyOfMeasurement(ctx, tx, f.MeasurementID); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit save import: %w", err)
	}
	return nil
}

// GetImport 返回会话的 project/set 导入记录；未导入时返回 (nil, nil)。
func (s *Store) GetImport(ctx context.Context, measurementID int64, kind model.ImportKind) (*model.ImportFile, error) {
	table, err := importTable(kind)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, measurement_id, filename, raw_text, meta_json, imported_at
		FROM `+table+`
		WHERE measurement_id = ?
		LIMIT 1
	`, measurementID)

	var out model.ImportFile
	var meta string
	if err := row.Scan(
		&out.ID,
		&out.MeasurementID,
		&out.Filename,
		&out.RawText,
		&meta,
		&out.ImportedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query %s import: %w", kind, err)
	}
	out.Kind = kind
	out.MetaJSON = []byte(meta)
	return &out, nil
}

// DeleteImport 删除会话的 project/set 导入；返回 false 表示本就没有。
func (s *Store) DeleteImport(ctx context.Context, measurementID int64, kind model.ImportKind) (bool, error) {
	table, err := importTable(kind)
	if err != nil {
		return false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx delete import: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var res sql.Result
	res, err = tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE measurement_id = ?`, measurementID)
	if err != nil {
		return false, fmt.Errorf("delete %s import: %w", kind, err)
	}
	var n int64
	n, err = res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete import rows affected: %w", err)
	}

	if n > 0 {
		if err = touchSurveyOfMeasurement(ctx, tx, measurementID); err != nil {
			return false, err
		}
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit delete import: %w", err)
	}
	return n > 0, nil
}

// SaveArtifact 写入单个二进制附件，返回新行 ID。
// 哈希与大小由调用方算好传入，这里不做校验，也不做内容去重。
func (s *Store) SaveArtifact(ctx context.Context, a model.Artifact) (int64, error) {
	spec, err := artifactTable(a.Kind)
	if err != nil {
		return 0, err
	}

	now := time.Now().Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx save artifact: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var res sql.Result
	res, err = tx.ExecContext(ctx, `
		INSERT INTO `+spec.table+`(`+spec.ownerCol+`, filename, mime_type, size_bytes, sha256_hex, `+spec.noteCol+`, imported_at, `+spec.blobCol+`)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)
	`, a.OwnerID, a.Filename, nullIfEmpty(a.MimeType), a.SizeBytes, nullIfEmpty(a.SHA256), nullIfEmpty(a.Annotation), now, a.Blob)
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", a.Kind, err)
	}
	var id int64
	id, err = res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("artifact last insert id: %w", err)
	}

	if err = touchArtifactOwner(ctx, tx, a.Kind, a.OwnerID); err != nil {
		return 0, err
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit save artifact: %w", err)
	}
	return id, nil
}

// SaveArtifacts 批量写入同类附件（例如一次多选上传），事务保证原子性。
func (s *Store) SaveArtifacts(ctx context.Context, kind model.ArtifactKind, ownerID int64, artifacts []model.Artifact) error {
	if len(artifacts) == 0 {
		return nil
	}
	spec, err := artifactTable(kind)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx save artifacts: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO `+spec.table+`(`+spec.ownerCol+`, filename, mime_type, size_bytes, sha256_hex, `+spec.noteCol+`, imported_at, `+spec.blobCol+`)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert artifacts: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, a := range artifacts {
		_, err = stmt.ExecContext(ctx, ownerID, a.Filename, nullIfEmpty(a.MimeType), a.SizeBytes, nullIfEmpty(a.SHA256), nullIfEmpty(a.Annotation), now, a.Blob)
		if err != nil {
			return fmt.Errorf("insert %s %s: %w", kind, a.Filename, err)
		}
	}

	if err = touchArtifactOwner(ctx, tx, kind, ownerID); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit save artifacts: %w", err)
	}
	return nil
}

// ListArtifacts 返回某任务/会话下的同类附件元数据（不含 blob），按 ID 倒序。
func (s *Store) ListArtifacts(ctx context.Context, kind model.ArtifactKind, ownerID int64) ([]model.ArtifactInfo, error) {
	spec, err := artifactTable(kind)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, `+spec.ownerCol+`, filename, COALESCE(mime_type, ''), COALESCE(size_bytes, 0),
		       COALESCE(sha256_hex, ''), COALESCE(`+spec.noteCol+`, ''), imported_at
		FROM `+spec.table+`
		WHERE `+spec.ownerCol+` = ?
		ORDER BY id DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query %s list: %w", kind, err)
	}
	defer rows.Close()

	var out []model.ArtifactInfo
	for rows.Next() {
		var item model.ArtifactInfo
		if err := rows.Scan(
			&item.ID,
			&item.OwnerID,
			&item.Filename,
			&item.MimeType,
			&item.SizeBytes,
			&item.SHA256,
			&item.Annotation,
			&item.ImportedAt,
		); err != nil {
			return nil, fmt.Errorf("scan %s: %w", kind, err)
		}
		item.Kind = kind
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s list: %w", kind, err)
	}
	if out == nil {
		out = []model.ArtifactInfo{}
	}
	return out, nil
}

// GetArtifact 按 ID 取回完整附件（含 blob）；不存在时返回 (nil, nil)。
func (s *Store) GetArtifact(ctx context.Context, kind model.ArtifactKind, artifactID int64) (*model.Artifact, error) {
	spec, err := artifactTable(kind)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, `+spec.ownerCol+`, filename, COALESCE(mime_type, ''), COALESCE(size_bytes, 0),
		       COALESCE(sha256_hex, ''), COALESCE(`+spec.noteCol+`, ''), imported_at, `+spec.blobCol+`
		FROM `+spec.table+`
		WHERE id = ?
		LIMIT 1
	`, artifactID)

	var out model.Artifact
	if err := row.Scan(
		&out.ID,
		&out.OwnerID,
		&out.Filename,
		&out.MimeType,
		&out.SizeBytes,
		&out.SHA256,
		&out.Annotation,
		&out.ImportedAt,
		&out.Blob,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query %s: %w", kind, err)
	}
	out.Kind = kind
	return &out, nil
}

// DeleteArtifact 按 ID 删除附件；返回 false 表示附件不存在。
func (s *Store) DeleteArtifact(ctx context.Context, kind model.ArtifactKind, artifactID int64) (bool, error) {
	spec, err := artifactTable(kind)
	if err != nil {
		return false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx delete artifact: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var ownerID int64
	err = tx.QueryRowContext(ctx, `SELECT `+spec.ownerCol+` FROM `+spec.table+` WHERE id = ?`, artifactID).Scan(&ownerID)
	if err != nil {
		if err == sql.ErrNoRows {
			err = nil
			_ = tx.Rollback()
			return false, nil
		}
		return false, fmt.Errorf("query %s owner: %w", kind, err)
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM `+spec.table+` WHERE id = ?`, artifactID)
	if err != nil {
		return false, fmt.Errorf("delete %s %d: %w", kind, artifactID, err)
	}

	if err = touchArtifactOwner(ctx, tx, kind, ownerID); err != nil {
		return false, err
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit delete artifact: %w", err)
	}
	return true, nil
}

// importTable 把导入种类映射到落库表名。
func importTable(kind model.ImportKind) (string, error) {
	switch kind {
	case model.ImportProject:
		return "measurement_project", nil
	case model.ImportSet:
		return "measurement_set", nil
	}
	return "", fmt.Errorf("unknown import kind %q", kind)
}

// artifactTableSpec 描述一类附件的落库位置：表名、归属列、说明列与 blob 列。
type artifactTableSpec struct {
	table    string
	ownerCol string
	noteCol  string
	blobCol  string
}

func artifactTable(kind model.ArtifactKind) (artifactTableSpec, error) {
	switch kind {
	case model.ArtifactSiteImage:
		return artifactTableSpec{table: "site_images", ownerCol: "survey_id", noteCol: "caption", blobCol: "image_blob"}, nil
	case model.ArtifactMeasurementImage:
		return artifactTableSpec{table: "measurement_images", ownerCol: "measurement_id", noteCol: "caption", blobCol: "image_blob"}, nil
	case model.ArtifactMeasurementGraph:
		return artifactTableSpec{table: "measurement_graphs", ownerCol: "measurement_id", noteCol: "note", blobCol: "graph_blob"}, nil
	case model.ArtifactSiteFile:
		return artifactTableSpec{table: "site_files", ownerCol: "measurement_id", noteCol: "note", blobCol: "file_blob"}, nil
	}
	return artifactTableSpec{}, fmt.Errorf("unknown artifact kind %q", kind)
}

// execer 抽象 *sql.Tx 与 *sql.DB 共有的执行接口，touch 辅助函数两边都能用。
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// touchSurvey 把任务 updated_at 推进到当前时间。
// 所有对任务内容的写入（含子表）都在同一事务内调用它，保持陈旧度追踪有效。
func touchSurvey(ctx context.Context, ex execer, surveyID int64) error {
	_, err := ex.ExecContext(ctx, `
		UPDATE site_surveys SET updated_at = ? WHERE id = ?
	`, time.Now().Unix(), surveyID)
	if err != nil {
		return fmt.Errorf("touch survey %d: %w", surveyID, err)
	}
	return nil
}

// touchSurveyOfMeasurement 通过会话反查所属任务并刷新其 updated_at。
func touchSurveyOfMeasurement(ctx context.Context, ex execer, measurementID int64) error {
	_, err := ex.ExecContext(ctx, `
		UPDATE site_surveys SET updated_at = ?
		WHERE id = (SELECT survey_id FROM measurements WHERE id = ?)
	`, time.Now().Unix(), measurementID)
	if err != nil {
		return fmt.Errorf("touch survey of measurement %d: %w", measurementID, err)
	}
	return nil
}

// touchArtifactOwner 根据附件类别刷新其所属任务的 updated_at。
func touchArtifactOwner(ctx context.Context, ex execer, kind model.ArtifactKind, ownerID int64) error {
	if kind == model.ArtifactSiteImage {
		return touchSurvey(ctx, ex, ownerID)
	}
	return touchSurveyOfMeasurement(ctx, ex, ownerID)
}

// SQLite 中没有布尔类型，统一转 0/1 存储。
func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

// 空字符串按 NULL 写入，避免无意义空值污染查询条件。
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
