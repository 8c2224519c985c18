package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"survey-manager/internal/adapters/checklist"
	sqliteadapter "survey-manager/internal/adapters/store/sqlite"
	"survey-manager/internal/app"
	"survey-manager/internal/domain/model"
	"survey-manager/internal/services/analysis"
	"survey-manager/internal/services/importparse"
	"survey-manager/internal/services/surveyexport"
	"survey-manager/internal/services/surveyreport"
	"survey-manager/internal/services/webapp"

	_ "modernc.org/sqlite"
)

// CLI 入口。所有子命令错误都统一输出到 stderr 并返回非 0 状态码。
func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run 是一级命令路由。
func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		printUsage()
		return nil
	}

	switch args[0] {
	case "migrate":
		return runMigrate(ctx, args[1:])
	case "checklist":
		return runChecklist(ctx, args[1:])
	case "survey":
		return runSurvey(ctx, args[1:])
	case "measurement":
		return runMeasurement(ctx, args[1:])
	case "import":
		return runImport(ctx, args[1:])
	case "analysis":
		return runAnalysis(ctx, args[1:])
	case "report":
		return runReport(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	case "verify":
		return runVerify(ctx, args[1:])
	case "serve":
		return runServe(ctx, args[1:])
	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

// openStore 打开 SQLite 并保证迁移完成，返回可用的 store。
// 调用方负责 db.Close()。
func openStore(ctx context.Context, dbPath string) (*sql.DB, *sqliteadapter.Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode = WAL`); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("set journal_mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA synchronous = NORMAL`); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("set synchronous: %w", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("set foreign_keys: %w", err)
	}

	migrator := sqliteadapter.NewMigrator(db)
	if err := migrator.Up(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("apply migrations: %w", err)
	}

	return db, sqliteadapter.NewStore(db), nil
}

// runMigrate 执行 SQLite 迁移，确保数据库结构完整。
func runMigrate(ctx context.Context, args []string) error {
	cfg := app.DefaultConfig()

	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	dbPath := fs.String("db", cfg.DBPath, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, store, err := openStore(ctx, *dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	version, err := store.GetSchemaMetaValue(ctx, "schema_version")
	if err != nil {
		return err
	}
	fmt.Printf("migrations applied successfully: db=%s schema_version=%s\n", *dbPath, version)
	return nil
}

// runChecklist 是二级命令路由，目前支持 checklist validate。
func runChecklist(ctx context.Context, args []string) error {
	if len(args) == 0 {
		printChecklistUsage()
		return nil
	}

	switch args[0] {
	case "validate":
		return runChecklistValidate(ctx, args[1:])
	default:
		printChecklistUsage()
		return fmt.Errorf("unknown checklist command: %s", args[0])
	}
}

// runChecklistValidate 校验检查单模板与阈值配置，输出版本与哈希摘要。
func runChecklistValidate(ctx context.Context, args []string) error {
	cfg := app.DefaultConfig()

	fs := flag.NewFlagSet("checklist validate", flag.ContinueOnError)
	checklistPath := fs.String("checklist", cfg.ChecklistPath, "checklist template file")
	thresholdPath := fs.String("thresholds", cfg.ThresholdPath, "quality thresholds file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	loader := checklist.NewLoader(*checklistPath, *thresholdPath)
	loaded, err := loader.Load(ctx)
	if err != nil {
		return err
	}

	stepTotal := 0
	for _, stage := range loaded.Checklist.Stages {
		stepTotal += len(stage.Steps)
	}

	fmt.Println("checklist validation passed")
	fmt.Printf("checklist: version=%s stages=%d steps=%d sha256=%s\n",
		loaded.Checklist.Version, len(loaded.Checklist.Stages), stepTotal, loaded.ChecklistSHA256)
	fmt.Printf("thresholds: version=%s default=%s profiles=%d sha256=%s\n",
		loaded.Thresholds.Version, loaded.Thresholds.Default, len(loaded.Thresholds.Profiles), loaded.ThresholdSHA256)
	return nil
}

// runSurvey 是勘测管理子命令路由。
func runSurvey(ctx context.Context, args []string) error {
	if len(args) == 0 {
		printSurveyUsage()
		return nil
	}

	switch args[0] {
	case "create":
		return runSurveyCreate(ctx, args[1:])
	case "list":
		return runSurveyList(ctx, args[1:])
	case "show":
		return runSurveyShow(ctx, args[1:])
	case "status":
		return runSurveyStatus(ctx, args[1:])
	case "delete":
		return runSurveyDelete(ctx, args[1:])
	default:
		printSurveyUsage()
		return fmt.Errorf("unknown survey command: %s", args[0])
	}
}

func runSurveyCreate(ctx context.Context, args []string) error {
	cfg := app.DefaultConfig()

	fs := flag.NewFlagSet("survey create", flag.ContinueOnError)
	dbPath := fs.String("db", cfg.DBPath, "sqlite database path")
	name := fs.String("name", "", "survey name (required)")
	code := fs.String("code", "", "site/station code")
	description := fs.String("description", "", "free-form description")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*name) == "" {
		return fmt.Errorf("--name is required")
	}

	db, store, err := openStore(ctx, *dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	survey, err := store.CreateSurvey(ctx, strings.TrimSpace(*name), strings.TrimSpace(*code), strings.TrimSpace(*description))
	if err != nil {
		return err
	}
	fmt.Printf("survey created: id=%d name=%s status=%s\n", survey.ID, survey.Name, survey.Status)
	return nil
}

func runSurveyList(ctx context.Context, args []string) error {
	cfg := app.DefaultConfig()

	fs := flag.NewFlagSet("survey list", flag.ContinueOnError)
	dbPath := fs.String("db", cfg.DBPath, "sqlite database path")
	limit := fs.Int("limit", 50, "max surveys to list")
	offset := fs.Int("offset", 0, "list offset")
	asJSON := fs.Bool("json", false, "print as json")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, store, err := openStore(ctx, *dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	rows, err := store.ListSurveyOverviews(ctx, *limit, *offset)
	if err != nil {
		return err
	}
	if *asJSON {
		return printJSON(rows)
	}
	for _, row := range rows {
		fmt.Printf("id=%d name=%s code=%s status=%s answers=%d images=%d measurements=%d updated=%s\n",
			row.ID, row.Name, row.Code, row.Status,
			row.AnswerCount, row.ImageCount, row.MeasurementCount,
			time.Unix(row.UpdatedAt, 0).Format("2006-01-02 15:04:05"),
		)
	}
	return nil
}

func runSurveyShow(ctx context.Context, args []string) error {
	cfg := app.DefaultConfig()

	fs := flag.NewFlagSet("survey show", flag.ContinueOnError)
	dbPath := fs.String("db", cfg.DBPath, "sqlite database path")
	surveyID := fs.Int64("id", 0, "survey id (required)")
	asJSON := fs.Bool("json", true, "print as json")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *surveyID <= 0 {
		return fmt.Errorf("--id is required")
	}

	db, store, err := openStore(ctx, *dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	ov, err := store.GetSurveyOverview(ctx, *surveyID)
	if err != nil {
		return err
	}
	if ov == nil {
		return fmt.Errorf("survey not found: %d", *surveyID)
	}

	measurements, err := store.ListMeasurementsFull(ctx, *surveyID)
	if err != nil {
		return err
	}
	answers, err := store.ListPreflightAnswers(ctx, *surveyID)
	if err != nil {
		return err
	}

	if *asJSON {
		return printJSON(map[string]any{
			"survey":       ov,
			"measurements": measurements,
			"answers":      answers,
		})
	}
	fmt.Printf("id=%d name=%s code=%s status=%s\n", ov.ID, ov.Name, ov.Code, ov.Status)
	for _, m := range measurements {
		fmt.Printf("  measurement id=%d title=%s project=%s set=%s\n", m.MeasurementID, m.Title, m.ProjectFilename, m.SetFilename)
	}
	return nil
}

func runSurveyStatus(ctx context.Context, args []string) error {
	cfg := app.DefaultConfig()

	fs := flag.NewFlagSet("survey status", flag.ContinueOnError)
	dbPath := fs.String("db", cfg.DBPath, "sqlite database path")
	surveyID := fs.Int64("id", 0, "survey id (required)")
	status := fs.String("status", "", "new|preflight|measurements|completed (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *surveyID <= 0 {
		return fmt.Errorf("--id is required")
	}

	db, store, err := openStore(ctx, *dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	found, err := store.UpdateSurveyStatus(ctx, *surveyID, model.SurveyStatus(strings.TrimSpace(*status)))
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("survey not found: %d", *surveyID)
	}
	fmt.Printf("survey %d status=%s\n", *surveyID, strings.TrimSpace(*status))
	return nil
}

func runSurveyDelete(ctx context.Context, args []string) error {
	cfg := app.DefaultConfig()

	fs := flag.NewFlagSet("survey delete", flag.ContinueOnError)
	dbPath := fs.String("db", cfg.DBPath, "sqlite database path")
	surveyID := fs.Int64("id", 0, "survey id (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *surveyID <= 0 {
		return fmt.Errorf("--id is required")
	}

	db, store, err := openStore(ctx, *dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	found, err := store.DeleteSurvey(ctx, *surveyID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("survey not found: %d", *surveyID)
	}
	fmt.Printf("survey %d deleted (including measurements, answers and attachments)\n", *surveyID)
	return nil
}

// runMeasurement 是测量会话子命令路由。
func runMeasurement(ctx context.Context, args []string) error {
	if len(args) == 0 {
		printMeasurementUsage()
		return nil
	}

	switch args[0] {
	case "create":
		return runMeasurementCreate(ctx, args[1:])
	case "delete":
		return runMeasurementDelete(ctx, args[1:])
	default:
		printMeasurementUsage()
		return fmt.Errorf("unknown measurement command: %s", args[0])
	}
}

func runMeasurementCreate(ctx context.Context, args []string) error {
	cfg := app.DefaultConfig()

	fs := flag.NewFlagSet("measurement create", flag.ContinueOnError)
	dbPath := fs.String("db", cfg.DBPath, "sqlite database path")
	surveyID := fs.Int64("survey-id", 0, "survey id (required)")
	title := fs.String("title", "", "measurement title (required)")
	note := fs.String("note", "", "free-form note")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *surveyID <= 0 {
		return fmt.Errorf("--survey-id is required")
	}
	if strings.TrimSpace(*title) == "" {
		return fmt.Errorf("--title is required")
	}

	db, store, err := openStore(ctx, *dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	m, err := store.CreateMeasurement(ctx, *surveyID, strings.TrimSpace(*title), strings.TrimSpace(*note))
	if err != nil {
		return err
	}
	fmt.Printf("measurement created: id=%d survey_id=%d title=%s\n", m.ID, m.SurveyID, m.Title)
	return nil
}

func runMeasurementDelete(ctx context.Context, args []string) error {
	cfg := app.DefaultConfig()

	fs := flag.NewFlagSet("measurement delete", flag.ContinueOnError)
	dbPath := fs.String("db", cfg.DBPath, "sqlite database path")
	measurementID := fs.Int64("id", 0, "measurement id (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *measurementID <= 0 {
		return fmt.Errorf("--id is required")
	}

	db, store, err := openStore(ctx, *dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	found, err := store.DeleteMeasurement(ctx, *measurementID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("measurement not found: %d", *measurementID)
	}
	fmt.Printf("measurement %d deleted (including imports and attachments)\n", *measurementID)
	return nil
}

// runImport 导入仪器导出的 project/set 文本文件。
// 同类文件重复导入会整体替换已有记录。
func runImport(ctx context.Context, args []string) error {
	if len(args) == 0 {
		printImportUsage()
		return nil
	}
	kind := model.ImportKind(strings.TrimSpace(args[0]))
	if kind != model.ImportProject && kind != model.ImportSet {
		printImportUsage()
		return fmt.Errorf("unknown import kind: %s", args[0])
	}

	cfg := app.DefaultConfig()
	fs := flag.NewFlagSet("import "+string(kind), flag.ContinueOnError)
	dbPath := fs.String("db", cfg.DBPath, "sqlite database path")
	measurementID := fs.Int64("measurement-id", 0, "measurement id (required)")
	filePath := fs.String("file", "", "path to exported text file (required)")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if *measurementID <= 0 {
		return fmt.Errorf("--measurement-id is required")
	}
	if strings.TrimSpace(*filePath) == "" {
		return fmt.Errorf("--file is required")
	}

	raw, err := os.ReadFile(*filePath)
	if err != nil {
		return fmt.Errorf("read import file: %w", err)
	}
	text := importparse.DecodeText(raw)

	var metaJSON []byte
	if kind == model.ImportProject {
		meta := importparse.ParseProject(text)
		metaJSON, err = json.Marshal(meta)
	} else {
		meta := importparse.ParseSet(text)
		metaJSON, err = json.Marshal(meta)
	}
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}

	db, store, err := openStore(ctx, *dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	f := model.ImportFile{
		MeasurementID: *measurementID,
		Kind:          kind,
		Filename:      filepath.Base(*filePath),
		RawText:       text,
		MetaJSON:      metaJSON,
		ImportedAt:    time.Now().Unix(),
	}
	if err := store.SaveImport(ctx, f); err != nil {
		return err
	}
	fmt.Printf("%s import saved: measurement_id=%d file=%s bytes=%d\n", kind, *measurementID, f.Filename, len(raw))
	return nil
}

// runAnalysis 输出勘测的质量汇总（JSON）。
func runAnalysis(ctx context.Context, args []string) error {
	cfg := app.DefaultConfig()

	fs := flag.NewFlagSet("analysis", flag.ContinueOnError)
	dbPath := fs.String("db", cfg.DBPath, "sqlite database path")
	thresholdPath := fs.String("thresholds", cfg.ThresholdPath, "quality thresholds file")
	checklistPath := fs.String("checklist", cfg.ChecklistPath, "checklist template file")
	surveyID := fs.Int64("survey-id", 0, "survey id (required)")
	profile := fs.String("profile", "", "threshold profile (default from config)")
	idsRaw := fs.String("ids", "", "comma separated measurement ids (default all)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *surveyID <= 0 {
		return fmt.Errorf("--survey-id is required")
	}

	loader := checklist.NewLoader(*checklistPath, *thresholdPath)
	loaded, err := loader.Load(ctx)
	if err != nil {
		return err
	}

	var selected []int64
	for _, part := range strings.Split(*idsRaw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid measurement id: %s", part)
		}
		selected = append(selected, id)
	}

	db, store, err := openStore(ctx, *dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	svc := analysis.NewService(store, loaded.Thresholds)
	res, err := svc.SurveySummary(ctx, *surveyID, selected, strings.TrimSpace(*profile))
	if err != nil {
		return err
	}
	return printJSON(res)
}

// runReport 生成单测量 PDF 报告。
func runReport(ctx context.Context, args []string) error {
	cfg := app.DefaultConfig()

	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	dbPath := fs.String("db", cfg.DBPath, "sqlite database path")
	thresholdPath := fs.String("thresholds", cfg.ThresholdPath, "quality thresholds file")
	checklistPath := fs.String("checklist", cfg.ChecklistPath, "checklist template file")
	measurementID := fs.Int64("measurement-id", 0, "measurement id (required)")
	operator := fs.String("operator", "system", "operator id or name")
	note := fs.String("note", "", "report note")
	profile := fs.String("profile", "", "threshold profile (default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *measurementID <= 0 {
		return fmt.Errorf("--measurement-id is required")
	}

	loader := checklist.NewLoader(*checklistPath, *thresholdPath)
	loaded, err := loader.Load(ctx)
	if err != nil {
		return err
	}

	db, store, err := openStore(ctx, *dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	res, err := surveyreport.Generate(ctx, store, surveyreport.Options{
		MeasurementID: *measurementID,
		DBPath:        *dbPath,
		Operator:      strings.TrimSpace(*operator),
		Note:          strings.TrimSpace(*note),
		Thresholds:    loaded.Thresholds,
		Profile:       strings.TrimSpace(*profile),
		Checklist:     &loaded.Checklist,
	})
	if err != nil {
		return err
	}

	fmt.Println("measurement report generated")
	fmt.Printf("pdf=%s\n", res.PDFPath)
	fmt.Printf("pdf_sha256=%s\n", res.PDFSHA256)
	if len(res.Warnings) > 0 {
		fmt.Printf("warnings=%s\n", strings.Join(res.Warnings, " | "))
	}
	return nil
}

// runExport 生成勘测交接包（ZIP），把任务的附件、导入原文与配置打包归档。
func runExport(ctx context.Context, args []string) error {
	cfg := app.DefaultConfig()

	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	dbPath := fs.String("db", cfg.DBPath, "sqlite database path")
	checklistPath := fs.String("checklist", cfg.ChecklistPath, "checklist template file")
	thresholdPath := fs.String("thresholds", cfg.ThresholdPath, "quality thresholds file")
	surveyID := fs.Int64("survey-id", 0, "survey id (required)")
	note := fs.String("note", "", "export note")
	outDir := fs.String("out", "", "export directory (default: <db dir>/exports)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *surveyID <= 0 {
		return fmt.Errorf("--survey-id is required")
	}

	db, store, err := openStore(ctx, *dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	res, err := surveyexport.Generate(ctx, store, surveyexport.Options{
		SurveyID:      *surveyID,
		DBPath:        *dbPath,
		ChecklistPath: *checklistPath,
		ThresholdPath: *thresholdPath,
		Note:          strings.TrimSpace(*note),
		ExportDir:     strings.TrimSpace(*outDir),
	})
	if err != nil {
		return err
	}

	fmt.Println("survey export generated")
	fmt.Printf("zip=%s\n", res.ZipPath)
	fmt.Printf("zip_sha256=%s\n", res.ZipSHA256)
	if len(res.Warnings) > 0 {
		fmt.Printf("warnings=%s\n", strings.Join(res.Warnings, " | "))
	}
	return nil
}

// runServe 启动内置 Web UI + API，便于“安装即用”的现场体验。
func runServe(ctx context.Context, args []string) error {
	cfg := app.DefaultConfig()

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	dbPath := fs.String("db", cfg.DBPath, "sqlite database path")
	checklistPath := fs.String("checklist", cfg.ChecklistPath, "checklist template file")
	thresholdPath := fs.String("thresholds", cfg.ThresholdPath, "quality thresholds file")
	listen := fs.String("listen", "127.0.0.1:8787", "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// 支持 Ctrl+C 优雅退出。
	sigCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return webapp.Run(sigCtx, webapp.Options{
		DBPath:        *dbPath,
		ChecklistPath: *checklistPath,
		ThresholdPath: *thresholdPath,
		ListenAddr:    *listen,
	})
}

// printUsage 输出一级命令帮助。
func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  survey-cli migrate [--db data/surveys.db]")
	fmt.Println("  survey-cli checklist validate [--checklist checklists/preflight_checklist.yaml] [--thresholds checklists/quality_thresholds.yaml]")
	fmt.Println("  survey-cli survey create --name NAME [--code CODE] [--description TEXT]")
	fmt.Println("  survey-cli survey list [--limit 50] [--offset 0] [--json]")
	fmt.Println("  survey-cli survey show --id ID [--json=true]")
	fmt.Println("  survey-cli survey status --id ID --status new|preflight|measurements|completed")
	fmt.Println("  survey-cli survey delete --id ID")
	fmt.Println("  survey-cli measurement create --survey-id ID --title TITLE [--note TEXT]")
	fmt.Println("  survey-cli measurement delete --id ID")
	fmt.Println("  survey-cli import project --measurement-id ID --file project.txt")
	fmt.Println("  survey-cli import set --measurement-id ID --file set.txt")
	fmt.Println("  survey-cli analysis --survey-id ID [--profile laboratory|field|recon] [--ids 1,2,3]")
	fmt.Println("  survey-cli report --measurement-id ID [--operator NAME] [--note TEXT]")
	fmt.Println("  survey-cli export --survey-id ID [--note TEXT] [--out DIR]")
	fmt.Println("  survey-cli verify blobs --survey-id ID [--db data/surveys.db]")
	fmt.Println("  survey-cli serve [--listen 127.0.0.1:8787] [--db data/surveys.db]")
}

// printChecklistUsage 输出 checklist 子命令帮助。
func printChecklistUsage() {
	fmt.Println("Usage:")
	fmt.Println("  survey-cli checklist validate [--checklist path] [--thresholds path]")
}

// printSurveyUsage 输出 survey 子命令帮助。
func printSurveyUsage() {
	fmt.Println("Usage:")
	fmt.Println("  survey-cli survey create --name NAME [--code CODE] [--description TEXT] [--db path]")
	fmt.Println("  survey-cli survey list [--limit 50] [--offset 0] [--json] [--db path]")
	fmt.Println("  survey-cli survey show --id ID [--json=true] [--db path]")
	fmt.Println("  survey-cli survey status --id ID --status STATUS [--db path]")
	fmt.Println("  survey-cli survey delete --id ID [--db path]")
}

// printMeasurementUsage 输出 measurement 子命令帮助。
func printMeasurementUsage() {
	fmt.Println("Usage:")
	fmt.Println("  survey-cli measurement create --survey-id ID --title TITLE [--note TEXT] [--db path]")
	fmt.Println("  survey-cli measurement delete --id ID [--db path]")
}

// printImportUsage 输出 import 子命令帮助。
func printImportUsage() {
	fmt.Println("Usage:")
	fmt.Println("  survey-cli import project --measurement-id ID --file project.txt [--db path]")
	fmt.Println("  survey-cli import set --measurement-id ID --file set.txt [--db path]")
}

func printJSON(v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(raw))
	return nil
}
