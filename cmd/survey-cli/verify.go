package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"survey-manager/internal/app"
	"survey-manager/internal/domain/model"
	"survey-manager/internal/platform/hash"

	_ "modernc.org/sqlite"
)

// runVerify 是 verify 子命令路由：
// - verify blobs：复算附件 blob 的 sha256/size 并与导入时记录的值对比。
// 入库时的哈希是参考值（不做强一致校验），这里提供显式复核入口，
// 用于交库/归档前快速确认附件没有在库内损坏。
func runVerify(ctx context.Context, args []string) error {
	if len(args) == 0 {
		printVerifyUsage()
		return nil
	}

	switch args[0] {
	case "blobs":
		return runVerifyBlobs(ctx, args[1:])
	default:
		printVerifyUsage()
		return fmt.Errorf("unknown verify command: %s", args[0])
	}
}

func printVerifyUsage() {
	fmt.Println("Usage:")
	fmt.Println("  survey-cli verify blobs --survey-id ID [--db data/surveys.db]")
}

type blobVerifyItem struct {
	Kind           model.ArtifactKind
	ArtifactID     int64
	Filename       string
	ExpectedSHA256 string
	ActualSHA256   string
	ExpectedSize   int64
	ActualSize     int64
	Status         string // ok|mismatch|missing
}

func runVerifyBlobs(ctx context.Context, args []string) error {
	cfg := app.DefaultConfig()

	fs := flag.NewFlagSet("verify blobs", flag.ContinueOnError)
	dbPath := fs.String("db", cfg.DBPath, "sqlite database path")
	surveyID := fs.Int64("survey-id", 0, "survey id (required)")
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

	survey, err := store.GetSurvey(ctx, *surveyID)
	if err != nil {
		return err
	}
	if survey == nil {
		return fmt.Errorf("survey not found: %d", *surveyID)
	}

	// 收集勘测下全部附件索引：现场照片直接挂勘测，其余挂各测量会话。
	type target struct {
		kind model.ArtifactKind
		info model.ArtifactInfo
	}
	var targets []target

	siteImages, err := store.ListArtifacts(ctx, model.ArtifactSiteImage, *surveyID)
	if err != nil {
		return err
	}
	for _, info := range siteImages {
		targets = append(targets, target{kind: model.ArtifactSiteImage, info: info})
	}

	measurements, err := store.ListMeasurements(ctx, *surveyID)
	if err != nil {
		return err
	}
	for _, m := range measurements {
		for _, kind := range []model.ArtifactKind{
			model.ArtifactMeasurementImage,
			model.ArtifactMeasurementGraph,
			model.ArtifactSiteFile,
		} {
			rows, err := store.ListArtifacts(ctx, kind, m.ID)
			if err != nil {
				return err
			}
			for _, info := range rows {
				targets = append(targets, target{kind: kind, info: info})
			}
		}
	}

	// 逐个复算
	results := make([]blobVerifyItem, 0, len(targets))
	okCount := 0
	failCount := 0
	for _, t := range targets {
		item := blobVerifyItem{
			Kind:           t.kind,
			ArtifactID:     t.info.ID,
			Filename:       t.info.Filename,
			ExpectedSHA256: t.info.SHA256,
			ExpectedSize:   t.info.SizeBytes,
		}

		a, err := store.GetArtifact(ctx, t.kind, t.info.ID)
		if err != nil {
			return err
		}
		if a == nil {
			item.Status = "missing"
			failCount++
			results = append(results, item)
			continue
		}
		item.ActualSHA256 = hash.Bytes(a.Blob)
		item.ActualSize = int64(len(a.Blob))

		if !strings.EqualFold(item.ActualSHA256, strings.TrimSpace(t.info.SHA256)) || item.ActualSize != t.info.SizeBytes {
			item.Status = "mismatch"
			failCount++
			results = append(results, item)
			continue
		}

		item.Status = "ok"
		okCount++
		results = append(results, item)
	}

	fmt.Println("blob sha256 verify completed")
	fmt.Printf("survey_id=%d total=%d ok=%d failed=%d\n", *surveyID, len(results), okCount, failCount)
	for _, r := range results {
		if r.Status == "ok" {
			continue
		}
		fmt.Printf("FAIL kind=%s id=%d file=%s status=%s expected=%s actual=%s\n",
			r.Kind, r.ArtifactID, r.Filename, r.Status, r.ExpectedSHA256, r.ActualSHA256)
	}

	if failCount > 0 {
		return fmt.Errorf("blob sha256 verify failed: %d items mismatch/missing", failCount)
	}
	return nil
}
