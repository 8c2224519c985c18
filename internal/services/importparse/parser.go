// Package importparse 解析重力仪导出的 *.project.txt 与 *.set.txt 文本。
// 两个解析器都是容错式的：缺键、缺列、数值格式异常一律留空，不报错中断，
// 原始文本由调用方另行落库，解析结果只是便于检索的结构化摘要。
package importparse

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"survey-manager/internal/domain/model"
)

var (
	// 行内 Key: Value，键最长 128 字符，避免把冒号分隔的正文误判成键。
	kvRe = regexp.MustCompile(`^\s*([^:]{1,128})\s*:\s*(.+?)\s*$`)
	// 采集软件把纬度/经度/高程挤在同一行："38.1234 Long: -102.5 Elev: 1320.5"
	latlonRe = regexp.MustCompile(`^([\d.+-]+)\s+Long:\s+([\d.+-]+)\s+Elev:\s+([\d.+-]+)`)
	// 从任意文本中抠出首个十进制数；逗号小数点在调用前统一替换。
	numberRe = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
)

// ParseProject 解析 *.project.txt 的 Key: Value 汇总文本。
// 同名键只保留首次出现的值，与采集软件的输出顺序保持一致。
func ParseProject(text string) model.ProjectMeta {
	keys := make(map[string]string)
	for _, line := range strings.Split(text, "\n") {
		m := kvRe.FindStringSubmatch(strings.TrimRight(line, "\r\n"))
		if m == nil {
			continue
		}
		k := strings.TrimSpace(m[1])
		if _, ok := keys[k]; !ok {
			keys[k] = strings.TrimSpace(m[2])
		}
	}

	pick := func(names ...string) string {
		for _, n := range names {
			if v, ok := keys[n]; ok && strings.TrimSpace(v) != "" {
				return v
			}
		}
		return ""
	}

	lat, lon, elev := splitLatLon(pick("Latitude (dd,+N)", "Lat", "Latitude"))

	site := model.SiteInfo{
		ProjectName:        pick("Project Name"),
		SiteName:           pick("Site Name", "Name"),
		SiteCode:           pick("Site Code"),
		Latitude:           lat,
		Longitude:          lon,
		Elevation:          elev,
		Gradient:           pick("Gradient"),
		SetupHeight:        pick("Setup Height (cm)", "Setup Height"),
		TransferHeight:     pick("Transfer Height (cm)", "Transfer Height"),
		FactoryHeight:      pick("Factory Height (cm)", "Factory Height"),
		BarometerFactor:    pick("Barometer Factor (µGal/mBar)", "Barometric Admittance Factor"),
		PolarX:             pick("Polar X (arc sec)", "Polar X"),
		PolarY:             pick("Polar Y (arc sec)", "Polar Y"),
		Operator:           pick("Operator"),
		Instrument:         pick("Meter Type", "Instrument"),
		InstrumentSN:       pick("Meter S/N", "Serial"),
		AcquisitionVersion: pick("g Acquisition Version"),
		ProcessingVersion:  pick("g Processing Version"),
		ProcessingDate:     pick("Date"),
		ProcessingTime:     pick("Time"),
		Gravity:            pick("Gravity (µGal)", "Gravity"),
	}

	qm := model.QualityMetrics{
		ProjectSetScatter: nfloat(pick("Project Set Scatter (µGal)", "Measurement Precision", "Project Set Scatter")),
		SetScatterOverall: nfloat(pick("Set Scatter (µGal)", "Set Scatter")),
		UncertaintyPerSet: nfloat(pick("Uncertainty per Set (µGal)", "Uncertainty per Set")),
		TotalUncertainty:  nfloat(pick("Total Uncertainty", "Overall Uncertainty")),
		Gravity:           nfloat(pick("Gravity (µGal)", "Gravity")),
	}

	return model.ProjectMeta{Keys: keys, Site: site, QM: qm}
}

// ParseSet 解析 *.set.txt 的逐组数据表。
// 表头一般在第 4 行附近（制表符分隔），也兼容逗号分隔与缺头变体。
func ParseSet(text string) model.SetMeta {
	var lines []string
	for _, ln := range strings.Split(text, "\n") {
		ln = strings.TrimSpace(ln)
		if ln != "" {
			lines = append(lines, ln)
		}
	}
	if len(lines) < 5 {
		return model.SetMeta{Rows: []model.SetRow{}}
	}

	hdrIdx := -1
	limit := len(lines)
	if limit > 10 {
		limit = 10
	}
	for i := 0; i < limit; i++ {
		ln := lines[i]
		if strings.Contains(ln, "Set") && (strings.Contains(ln, "\t") || strings.Contains(ln, ",")) {
			hdrIdx = i
			break
		}
	}
	if hdrIdx < 0 {
		hdrIdx = 3
	}

	sep := ","
	if strings.Contains(lines[hdrIdx], "\t") {
		sep = "\t"
	}

	hdr := splitCols(lines[hdrIdx], sep)
	col := func(name string) int {
		for i, h := range hdr {
			if h == name {
				return i
			}
		}
		return -1
	}

	scatterIdx := col("Sigma")
	if scatterIdx < 0 {
		scatterIdx = col("Set Scatter")
	}
	idx := map[string]int{
		"set":     col("Set"),
		"scatter": scatterIdx,
		"sigma":   col("Error"),
		"rms":     col("Uncert"),
		"acc":     col("Accept"),
		"rej":     col("Reject"),
	}

	rows := []model.SetRow{}
	for _, ln := range lines[hdrIdx+1:] {
		cols := splitCols(ln, sep)
		if len(cols) < 2 {
			continue
		}
		get := func(i int) string {
			if i < 0 || i >= len(cols) {
				return ""
			}
			return cols[i]
		}

		acc := nfloat(get(idx["acc"]))
		rej := nfloat(get(idx["rej"]))
		var ratio *float64
		if acc != nil && rej != nil {
			if total := *acc + *rej; total > 0 {
				r := math.Round(*acc*100.0/total*10) / 10
				ratio = &r
			}
		}

		id := get(idx["set"])
		if id == "" {
			id = strconv.Itoa(len(rows) + 1)
		}
		rows = append(rows, model.SetRow{
			ID:           id,
			SetScatter:   nfloat(get(idx["scatter"])),
			SetSigma:     nfloat(get(idx["sigma"])),
			DropRMS:      nfloat(get(idx["rms"])),
			DropAccept:   acc,
			DropReject:   rej,
			DropAccRatio: ratio,
		})
	}
	return model.SetMeta{Rows: rows}
}

// splitLatLon 拆开合并在一行里的纬度/经度/高程。
// 不匹配合并格式时把整段当作纬度原样返回。
func splitLatLon(text string) (lat, lon, elev string) {
	if text == "" {
		return "", "", ""
	}
	m := latlonRe.FindStringSubmatch(text)
	if m == nil {
		return text, "", ""
	}
	return m[1], m[2], m[3]
}

// splitCols 按分隔符切列并去掉两端空白。
func splitCols(line, sep string) []string {
	parts := strings.Split(line, sep)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// Number 从自由文本中提取首个十进制数；提取不到返回 nil。
// 供分析层复用，例如把 "Total Drops Accepted: 1 of 120" 这类值转成数字。
func Number(s string) *float64 {
	return nfloat(s)
}

// nfloat 从文本中提取首个十进制数；提取不到返回 nil。
// 逗号小数点（部分欧洲区域设置）先换成点号。
func nfloat(s string) *float64 {
	if s == "" {
		return nil
	}
	t := strings.ReplaceAll(s, ",", ".")
	m := numberRe.FindString(t)
	if m == "" {
		return nil
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return nil
	}
	return &v
}
