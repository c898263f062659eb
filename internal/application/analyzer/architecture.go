package analyzer

import (
	"fmt"
	"sort"
	"strings"

	domainRepo "github.com/repolens/backend/internal/domain/repository"
)

// ArchitectureStyle 架构风格
type ArchitectureStyle string

const (
	StyleMVC        ArchitectureStyle = "MVC"
	StyleModular    ArchitectureStyle = "Modular"
	StyleAPIDriven  ArchitectureStyle = "API-Driven"
	StyleMonolithic ArchitectureStyle = "Monolithic"
)

// ClassifyArchitecture 按目录结构启发式判定架构风格
// 判定顺序：MVC > Modular > API-Driven > Monolithic
func ClassifyArchitecture(chunks []*domainRepo.Chunk) ArchitectureStyle {
	dirs := make(map[string]bool)
	for _, chunk := range chunks {
		for _, part := range strings.Split(chunk.FilePath, "/") {
			dirs[strings.ToLower(part)] = true
		}
	}

	mvcSignals := 0
	for _, d := range []string{"models", "views", "controllers"} {
		if dirs[d] {
			mvcSignals++
		}
	}
	if mvcSignals >= 2 {
		return StyleMVC
	}

	if dirs["internal"] || dirs["pkg"] || dirs["modules"] || dirs["packages"] {
		return StyleModular
	}

	if dirs["api"] || dirs["routes"] || dirs["handlers"] || dirs["endpoints"] {
		return StyleAPIDriven
	}

	return StyleMonolithic
}

// LanguageBreakdown 按片段数统计语言占比
// 返回 "go 62%" 形式的有序列表，占比降序、同比按语言名升序
func LanguageBreakdown(chunks []*domainRepo.Chunk) []string {
	counts := make(map[string]int)
	total := 0
	for _, chunk := range chunks {
		if chunk.Language == "" {
			continue
		}
		counts[chunk.Language]++
		total++
	}
	if total == 0 {
		return nil
	}

	type langCount struct {
		lang  string
		count int
	}
	sorted := make([]langCount, 0, len(counts))
	for lang, count := range counts {
		sorted = append(sorted, langCount{lang, count})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].count != sorted[j].count {
			return sorted[i].count > sorted[j].count
		}
		return sorted[i].lang < sorted[j].lang
	})

	breakdown := make([]string, len(sorted))
	for i, lc := range sorted {
		breakdown[i] = fmt.Sprintf("%s %d%%", lc.lang, lc.count*100/total)
	}
	return breakdown
}

// Languages 检测到的语言集合，按占比降序
func Languages(chunks []*domainRepo.Chunk) []string {
	breakdown := LanguageBreakdown(chunks)
	languages := make([]string, len(breakdown))
	for i, entry := range breakdown {
		languages[i] = strings.Fields(entry)[0]
	}
	return languages
}
