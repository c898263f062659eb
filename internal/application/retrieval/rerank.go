package retrieval

import (
	"regexp"
	"sort"
	"strings"

	domainRepo "github.com/repolens/backend/internal/domain/repository"
)

var termPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]+`)

// Rerank 按查询词法重合度对检索结果重排
// 得分相同的保持原始相似度排名，保证结果确定
// 返回带新 Rank 的副本，不修改入参
func Rerank(query string, results []*domainRepo.RetrievalResult) []*domainRepo.RetrievalResult {
	if len(results) <= 1 {
		return results
	}

	queryTerms := extractTerms(query)

	type scored struct {
		result  *domainRepo.RetrievalResult
		overlap float64
		rank    int
	}

	items := make([]scored, len(results))
	for i, r := range results {
		items[i] = scored{
			result:  r,
			overlap: overlapScore(queryTerms, r),
			rank:    r.Rank,
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].overlap != items[j].overlap {
			return items[i].overlap > items[j].overlap
		}
		return items[i].rank < items[j].rank
	})

	reranked := make([]*domainRepo.RetrievalResult, len(items))
	for i, item := range items {
		copied := *item.result
		copied.Rank = i + 1
		reranked[i] = &copied
	}

	return reranked
}

// overlapScore 查询词与片段文本及路径的重合比例
func overlapScore(queryTerms map[string]bool, result *domainRepo.RetrievalResult) float64 {
	if len(queryTerms) == 0 {
		return 0
	}

	chunkTerms := extractTerms(result.Text + " " + result.FilePath)

	matched := 0
	for term := range queryTerms {
		if chunkTerms[term] {
			matched++
		}
	}

	return float64(matched) / float64(len(queryTerms))
}

// extractTerms 提取小写标识符词集
func extractTerms(text string) map[string]bool {
	terms := make(map[string]bool)
	for _, term := range termPattern.FindAllString(text, -1) {
		terms[strings.ToLower(term)] = true
	}
	return terms
}
