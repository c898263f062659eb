package analysis

import (
	"sort"

	domainRepo "github.com/repolens/backend/internal/domain/repository"
)

// ConfidenceMatch 单个检测器的命中结果
type ConfidenceMatch struct {
	Name       string  // 框架/技术名称
	Confidence float32 // 归一化置信度 [0,1]
	Evidence   []string
}

// Detector 框架识别检测器
// 每个检测器只负责一种框架签名，返回置信度评分
type Detector interface {
	Name() string
	Detect(chunks []*domainRepo.Chunk) *ConfidenceMatch
}

// Registry 检测器注册表
// 分析器遍历注册表运行所有检测器，按名称去重，置信度高者胜出
type Registry struct {
	detectors []Detector
}

// NewRegistry 创建检测器注册表
func NewRegistry(detectors ...Detector) *Registry {
	return &Registry{detectors: detectors}
}

// Register 追加检测器
func (r *Registry) Register(d Detector) {
	r.detectors = append(r.detectors, d)
}

// Detectors 返回已注册的检测器
func (r *Registry) Detectors() []Detector {
	return r.detectors
}

// RunAll 运行全部检测器并按阈值过滤
// 同名命中保留置信度最高者，结果按置信度降序、名称升序排列（保证幂等）
func (r *Registry) RunAll(chunks []*domainRepo.Chunk, threshold float32) []*ConfidenceMatch {
	best := make(map[string]*ConfidenceMatch)

	for _, d := range r.detectors {
		match := d.Detect(chunks)
		if match == nil || match.Confidence < threshold {
			continue
		}
		if existing, ok := best[match.Name]; !ok || match.Confidence > existing.Confidence {
			best[match.Name] = match
		}
	}

	results := make([]*ConfidenceMatch, 0, len(best))
	for _, m := range best {
		results = append(results, m)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Confidence != results[j].Confidence {
			return results[i].Confidence > results[j].Confidence
		}
		return results[i].Name < results[j].Name
	})

	return results
}
