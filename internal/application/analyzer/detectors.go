package analyzer

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/repolens/backend/internal/domain/analysis"
	domainRepo "github.com/repolens/backend/internal/domain/repository"
)

// 检测信号权重
const (
	scoreFile      = 2 // 特征文件存在
	scoreImport    = 3 // 特征导入语句
	scoreIndicator = 1 // 代码内特征字符串
	scorePackage   = 5 // 清单文件中的依赖声明
	maxScore       = 10
)

// ConfidenceThreshold 纳入摘要的最低置信度（对应原始评分 3 分）
const ConfidenceThreshold float32 = 0.3

// manifestFiles 依赖清单文件
var manifestFiles = map[string]bool{
	"package.json":     true,
	"go.mod":           true,
	"requirements.txt": true,
	"pyproject.toml":   true,
	"pipfile":          true,
	"gemfile":          true,
	"pom.xml":          true,
	"build.gradle":     true,
	"cargo.toml":       true,
}

// PatternDetector 基于签名模式的框架检测器
// 按信号加权评分：特征文件 +2、特征导入 +3、特征字符串 +1、清单依赖 +5
type PatternDetector struct {
	name        string
	files       []string         // 特征文件名（basename 精确匹配）
	importRes   []*regexp.Regexp // 特征导入
	indicators  []string         // 代码内特征子串（小写）
	packageDeps []string         // 清单依赖名（小写）
}

var _ analysis.Detector = (*PatternDetector)(nil)

// Name 实现 Detector 接口
func (d *PatternDetector) Name() string {
	return d.name
}

// Detect 实现 Detector 接口
// 每类信号最多计一次分，避免大仓库信号堆叠
func (d *PatternDetector) Detect(chunks []*domainRepo.Chunk) *analysis.ConfidenceMatch {
	score := 0
	var evidence []string

	fileHit, importHit, indicatorHit, depHit := false, false, false, false

	for _, chunk := range chunks {
		base := strings.ToLower(filepath.Base(chunk.FilePath))
		lowered := strings.ToLower(chunk.Text)

		if !fileHit {
			for _, f := range d.files {
				if base == f {
					fileHit = true
					score += scoreFile
					evidence = append(evidence, fmt.Sprintf("file %s", chunk.FilePath))
					break
				}
			}
		}

		if !importHit {
			for _, re := range d.importRes {
				if re.MatchString(chunk.Text) {
					importHit = true
					score += scoreImport
					evidence = append(evidence, fmt.Sprintf("import in %s", chunk.FilePath))
					break
				}
			}
		}

		if !indicatorHit {
			for _, ind := range d.indicators {
				if strings.Contains(lowered, ind) {
					indicatorHit = true
					score += scoreIndicator
					evidence = append(evidence, fmt.Sprintf("indicator %q in %s", ind, chunk.FilePath))
					break
				}
			}
		}

		if !depHit && manifestFiles[base] {
			for _, dep := range d.packageDeps {
				if strings.Contains(lowered, dep) {
					depHit = true
					score += scorePackage
					evidence = append(evidence, fmt.Sprintf("dependency %s in %s", dep, chunk.FilePath))
					break
				}
			}
		}
	}

	if score == 0 {
		return nil
	}

	confidence := float32(score) / float32(maxScore)
	if confidence > 1 {
		confidence = 1
	}

	return &analysis.ConfidenceMatch{
		Name:       d.name,
		Confidence: confidence,
		Evidence:   evidence,
	}
}

// DefaultDetectors 内置框架检测器集合
func DefaultDetectors() []analysis.Detector {
	return []analysis.Detector{
		&PatternDetector{
			name:        "django",
			files:       []string{"manage.py", "settings.py", "wsgi.py"},
			importRes:   []*regexp.Regexp{regexp.MustCompile(`(?m)^\s*(from|import)\s+django`)},
			indicators:  []string{"django.db", "installed_apps"},
			packageDeps: []string{"django"},
		},
		&PatternDetector{
			name:        "flask",
			importRes:   []*regexp.Regexp{regexp.MustCompile(`(?m)^\s*(from|import)\s+flask`)},
			indicators:  []string{"flask(__name__)", "@app.route"},
			packageDeps: []string{"flask"},
		},
		&PatternDetector{
			name:        "react",
			importRes:   []*regexp.Regexp{regexp.MustCompile(`(?m)^\s*import\s+.*from\s+['"]react['"]`)},
			indicators:  []string{"usestate(", "useeffect(", "reactdom"},
			packageDeps: []string{`"react"`},
		},
		&PatternDetector{
			name:        "vue",
			files:       []string{"vue.config.js"},
			importRes:   []*regexp.Regexp{regexp.MustCompile(`(?m)^\s*import\s+.*from\s+['"]vue['"]`)},
			indicators:  []string{"<template>", "definecomponent"},
			packageDeps: []string{`"vue"`},
		},
		&PatternDetector{
			name:        "spring",
			files:       []string{"application.properties", "application.yml"},
			importRes:   []*regexp.Regexp{regexp.MustCompile(`(?m)^\s*import\s+org\.springframework`)},
			indicators:  []string{"@springbootapplication", "@restcontroller", "@autowired"},
			packageDeps: []string{"spring-boot", "springframework"},
		},
		&PatternDetector{
			name:        "express",
			importRes:   []*regexp.Regexp{regexp.MustCompile(`require\(['"]express['"]\)|import\s+.*from\s+['"]express['"]`)},
			indicators:  []string{"express()", "app.listen("},
			packageDeps: []string{`"express"`},
		},
		&PatternDetector{
			name:        "gin",
			importRes:   []*regexp.Regexp{regexp.MustCompile(`"github\.com/gin-gonic/gin"`)},
			indicators:  []string{"gin.default()", "gin.new()"},
			packageDeps: []string{"github.com/gin-gonic/gin"},
		},
		&PatternDetector{
			name:        "rails",
			files:       []string{"gemfile", "routes.rb"},
			importRes:   []*regexp.Regexp{regexp.MustCompile(`(?m)^\s*require\s+['"]rails['"]`)},
			indicators:  []string{"activerecord", "actioncontroller"},
			packageDeps: []string{"rails"},
		},
	}
}

// NewRegistry 创建带内置检测器的注册表
func NewRegistry() *analysis.Registry {
	return analysis.NewRegistry(DefaultDetectors()...)
}
