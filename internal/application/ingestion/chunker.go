package ingestion

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	domainRepo "github.com/repolens/backend/internal/domain/repository"
	"github.com/repolens/backend/internal/infrastructure/log"
)

const (
	// DefaultWindowLines 滑动窗口的窗口行数
	DefaultWindowLines = 200
	// DefaultOverlapLines 相邻窗口的重叠行数
	DefaultOverlapLines = 20
)

// SourceFile 待摄入的源文件
type SourceFile struct {
	Path    string // 仓库内相对路径
	Content []byte
}

// Chunker 源文件切分器
// 优先按顶层声明做语法切分，失败时退化到滑动窗口
// 同一文件内容产生确定的片段集合，与切分顺序无关
type Chunker struct {
	windowLines  int
	overlapLines int
	logger       *slog.Logger
}

// NewChunker 创建切分器
func NewChunker() *Chunker {
	return &Chunker{
		windowLines:  DefaultWindowLines,
		overlapLines: DefaultOverlapLines,
		logger:       log.NewModuleLogger("ingestion", "chunker"),
	}
}

// declPatterns 按语言的顶层声明匹配规则
// 只匹配行首（零缩进）声明，避免误切嵌套结构
var declPatterns = map[string]*regexp.Regexp{
	"go":         regexp.MustCompile(`^(func|type|var|const)\s`),
	"python":     regexp.MustCompile(`^(def|class|async\s+def)\s|^@\w`),
	"javascript": regexp.MustCompile(`^(export\s+)?(default\s+)?(async\s+)?(function|class)\s|^(export\s+)?(const|let|var)\s`),
	"typescript": regexp.MustCompile(`^(export\s+)?(default\s+)?(abstract\s+)?(async\s+)?(function|class|interface|enum|namespace)\s|^(export\s+)?(const|let|var|type)\s`),
	"java":       regexp.MustCompile(`^(public|private|protected|abstract|final)?\s*(class|interface|enum|record)\s`),
}

// classPatterns 判定片段类型为 class 的声明前缀
var classPatterns = map[string]*regexp.Regexp{
	"go":         regexp.MustCompile(`^type\s`),
	"python":     regexp.MustCompile(`^class\s`),
	"javascript": regexp.MustCompile(`^(export\s+)?(default\s+)?class\s`),
	"typescript": regexp.MustCompile(`^(export\s+)?(default\s+)?(abstract\s+)?(class|interface|enum)\s`),
	"java":       regexp.MustCompile(`^(public|private|protected|abstract|final)?\s*(class|interface|enum|record)\s`),
}

// languageByExtension 扩展名到语言的映射
var languageByExtension = map[string]string{
	".go":   "go",
	".py":   "python",
	".js":   "javascript",
	".jsx":  "javascript",
	".mjs":  "javascript",
	".ts":   "typescript",
	".tsx":  "typescript",
	".java": "java",
	".rb":   "ruby",
	".rs":   "rust",
	".c":    "c",
	".h":    "c",
	".cpp":  "cpp",
	".cs":   "csharp",
	".php":  "php",
	".kt":   "kotlin",
	".md":   "markdown",
	".yaml": "yaml",
	".yml":  "yaml",
	".json": "json",
	".toml": "toml",
	".sql":  "sql",
	".sh":   "shell",
}

// DetectLanguage 按扩展名检测语言，未知返回空串
func DetectLanguage(filePath string) string {
	return languageByExtension[strings.ToLower(filepath.Ext(filePath))]
}

// IsBinary 判断内容是否为二进制
// 前 8000 字节内出现 NUL 即视为二进制
func IsBinary(content []byte) bool {
	probe := content
	if len(probe) > 8000 {
		probe = probe[:8000]
	}
	return bytes.IndexByte(probe, 0) >= 0
}

// ChunkFile 切分单个文件
// 二进制文件跳过并返回 nil（调用方已记录警告）
func (c *Chunker) ChunkFile(repoID string, file *SourceFile) []*domainRepo.Chunk {
	if IsBinary(file.Content) {
		c.logger.Warn("Skipping binary file", "repo_id", repoID, "file_path", file.Path)
		return nil
	}

	lines := splitLines(string(file.Content))
	if len(lines) == 0 {
		return nil
	}

	language := DetectLanguage(file.Path)

	if pattern, ok := declPatterns[language]; ok {
		if chunks := c.chunkByDeclarations(repoID, file.Path, language, lines, pattern); chunks != nil {
			return chunks
		}
	}

	return c.chunkByWindow(repoID, file.Path, language, lines)
}

// chunkByDeclarations 按顶层声明边界切分
// 文件没有任何可识别声明时返回 nil，由调用方退化到滑动窗口
func (c *Chunker) chunkByDeclarations(repoID, filePath, language string, lines []string, pattern *regexp.Regexp) []*domainRepo.Chunk {
	boundaries := []int{}
	for i, line := range lines {
		if pattern.MatchString(line) {
			boundaries = append(boundaries, i)
		}
	}
	if len(boundaries) == 0 {
		return nil
	}

	classPattern := classPatterns[language]

	var chunks []*domainRepo.Chunk
	appendSegment := func(start, end int, kind domainRepo.ChunkKind) {
		// 超长段落在内部退化为滑动窗口，保持行号准确
		if end-start+1 > c.windowLines {
			chunks = append(chunks, c.windowSegment(repoID, filePath, language, lines, start, end)...)
			return
		}
		chunks = append(chunks, c.buildChunk(repoID, filePath, language, lines, start, end, kind))
	}

	// 首个声明之前的内容（导入、常量等）作为独立块
	if boundaries[0] > 0 {
		appendSegment(0, boundaries[0]-1, domainRepo.ChunkKindBlock)
	}

	for i, start := range boundaries {
		end := len(lines) - 1
		if i+1 < len(boundaries) {
			end = boundaries[i+1] - 1
		}

		kind := domainRepo.ChunkKindFunction
		if classPattern != nil && classPattern.MatchString(lines[start]) {
			kind = domainRepo.ChunkKindClass
		}
		appendSegment(start, end, kind)
	}

	return chunks
}

// chunkByWindow 滑动窗口切分（200 行窗口、20 行重叠）
func (c *Chunker) chunkByWindow(repoID, filePath, language string, lines []string) []*domainRepo.Chunk {
	if len(lines) <= c.windowLines {
		return []*domainRepo.Chunk{
			c.buildChunk(repoID, filePath, language, lines, 0, len(lines)-1, domainRepo.ChunkKindFile),
		}
	}
	return c.windowSegment(repoID, filePath, language, lines, 0, len(lines)-1)
}

// windowSegment 在 [start, end] 区间内做滑动窗口切分
func (c *Chunker) windowSegment(repoID, filePath, language string, lines []string, start, end int) []*domainRepo.Chunk {
	var chunks []*domainRepo.Chunk
	step := c.windowLines - c.overlapLines

	for from := start; from <= end; from += step {
		to := from + c.windowLines - 1
		if to > end {
			to = end
		}
		chunks = append(chunks, c.buildChunk(repoID, filePath, language, lines, from, to, domainRepo.ChunkKindBlock))
		if to == end {
			break
		}
	}

	return chunks
}

// buildChunk 构建片段，start/end 为 0 起下标，行号转为 1 起
func (c *Chunker) buildChunk(repoID, filePath, language string, lines []string, start, end int, kind domainRepo.ChunkKind) *domainRepo.Chunk {
	startLine := start + 1
	endLine := end + 1

	return &domainRepo.Chunk{
		ChunkID:   domainRepo.NewChunkID(repoID, filePath, startLine, endLine),
		RepoID:    repoID,
		FilePath:  filePath,
		StartLine: startLine,
		EndLine:   endLine,
		Text:      strings.Join(lines[start:end+1], "\n"),
		Kind:      kind,
		Language:  language,
	}
}

// splitLines 按行切分，规整 CRLF 并去掉末尾空行
func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	content = strings.ReplaceAll(content, "\r\n", "\n")
	lines := strings.Split(content, "\n")
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
