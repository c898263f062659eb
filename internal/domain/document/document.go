package document

// Section 文档章节
type Section struct {
	Title          string   `json:"title"`
	Content        string   `json:"content"`
	SourceChunkIDs []string `json:"source_chunk_ids,omitempty"`
	// Placeholder 章节生成耗尽重试后的占位标记
	Placeholder bool `json:"placeholder,omitempty"`
}

// DocumentDraft 文档草稿
// 由文档合成器按大纲逐章构建，完成后一次性持久化
type DocumentDraft struct {
	DocID     string     `json:"doc_id"`
	RepoID    string     `json:"repo_id"`
	Sections  []*Section `json:"sections"`
	CreatedAt int64      `json:"created_at"` // 毫秒时间戳
}

// DraftRepository 文档草稿仓库接口
type DraftRepository interface {
	SaveDraft(draft *DocumentDraft) error
	GetDraft(docID string) (*DocumentDraft, error)
	GetDraftsByRepo(repoID string) ([]*DocumentDraft, error)
	DeleteDraftsByRepo(repoID string) error
}
