package types

// EmploymentType 岗位的用工类型
type EmploymentType string

const (
	EmploymentFullTime   EmploymentType = "full-time"
	EmploymentPartTime   EmploymentType = "part-time"
	EmploymentContract   EmploymentType = "contract"
	EmploymentInternship EmploymentType = "internship"
)

// Valid 检查用工类型是否为已知枚举值
func (t EmploymentType) Valid() bool {
	switch t {
	case EmploymentFullTime, EmploymentPartTime, EmploymentContract, EmploymentInternship:
		return true
	}
	return false
}

// ExperienceLevel 岗位要求的经验级别
type ExperienceLevel string

const (
	ExperienceEntry  ExperienceLevel = "entry"
	ExperienceMid    ExperienceLevel = "mid-level"
	ExperienceSenior ExperienceLevel = "senior"
	ExperienceLead   ExperienceLevel = "lead"
)

// Valid 检查经验级别是否为已知枚举值
func (l ExperienceLevel) Valid() bool {
	switch l {
	case ExperienceEntry, ExperienceMid, ExperienceSenior, ExperienceLead:
		return true
	}
	return false
}

// JobSubmission 一次岗位发布提交，所有字段trim后必须非空
type JobSubmission struct {
	Title        string         `json:"title"`
	Company      string         `json:"company"`
	Location     string         `json:"location"`
	Type         EmploymentType `json:"type"`
	Experience   ExperienceLevel `json:"experience"`
	Description  string         `json:"description"`
	Requirements string         `json:"requirements"`
	Benefits     string         `json:"benefits"`
}

// CandidateSubmission 一次候选人投递提交，简历文件单独以二进制传入
type CandidateSubmission struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	ProfileURL string `json:"profile_url"`
	Skills     string `json:"skills"`
	Experience string `json:"experience"`
}

// ParsedResume 简历提取结果
// Text 保留原始大小写；三组结构化信号基于小写副本匹配得到
type ParsedResume struct {
	Text       string   `json:"text"`
	Skills     []string `json:"skills"`
	Education  []string `json:"education"`
	Experience []string `json:"experience"`
}

// JobMetadata 岗位记录随向量持久化的封闭元数据集合
type JobMetadata struct {
	Title      string `json:"title"`
	Company    string `json:"company"`
	Location   string `json:"location"`
	Type       string `json:"type"`
	Experience string `json:"experience"`
	Timestamp  string `json:"timestamp"` // ISO-8601
}

// CandidateMetadata 候选人记录随向量持久化的封闭元数据集合
// 三个计数字段持久化简历的结构化信号（原始文本只参与嵌入）
type CandidateMetadata struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	ProfileURL      string `json:"profile_url"`
	Timestamp       string `json:"timestamp"` // ISO-8601
	SkillCount      int    `json:"skill_count"`
	EducationLines  int    `json:"education_lines"`
	ExperienceLines int    `json:"experience_lines"`
}

// MatchResult 一条相似度检索结果
// Score 为 [0,1] 的余弦相似度；Metadata 为写入时的载荷原样返回
type MatchResult struct {
	ID       string                 `json:"id"`
	Score    float32                `json:"score"`
	Metadata map[string]interface{} `json:"metadata"`
}

// JobIngestResponse IngestJob 的聚合响应
type JobIngestResponse struct {
	JobID              string        `json:"job_id"`
	Analysis           string        `json:"analysis"`
	MatchingCandidates []MatchResult `json:"matching_candidates"`
}

// CandidateIngestResponse IngestCandidate 的聚合响应
type CandidateIngestResponse struct {
	Analysis     string        `json:"analysis"`
	MatchingJobs []MatchResult `json:"matching_jobs"`
}

// MatchEvent 摄入完成后发布到消息队列的事件
type MatchEvent struct {
	EventID   string       `json:"event_id"`
	Namespace string       `json:"namespace"`
	RecordID  string       `json:"record_id"`
	Matches   []MatchBrief `json:"matches"`
	Timestamp string       `json:"timestamp"`
}

// MatchBrief 事件中只携带对端记录的ID和分数
type MatchBrief struct {
	ID    string  `json:"id"`
	Score float32 `json:"score"`
}
