package processor

import (
	"context"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"sync"
	"time"

	"talent-match-go/internal/config"
	"talent-match-go/internal/constants"
	"talent-match-go/internal/logger"
	"talent-match-go/internal/storage"
	"talent-match-go/internal/types"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// 定义匹配处理器的专用tracer
var matcherTracer = otel.Tracer("talent-match-go/processor/matcher")

// Analyzer 分析报告生成接口
type Analyzer interface {
	Analyze(ctx context.Context, task string, document string) (string, error)
}

// ResumeParsing 简历解析接口
type ResumeParsing interface {
	Parse(ctx context.Context, data []byte, uri string) (*types.ParsedResume, error)
}

// Matcher 双向匹配处理器
// 把一次提交走完整条摄入流水线：校验、规范化、嵌入、写入向量索引、
// 生成分析报告、在对端命名空间检索，最后聚合响应
//
// Qdrant/嵌入/分析是硬依赖；归档、状态跟踪、事件发布是尽力而为的旁路，
// 相应字段为nil或操作失败时只记录日志
type Matcher struct {
	embedder  embedding.Embedder
	analyzer  Analyzer
	index     storage.VectorIndex
	resumes   ResumeParsing
	archiver  storage.ResumeArchiver
	status    storage.StatusTracker
	publisher storage.MessageQueue
	mqCfg     *config.RabbitMQConfig
	topK      int

	// 岗位ID时间戳发号器，保证同一进程内单调递增
	jobStampMu sync.Mutex
	jobStamp   int64
}

// MatcherOption 匹配处理器的配置选项
type MatcherOption func(*Matcher)

// WithResumeParser 配置简历解析器
func WithResumeParser(p ResumeParsing) MatcherOption {
	return func(m *Matcher) { m.resumes = p }
}

// WithResumeArchiver 配置简历原件归档
func WithResumeArchiver(a storage.ResumeArchiver) MatcherOption {
	return func(m *Matcher) { m.archiver = a }
}

// WithStatusTracker 配置摄入状态跟踪
func WithStatusTracker(s storage.StatusTracker) MatcherOption {
	return func(m *Matcher) { m.status = s }
}

// WithEventPublisher 配置匹配事件发布
func WithEventPublisher(mq storage.MessageQueue, cfg *config.RabbitMQConfig) MatcherOption {
	return func(m *Matcher) {
		m.publisher = mq
		m.mqCfg = cfg
	}
}

// WithTopK 覆盖默认的检索数量
func WithTopK(k int) MatcherOption {
	return func(m *Matcher) {
		if k > 0 {
			m.topK = k
		}
	}
}

// NewMatcher 创建匹配处理器
func NewMatcher(embedder embedding.Embedder, analyzer Analyzer, index storage.VectorIndex, opts ...MatcherOption) (*Matcher, error) {
	if embedder == nil {
		return nil, fmt.Errorf("嵌入器不能为空")
	}
	if analyzer == nil {
		return nil, fmt.Errorf("分析器不能为空")
	}
	if index == nil {
		return nil, fmt.Errorf("向量索引不能为空")
	}

	m := &Matcher{
		embedder: embedder,
		analyzer: analyzer,
		index:    index,
		topK:     constants.DefaultTopK,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// IngestJob 摄入一个岗位发布并返回匹配的候选人
func (m *Matcher) IngestJob(ctx context.Context, job *types.JobSubmission) (*types.JobIngestResponse, error) {
	ctx, span := matcherTracer.Start(ctx, "Matcher.IngestJob")
	defer span.End()

	if err := validateJob(job); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	jobID := m.nextJobID(job.Company)
	span.SetAttributes(
		attribute.String("job.id", jobID),
		attribute.String("job.company", job.Company),
	)
	m.trackStatus(ctx, constants.NamespaceJobs, jobID, constants.StatusReceived)

	document := NormalizeJob(job)

	vector, err := m.embed(ctx, document)
	if err != nil {
		m.failStatus(ctx, constants.NamespaceJobs, jobID, "embed", err)
		span.SetStatus(codes.Error, err.Error())
		return nil, NewEmbeddingError(jobID, err.Error())
	}
	m.trackStatus(ctx, constants.NamespaceJobs, jobID, constants.StatusEmbedded)

	metadata := types.JobMetadata{
		Title:      job.Title,
		Company:    job.Company,
		Location:   job.Location,
		Type:       string(job.Type),
		Experience: string(job.Experience),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	record := storage.IndexRecord{
		ID:     jobID,
		Vector: vector,
		Metadata: map[string]interface{}{
			"title":      metadata.Title,
			"company":    metadata.Company,
			"location":   metadata.Location,
			"type":       metadata.Type,
			"experience": metadata.Experience,
			"timestamp":  metadata.Timestamp,
		},
	}
	if err := m.index.Upsert(ctx, constants.NamespaceJobs, record); err != nil {
		m.failStatus(ctx, constants.NamespaceJobs, jobID, "upsert", err)
		span.SetStatus(codes.Error, err.Error())
		return nil, NewStoreWriteError(jobID, err.Error())
	}
	m.trackStatus(ctx, constants.NamespaceJobs, jobID, constants.StatusStored)

	// 写入成功后不再回滚：分析或检索失败时记录已持久化，整体请求报错
	analysis, err := m.analyzer.Analyze(ctx, constants.AnalysisTaskJob, document)
	if err != nil {
		m.failStatus(ctx, constants.NamespaceJobs, jobID, "analyze", err)
		span.SetStatus(codes.Error, err.Error())
		return nil, NewAnalysisError(jobID, err.Error())
	}

	matches, err := m.index.Query(ctx, constants.NamespaceCandidates, vector, m.topK)
	if err != nil {
		m.failStatus(ctx, constants.NamespaceJobs, jobID, "query", err)
		span.SetStatus(codes.Error, err.Error())
		return nil, NewStoreQueryError(jobID, err.Error())
	}

	m.trackStatus(ctx, constants.NamespaceJobs, jobID, constants.StatusCompleted)
	m.publishMatchEvent(ctx, constants.NamespaceJobs, jobID, matches)

	span.SetAttributes(attribute.Int("match.count", len(matches)))
	span.SetStatus(codes.Ok, "")
	logger.Info().
		Str("job_id", jobID).
		Int("matching_candidates", len(matches)).
		Msg("岗位摄入完成")

	return &types.JobIngestResponse{
		JobID:              jobID,
		Analysis:           analysis,
		MatchingCandidates: matches,
	}, nil
}

// IngestCandidate 摄入一次候选人投递并返回匹配的岗位
// resumeData 为可选的简历原件；提供时解析失败会在写入任何状态之前终止整个请求
func (m *Matcher) IngestCandidate(ctx context.Context, c *types.CandidateSubmission, resumeData []byte, resumeFileName string) (*types.CandidateIngestResponse, error) {
	ctx, span := matcherTracer.Start(ctx, "Matcher.IngestCandidate")
	defer span.End()

	if err := validateCandidate(c); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	recordID := c.Email // 邮箱即记录ID，重复投递覆盖旧记录
	span.SetAttributes(attribute.String("candidate.id", recordID))

	// 简历解析先于一切副作用：解析失败时索引和状态都保持不变
	var parsed *types.ParsedResume
	if len(resumeData) > 0 {
		if m.resumes == nil {
			return nil, NewExtractionError(recordID, "未配置简历解析器")
		}
		var err error
		parsed, err = m.resumes.Parse(ctx, resumeData, resumeFileName)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, NewExtractionError(recordID, err.Error())
		}
		span.SetAttributes(
			attribute.Int("resume.skills", len(parsed.Skills)),
			attribute.Int("resume.education_lines", len(parsed.Education)),
			attribute.Int("resume.experience_lines", len(parsed.Experience)),
		)
	}

	m.trackStatus(ctx, constants.NamespaceCandidates, recordID, constants.StatusReceived)
	m.archiveResume(ctx, recordID, resumeFileName, resumeData)

	resumeText := ""
	if parsed != nil {
		resumeText = parsed.Text
	}
	document := NormalizeCandidate(c, resumeText)

	vector, err := m.embed(ctx, document)
	if err != nil {
		m.failStatus(ctx, constants.NamespaceCandidates, recordID, "embed", err)
		span.SetStatus(codes.Error, err.Error())
		return nil, NewEmbeddingError(recordID, err.Error())
	}
	m.trackStatus(ctx, constants.NamespaceCandidates, recordID, constants.StatusEmbedded)

	metadata := types.CandidateMetadata{
		Name:       c.Name,
		Email:      c.Email,
		ProfileURL: c.ProfileURL,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	if parsed != nil {
		metadata.SkillCount = len(parsed.Skills)
		metadata.EducationLines = len(parsed.Education)
		metadata.ExperienceLines = len(parsed.Experience)
	}
	record := storage.IndexRecord{
		ID:     recordID,
		Vector: vector,
		Metadata: map[string]interface{}{
			"name":             metadata.Name,
			"email":            metadata.Email,
			"profile_url":      metadata.ProfileURL,
			"timestamp":        metadata.Timestamp,
			"skill_count":      metadata.SkillCount,
			"education_lines":  metadata.EducationLines,
			"experience_lines": metadata.ExperienceLines,
		},
	}
	if err := m.index.Upsert(ctx, constants.NamespaceCandidates, record); err != nil {
		m.failStatus(ctx, constants.NamespaceCandidates, recordID, "upsert", err)
		span.SetStatus(codes.Error, err.Error())
		return nil, NewStoreWriteError(recordID, err.Error())
	}
	m.trackStatus(ctx, constants.NamespaceCandidates, recordID, constants.StatusStored)

	analysis, err := m.analyzer.Analyze(ctx, constants.AnalysisTaskCandidate, document)
	if err != nil {
		m.failStatus(ctx, constants.NamespaceCandidates, recordID, "analyze", err)
		span.SetStatus(codes.Error, err.Error())
		return nil, NewAnalysisError(recordID, err.Error())
	}

	matches, err := m.index.Query(ctx, constants.NamespaceJobs, vector, m.topK)
	if err != nil {
		m.failStatus(ctx, constants.NamespaceCandidates, recordID, "query", err)
		span.SetStatus(codes.Error, err.Error())
		return nil, NewStoreQueryError(recordID, err.Error())
	}

	m.trackStatus(ctx, constants.NamespaceCandidates, recordID, constants.StatusCompleted)
	m.publishMatchEvent(ctx, constants.NamespaceCandidates, recordID, matches)

	span.SetAttributes(attribute.Int("match.count", len(matches)))
	span.SetStatus(codes.Ok, "")
	logger.Info().
		Str("candidate_id", recordID).
		Int("matching_jobs", len(matches)).
		Msg("候选人摄入完成")

	return &types.CandidateIngestResponse{
		Analysis:     analysis,
		MatchingJobs: matches,
	}, nil
}

// embed 嵌入单个规范文档
func (m *Matcher) embed(ctx context.Context, document string) ([]float64, error) {
	vectors, err := m.embedder.EmbedStrings(ctx, []string{document})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("嵌入服务未返回向量")
	}
	return vectors[0], nil
}

// nextJobID 生成形如 {company}-{unix_ms} 的岗位ID
// 发号器保证时间戳单调递增，同一毫秒内的并发提交不会产生相同ID
func (m *Matcher) nextJobID(company string) string {
	m.jobStampMu.Lock()
	stamp := time.Now().UnixMilli()
	if stamp <= m.jobStamp {
		stamp = m.jobStamp + 1
	}
	m.jobStamp = stamp
	m.jobStampMu.Unlock()
	return fmt.Sprintf("%s-%d", company, stamp)
}

// trackStatus 尽力而为地写入摄入状态
func (m *Matcher) trackStatus(ctx context.Context, namespace, recordID, status string) {
	if m.status == nil {
		return
	}
	if err := m.status.SetIngestionStatus(ctx, namespace, recordID, status); err != nil {
		logger.Warn().Err(err).
			Str("namespace", namespace).
			Str("record_id", recordID).
			Str("status", status).
			Msg("写入摄入状态失败")
	}
}

// failStatus 记录失败的步骤，状态值为 failed:{step}
func (m *Matcher) failStatus(ctx context.Context, namespace, recordID, step string, cause error) {
	logger.Error().Err(cause).
		Str("namespace", namespace).
		Str("record_id", recordID).
		Str("step", step).
		Msg("摄入步骤失败")
	m.trackStatus(ctx, namespace, recordID, constants.StatusFailedPrefix+step)
}

// archiveResume 尽力而为地归档简历原件
func (m *Matcher) archiveResume(ctx context.Context, candidateID, fileName string, data []byte) {
	if m.archiver == nil || len(data) == 0 {
		return
	}
	objectKey, err := m.archiver.ArchiveResume(ctx, candidateID, fileName, data)
	if err != nil {
		logger.Warn().Err(err).
			Str("candidate_id", candidateID).
			Msg("归档简历原件失败")
		return
	}
	logger.Debug().
		Str("candidate_id", candidateID).
		Str("object_key", objectKey).
		Msg("简历原件已归档")
}

// publishMatchEvent 尽力而为地发布匹配完成事件
func (m *Matcher) publishMatchEvent(ctx context.Context, namespace, recordID string, matches []types.MatchResult) {
	if m.publisher == nil || m.mqCfg == nil {
		return
	}

	briefs := make([]types.MatchBrief, 0, len(matches))
	for _, match := range matches {
		briefs = append(briefs, types.MatchBrief{ID: match.ID, Score: match.Score})
	}

	event := types.MatchEvent{
		EventID:   uuid.NewString(),
		Namespace: namespace,
		RecordID:  recordID,
		Matches:   briefs,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	err := m.publisher.PublishJSON(ctx, m.mqCfg.MatchEventsExchange, m.mqCfg.MatchCompletedRoutingKey, event, true)
	if err != nil {
		logger.Warn().Err(err).
			Str("namespace", namespace).
			Str("record_id", recordID).
			Msg("发布匹配事件失败")
	}
}

// validateJob 校验岗位提交：所有字段trim后必须非空，枚举字段必须是已知值
func validateJob(job *types.JobSubmission) error {
	if job == nil {
		return NewValidationError("", "提交内容为空")
	}

	var missing []string
	checkField(&missing, "title", job.Title)
	checkField(&missing, "company", job.Company)
	checkField(&missing, "location", job.Location)
	checkField(&missing, "type", string(job.Type))
	checkField(&missing, "experience", string(job.Experience))
	checkField(&missing, "description", job.Description)
	checkField(&missing, "requirements", job.Requirements)
	checkField(&missing, "benefits", job.Benefits)
	if len(missing) > 0 {
		return NewValidationError("", "缺少必填字段: "+strings.Join(missing, ", "))
	}

	if !job.Type.Valid() {
		return NewValidationError("", fmt.Sprintf("未知的用工类型: %s", job.Type))
	}
	if !job.Experience.Valid() {
		return NewValidationError("", fmt.Sprintf("未知的经验级别: %s", job.Experience))
	}
	return nil
}

// validateCandidate 校验候选人提交
func validateCandidate(c *types.CandidateSubmission) error {
	if c == nil {
		return NewValidationError("", "提交内容为空")
	}

	var missing []string
	checkField(&missing, "name", c.Name)
	checkField(&missing, "email", c.Email)
	checkField(&missing, "skills", c.Skills)
	checkField(&missing, "experience", c.Experience)
	if len(missing) > 0 {
		return NewValidationError(c.Email, "缺少必填字段: "+strings.Join(missing, ", "))
	}

	if _, err := mail.ParseAddress(c.Email); err != nil {
		return NewValidationError(c.Email, "邮箱格式不正确")
	}

	// 个人主页链接可选，提供时必须是合法的http(s)地址
	if c.ProfileURL != "" {
		u, err := url.Parse(c.ProfileURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return NewValidationError(c.Email, "个人主页链接格式不正确")
		}
	}
	return nil
}

func checkField(missing *[]string, name, value string) {
	if strings.TrimSpace(value) == "" {
		*missing = append(*missing, name)
	}
}
