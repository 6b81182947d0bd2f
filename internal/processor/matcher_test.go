package processor_test

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"

	"talent-match-go/internal/config"
	"talent-match-go/internal/constants"
	"talent-match-go/internal/processor"
	"talent-match-go/internal/storage"
	"talent-match-go/internal/types"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- 测试替身 ---

type fakeEmbedder struct {
	vector []float64
	err    error
	calls  int
}

func (f *fakeEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}

type fakeAnalyzer struct {
	report   string
	err      error
	lastTask string
	lastDoc  string
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, task string, document string) (string, error) {
	f.lastTask = task
	f.lastDoc = document
	if f.err != nil {
		return "", f.err
	}
	return f.report, nil
}

type upsertCall struct {
	namespace string
	record    storage.IndexRecord
}

type fakeIndex struct {
	upserts    []upsertCall
	queryNS    []string
	results    []types.MatchResult
	upsertErr  error
	queryErr   error
	lastTopK   int
	lastVector []float64
}

func (f *fakeIndex) Connect(ctx context.Context) error { return nil }

func (f *fakeIndex) Upsert(ctx context.Context, namespace string, record storage.IndexRecord) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts = append(f.upserts, upsertCall{namespace: namespace, record: record})
	return nil
}

func (f *fakeIndex) Query(ctx context.Context, namespace string, vector []float64, topK int) ([]types.MatchResult, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	f.queryNS = append(f.queryNS, namespace)
	f.lastTopK = topK
	f.lastVector = vector
	return f.results, nil
}

type fakeResumeParser struct {
	parsed *types.ParsedResume
	err    error
	calls  int
}

func (f *fakeResumeParser) Parse(ctx context.Context, data []byte, uri string) (*types.ParsedResume, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.parsed, nil
}

type fakeStatusTracker struct {
	statuses map[string][]string // "{namespace}:{id}" -> 状态序列
	err      error
}

func (f *fakeStatusTracker) SetIngestionStatus(ctx context.Context, namespace, recordID, status string) error {
	if f.err != nil {
		return f.err
	}
	if f.statuses == nil {
		f.statuses = make(map[string][]string)
	}
	key := namespace + ":" + recordID
	f.statuses[key] = append(f.statuses[key], status)
	return nil
}

func (f *fakeStatusTracker) GetIngestionStatus(ctx context.Context, namespace, recordID string) (string, error) {
	key := namespace + ":" + recordID
	seq := f.statuses[key]
	if len(seq) == 0 {
		return "", storage.ErrNotFound
	}
	return seq[len(seq)-1], nil
}

type fakePublisher struct {
	published []types.MatchEvent
	err       error
}

func (f *fakePublisher) PublishMessage(ctx context.Context, exchange, routingKey string, message []byte, persistent bool) error {
	return f.err
}

func (f *fakePublisher) PublishJSON(ctx context.Context, exchange, routingKey string, data interface{}, persistent bool) error {
	if f.err != nil {
		return f.err
	}
	if event, ok := data.(types.MatchEvent); ok {
		f.published = append(f.published, event)
	}
	return nil
}

func (f *fakePublisher) EnsureExchange(exchangeName, exchangeType string, durable bool) error {
	return nil
}

func (f *fakePublisher) Close() error { return nil }

// --- 辅助构造 ---

func validJob() *types.JobSubmission {
	return &types.JobSubmission{
		Title:        "后端工程师",
		Company:      "Acme",
		Location:     "Shanghai",
		Type:         types.EmploymentFullTime,
		Experience:   types.ExperienceSenior,
		Description:  "构建匹配系统",
		Requirements: "Go",
		Benefits:     "远程办公",
	}
}

func validCandidate() *types.CandidateSubmission {
	return &types.CandidateSubmission{
		Name:       "Alice",
		Email:      "alice@example.com",
		ProfileURL: "https://linkedin.com/in/alice",
		Skills:     "Go, Python",
		Experience: "5 years",
	}
}

func newTestMatcher(t *testing.T, index *fakeIndex, opts ...processor.MatcherOption) (*processor.Matcher, *fakeEmbedder, *fakeAnalyzer) {
	t.Helper()
	embedder := &fakeEmbedder{vector: []float64{0.1, 0.2, 0.3}}
	analyzer := &fakeAnalyzer{report: "分析报告"}
	m, err := processor.NewMatcher(embedder, analyzer, index, opts...)
	require.NoError(t, err)
	return m, embedder, analyzer
}

// --- 岗位摄入 ---

func TestMatcher_IngestJob_Success(t *testing.T) {
	index := &fakeIndex{results: []types.MatchResult{
		{ID: "alice@example.com", Score: 0.9},
		{ID: "bob@example.com", Score: 0.8},
	}}
	m, _, analyzer := newTestMatcher(t, index)

	resp, err := m.IngestJob(context.Background(), validJob())
	require.NoError(t, err, "摄入应成功")

	assert.Regexp(t, regexp.MustCompile(`^Acme-\d+$`), resp.JobID, "岗位ID形如 {company}-{整数}")
	assert.Equal(t, "分析报告", resp.Analysis)
	require.Len(t, resp.MatchingCandidates, 2)

	// 写入自己的命名空间，查询对端命名空间
	require.Len(t, index.upserts, 1)
	assert.Equal(t, constants.NamespaceJobs, index.upserts[0].namespace)
	assert.Equal(t, []string{constants.NamespaceCandidates}, index.queryNS)
	assert.Equal(t, constants.DefaultTopK, index.lastTopK)

	// 元数据为封闭集合
	meta := index.upserts[0].record.Metadata
	assert.Equal(t, "后端工程师", meta["title"])
	assert.Equal(t, "Acme", meta["company"])
	assert.NotEmpty(t, meta["timestamp"])

	assert.Equal(t, constants.AnalysisTaskJob, analyzer.lastTask, "应使用岗位分析任务")
}

func TestMatcher_IngestJob_Validation(t *testing.T) {
	index := &fakeIndex{}
	m, embedder, _ := newTestMatcher(t, index)

	cases := []struct {
		name   string
		mutate func(*types.JobSubmission)
	}{
		{"缺少标题", func(j *types.JobSubmission) { j.Title = "  " }},
		{"缺少公司", func(j *types.JobSubmission) { j.Company = "" }},
		{"缺少描述", func(j *types.JobSubmission) { j.Description = "" }},
		{"未知用工类型", func(j *types.JobSubmission) { j.Type = "freelance" }},
		{"未知经验级别", func(j *types.JobSubmission) { j.Experience = "guru" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			job := validJob()
			tc.mutate(job)
			_, err := m.IngestJob(context.Background(), job)
			require.Error(t, err)
			assert.ErrorIs(t, err, processor.ErrInvalidSubmission, "应为校验错误")
		})
	}

	assert.Zero(t, embedder.calls, "校验失败不应调用嵌入服务")
	assert.Empty(t, index.upserts, "校验失败不应写入索引")
}

func TestMatcher_IngestJob_UniqueIDsSameMillisecond(t *testing.T) {
	index := &fakeIndex{}
	m, _, _ := newTestMatcher(t, index)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		resp, err := m.IngestJob(context.Background(), validJob())
		require.NoError(t, err)
		assert.False(t, seen[resp.JobID], "同一毫秒内的提交也不能产生重复ID: %s", resp.JobID)
		seen[resp.JobID] = true
	}
}

func TestMatcher_IngestJob_EmbedFailure(t *testing.T) {
	index := &fakeIndex{}
	tracker := &fakeStatusTracker{}
	m, embedder, _ := newTestMatcher(t, index, processor.WithStatusTracker(tracker))
	embedder.err = errors.New("service down")

	_, err := m.IngestJob(context.Background(), validJob())
	require.Error(t, err)
	assert.ErrorIs(t, err, processor.ErrEmbeddingService)
	assert.Empty(t, index.upserts, "嵌入失败不应写入索引")

	// 状态应记录失败的步骤
	var lastStatus string
	for _, seq := range tracker.statuses {
		lastStatus = seq[len(seq)-1]
	}
	assert.Equal(t, constants.StatusFailedPrefix+"embed", lastStatus)
}

func TestMatcher_IngestJob_AnalysisFailureAfterStore(t *testing.T) {
	index := &fakeIndex{}
	m, _, analyzer := newTestMatcher(t, index)
	analyzer.err = errors.New("llm unavailable")

	_, err := m.IngestJob(context.Background(), validJob())
	require.Error(t, err)
	assert.ErrorIs(t, err, processor.ErrAnalysisService)
	// 写入成功后不回滚
	assert.Len(t, index.upserts, 1, "分析失败时已写入的记录保持持久化")
}

// --- 候选人摄入 ---

func TestMatcher_IngestCandidate_Success(t *testing.T) {
	index := &fakeIndex{results: []types.MatchResult{{ID: "Acme-123", Score: 0.88}}}
	rp := &fakeResumeParser{parsed: &types.ParsedResume{
		Text:       "resume text",
		Skills:     []string{"go", "python"},
		Education:  []string{"Bachelor ..."},
		Experience: []string{"2019 - 2022 ..."},
	}}
	m, _, analyzer := newTestMatcher(t, index, processor.WithResumeParser(rp))

	resp, err := m.IngestCandidate(context.Background(), validCandidate(), []byte("%PDF..."), "resume.pdf")
	require.NoError(t, err)

	assert.Equal(t, "分析报告", resp.Analysis)
	require.Len(t, resp.MatchingJobs, 1)

	require.Len(t, index.upserts, 1)
	assert.Equal(t, constants.NamespaceCandidates, index.upserts[0].namespace)
	assert.Equal(t, "alice@example.com", index.upserts[0].record.ID, "邮箱即记录ID")
	assert.Equal(t, []string{constants.NamespaceJobs}, index.queryNS, "应查询对端的岗位命名空间")

	meta := index.upserts[0].record.Metadata
	assert.Equal(t, 2, meta["skill_count"], "简历信号计数应进入元数据")
	assert.Equal(t, 1, meta["education_lines"])
	assert.Equal(t, 1, meta["experience_lines"])

	assert.Equal(t, constants.AnalysisTaskCandidate, analyzer.lastTask)
	assert.Contains(t, analyzer.lastDoc, "Resume: resume text", "简历全文应折叠进规范文档")
}

func TestMatcher_IngestCandidate_WithoutResume(t *testing.T) {
	index := &fakeIndex{}
	rp := &fakeResumeParser{}
	m, _, _ := newTestMatcher(t, index, processor.WithResumeParser(rp))

	_, err := m.IngestCandidate(context.Background(), validCandidate(), nil, "")
	require.NoError(t, err, "简历是可选的")
	assert.Zero(t, rp.calls, "未上传简历时不应调用解析器")

	meta := index.upserts[0].record.Metadata
	assert.Equal(t, 0, meta["skill_count"], "无简历时信号计数为零")
}

func TestMatcher_IngestCandidate_ExtractionFailureAbortsBeforeWrites(t *testing.T) {
	index := &fakeIndex{}
	tracker := &fakeStatusTracker{}
	rp := &fakeResumeParser{err: errors.New("corrupt pdf")}
	m, embedder, _ := newTestMatcher(t, index,
		processor.WithResumeParser(rp),
		processor.WithStatusTracker(tracker))

	_, err := m.IngestCandidate(context.Background(), validCandidate(), []byte("broken"), "resume.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, processor.ErrResumeExtraction)

	assert.Zero(t, embedder.calls, "解析失败不应调用嵌入服务")
	assert.Empty(t, index.upserts, "解析失败不应写入索引")
	assert.Empty(t, tracker.statuses, "解析失败先于任何状态写入")
}

func TestMatcher_IngestCandidate_Validation(t *testing.T) {
	index := &fakeIndex{}
	m, _, _ := newTestMatcher(t, index)

	c := validCandidate()
	c.Email = "not-an-email"
	_, err := m.IngestCandidate(context.Background(), c, nil, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, processor.ErrInvalidSubmission, "非法邮箱应拒绝")

	c = validCandidate()
	c.ProfileURL = "::::not-a-url"
	_, err = m.IngestCandidate(context.Background(), c, nil, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, processor.ErrInvalidSubmission, "非法主页链接应拒绝")
}

func TestMatcher_IngestCandidate_SameEmailOverwrites(t *testing.T) {
	index := &fakeIndex{}
	m, _, _ := newTestMatcher(t, index)

	c := validCandidate()
	_, err := m.IngestCandidate(context.Background(), c, nil, "")
	require.NoError(t, err)
	_, err = m.IngestCandidate(context.Background(), c, nil, "")
	require.NoError(t, err)

	require.Len(t, index.upserts, 2)
	assert.Equal(t, index.upserts[0].record.ID, index.upserts[1].record.ID,
		"同一邮箱重复投递写入相同的记录ID，后写覆盖先写")
}

// --- 旁路组件 ---

func TestMatcher_StatusProgression(t *testing.T) {
	index := &fakeIndex{}
	tracker := &fakeStatusTracker{}
	m, _, _ := newTestMatcher(t, index, processor.WithStatusTracker(tracker))

	resp, err := m.IngestJob(context.Background(), validJob())
	require.NoError(t, err)

	seq := tracker.statuses[constants.NamespaceJobs+":"+resp.JobID]
	assert.Equal(t, []string{
		constants.StatusReceived,
		constants.StatusEmbedded,
		constants.StatusStored,
		constants.StatusCompleted,
	}, seq, "状态应按流水线步骤依次推进")
}

func TestMatcher_PublishesMatchEvent(t *testing.T) {
	index := &fakeIndex{results: []types.MatchResult{{ID: "bob@example.com", Score: 0.7}}}
	pub := &fakePublisher{}
	mqCfg := &config.RabbitMQConfig{
		MatchEventsExchange:      "match.events.exchange",
		MatchCompletedRoutingKey: "match.completed",
	}
	m, _, _ := newTestMatcher(t, index, processor.WithEventPublisher(pub, mqCfg))

	resp, err := m.IngestJob(context.Background(), validJob())
	require.NoError(t, err)

	require.Len(t, pub.published, 1, "摄入完成应发布一条匹配事件")
	event := pub.published[0]
	assert.Equal(t, constants.NamespaceJobs, event.Namespace)
	assert.Equal(t, resp.JobID, event.RecordID)
	require.Len(t, event.Matches, 1)
	assert.Equal(t, "bob@example.com", event.Matches[0].ID)
	assert.NotEmpty(t, event.EventID)
}

func TestMatcher_SideChannelFailuresAreNotFatal(t *testing.T) {
	index := &fakeIndex{}
	tracker := &fakeStatusTracker{err: errors.New("redis down")}
	pub := &fakePublisher{err: errors.New("broker down")}
	mqCfg := &config.RabbitMQConfig{
		MatchEventsExchange:      "match.events.exchange",
		MatchCompletedRoutingKey: "match.completed",
	}
	m, _, _ := newTestMatcher(t, index,
		processor.WithStatusTracker(tracker),
		processor.WithEventPublisher(pub, mqCfg))

	_, err := m.IngestJob(context.Background(), validJob())
	require.NoError(t, err, "状态跟踪和事件发布失败不影响摄入结果")
}

func TestMatcher_QueryFailure(t *testing.T) {
	index := &fakeIndex{queryErr: fmt.Errorf("qdrant timeout")}
	m, _, _ := newTestMatcher(t, index)

	_, err := m.IngestJob(context.Background(), validJob())
	require.Error(t, err)
	assert.ErrorIs(t, err, processor.ErrStoreQuery)
}
