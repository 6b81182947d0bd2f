package constants

import "time"

const (
	// NamespaceJobs 岗位命名空间（对应一个独立的Qdrant集合）
	NamespaceJobs = "jobs"
	// NamespaceCandidates 候选人命名空间
	NamespaceCandidates = "candidates"

	// DefaultTopK 默认的相似度检索数量
	DefaultTopK = 5

	// DefaultVectorDimension 默认向量维度，与阿里云Embedding一致
	DefaultVectorDimension = 1024

	// AnalysisTaskJob 岗位分析任务标识
	AnalysisTaskJob = "job"
	// AnalysisTaskCandidate 候选人分析任务标识
	AnalysisTaskCandidate = "candidate"

	// IngestionStatusTTL 摄入状态在Redis中的保留时间
	IngestionStatusTTL = 7 * 24 * time.Hour
)

// 摄入状态值，依次写入Redis用于诊断处理到哪一步
const (
	StatusReceived  = "received"
	StatusEmbedded  = "embedded"
	StatusStored    = "stored"
	StatusCompleted = "completed"
	// StatusFailedPrefix 失败状态前缀，后接失败的步骤名，如 "failed:embed"
	StatusFailedPrefix = "failed:"
)
