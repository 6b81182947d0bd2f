package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"talent-match-go/internal/config"
	"talent-match-go/internal/tracing"
	"talent-match-go/internal/types"

	"github.com/gofrs/uuid/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// 定义Qdrant的专用tracer
var qdrantTracer = otel.Tracer("talent-match-go/storage/qdrant")

// QdrantPointIDNamespace is a dedicated namespace for generating deterministic Qdrant point IDs.
// Ensures the same record id in the same namespace always maps to the same point,
// so re-ingestion overwrites instead of duplicating.
// UUID generated via `uuidgen`
var QdrantPointIDNamespace = uuid.Must(uuid.FromString("7c9a1f04-2d8b-4c2e-9f33-6b1d0a54c8e2"))

// payloadRecordIDKey 载荷中保存原始记录ID的键
const payloadRecordIDKey = "record_id"

// IndexRecord 一条待写入向量索引的记录
type IndexRecord struct {
	ID       string                 // 命名空间内唯一
	Vector   []float64              // 固定维度向量，本系统不检查内容
	Metadata map[string]interface{} // 随记录持久化的载荷
}

// VectorIndex 向量索引网关接口
type VectorIndex interface {
	// Connect 幂等的惰性初始化，确保两个命名空间的集合存在
	Connect(ctx context.Context) error

	// Upsert 写入或覆盖恰好一条记录
	Upsert(ctx context.Context, namespace string, record IndexRecord) error

	// Query 返回按相似度降序排列的至多topK条结果；空命名空间返回空序列而不是错误
	Query(ctx context.Context, namespace string, vector []float64, topK int) ([]types.MatchResult, error)
}

// 确保Qdrant实现了VectorIndex接口
var _ VectorIndex = (*Qdrant)(nil)

// Qdrant 提供向量数据库功能
// 每个命名空间映射到一个独立集合（{prefix}_{namespace}），查询永不跨命名空间
type Qdrant struct {
	endpoint         string
	collectionPrefix string
	vectorSize       int
	distanceMetric   string
	apiKey           string
	httpClient       *http.Client

	// 惰性初始化保护：并发首次使用不会重复建集合
	connectMu sync.Mutex
	ensured   map[string]bool
}

// QdrantOption 定义Qdrant构造函数选项
type QdrantOption func(*Qdrant)

// WithDistanceMetric 设置距离度量
func WithDistanceMetric(metric string) QdrantOption {
	return func(q *Qdrant) {
		q.distanceMetric = metric
	}
}

// WithHTTPTimeout 设置HTTP客户端超时
func WithHTTPTimeout(timeout time.Duration) QdrantOption {
	return func(q *Qdrant) {
		q.httpClient = &http.Client{Timeout: timeout}
	}
}

// NewQdrant 创建Qdrant客户端，不建立连接；集合在首次使用时惰性创建
func NewQdrant(cfg *config.QdrantConfig, namespaces []string, opts ...QdrantOption) (*Qdrant, error) {
	if cfg == nil {
		return nil, fmt.Errorf("qdrant配置不能为空")
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("qdrant endpoint不能为空")
	}
	if len(namespaces) == 0 {
		return nil, fmt.Errorf("至少需要一个命名空间")
	}

	prefix := cfg.CollectionPrefix
	if prefix == "" {
		prefix = "talent_match" // 默认前缀
	}

	vectorSize := cfg.Dimension
	if vectorSize <= 0 {
		vectorSize = 1024 // 默认向量维度，与阿里云Embedding一致
	}

	q := &Qdrant{
		endpoint:         cfg.Endpoint,
		collectionPrefix: prefix,
		vectorSize:       vectorSize,
		distanceMetric:   "Cosine", // 使用余弦相似度
		apiKey:           cfg.APIKey,
		httpClient:       &http.Client{Timeout: 30 * time.Second},
		ensured:          make(map[string]bool, len(namespaces)),
	}
	for _, ns := range namespaces {
		q.ensured[ns] = false
	}

	for _, opt := range opts {
		opt(q)
	}

	return q, nil
}

// collectionName 命名空间对应的集合名
func (q *Qdrant) collectionName(namespace string) string {
	return q.collectionPrefix + "_" + namespace
}

// PointID 计算记录在命名空间内的确定性点ID
func PointID(namespace, recordID string) string {
	idSource := fmt.Sprintf("namespace:%s_record_id:%s", namespace, recordID)
	return uuid.NewV5(QdrantPointIDNamespace, idSource).String()
}

// Connect 幂等的惰性初始化：确保所有已注册命名空间的集合存在
// 已连接时重复调用不做任何远程操作
func (q *Qdrant) Connect(ctx context.Context) error {
	q.connectMu.Lock()
	defer q.connectMu.Unlock()

	for ns, done := range q.ensured {
		if done {
			continue
		}
		if err := q.ensureCollectionExists(ctx, ns); err != nil {
			return fmt.Errorf("确保命名空间 '%s' 的集合存在失败: %w", ns, err)
		}
		q.ensured[ns] = true
	}
	return nil
}

// ensureCollectionExists 确保向量集合存在
func (q *Qdrant) ensureCollectionExists(ctx context.Context, namespace string) error {
	collection := q.collectionName(namespace)

	ctx, span := qdrantTracer.Start(ctx, "Qdrant.EnsureCollectionExists",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("net.peer.name", q.endpoint),
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "check_collection"),
		attribute.String("db.collection", collection),
		attribute.Int("db.vector_size", q.vectorSize),
	)

	// 先检查集合是否已存在
	url := fmt.Sprintf("%s/collections/%s", q.endpoint, collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return fmt.Errorf("创建检查集合请求失败: %w", err)
	}
	q.setHeaders(req)

	// 注入OpenTelemetry追踪上下文到HTTP请求
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := q.httpClient.Do(req)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return fmt.Errorf("发送检查集合请求失败: %w", err)
	}
	defer resp.Body.Close()

	// 如果集合不存在，则创建它
	if resp.StatusCode == http.StatusNotFound {
		span.AddEvent("collection_not_found", trace.WithAttributes(
			attribute.String("action", "create_collection"),
		))
		return q.createCollection(ctx, namespace)
	} else if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("检查集合失败，状态码: %d, 响应: %s", resp.StatusCode, string(body))
		tracing.RecordHTTPError(span, err, resp.StatusCode)
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// createCollection 创建新的向量集合
func (q *Qdrant) createCollection(ctx context.Context, namespace string) error {
	collection := q.collectionName(namespace)

	ctx, span := qdrantTracer.Start(ctx, "Qdrant.CreateCollection",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "create_collection"),
		attribute.String("db.collection", collection),
		attribute.Int("db.vector_size", q.vectorSize),
		attribute.String("db.vector.distance", q.distanceMetric),
	)

	createReqBody := map[string]interface{}{
		"vectors": map[string]interface{}{
			"size":     q.vectorSize,
			"distance": q.distanceMetric,
		},
	}

	if err := q.doRequest(ctx, http.MethodPut, "/collections/"+collection, createReqBody, nil); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return fmt.Errorf("创建集合 '%s' 失败: %w", collection, err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// Upsert 写入或覆盖一条记录；点ID由命名空间和记录ID确定性派生，同ID重写即覆盖
// 使用 wait=true，保证返回后对同命名空间的查询立即可见
func (q *Qdrant) Upsert(ctx context.Context, namespace string, record IndexRecord) error {
	collection := q.collectionName(namespace)

	ctx, span := qdrantTracer.Start(ctx, "Qdrant.Upsert",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "upsert"),
		attribute.String("db.collection", collection),
		attribute.String("record.id", record.ID),
	)

	if len(record.Vector) != q.vectorSize {
		err := fmt.Errorf("向量维度(%d)与配置维度(%d)不匹配", len(record.Vector), q.vectorSize)
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return err
	}

	if err := q.Connect(ctx); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return err
	}

	payload := make(map[string]interface{}, len(record.Metadata)+1)
	for k, v := range record.Metadata {
		payload[k] = v
	}
	payload[payloadRecordIDKey] = record.ID

	requestBody := map[string]interface{}{
		"points": []map[string]interface{}{
			{
				"id":      PointID(namespace, record.ID),
				"vector":  record.Vector,
				"payload": payload,
			},
		},
	}

	var response struct {
		Result struct {
			Status string `json:"status"`
		} `json:"result"`
		Status string  `json:"status"`
		Time   float64 `json:"time"`
	}

	err := q.doRequest(ctx, http.MethodPut, fmt.Sprintf("/collections/%s/points?wait=true", collection), requestBody, &response)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return err
	}

	span.SetAttributes(
		attribute.String("qdrant.response_status", response.Status),
		attribute.Float64("qdrant.response_time", response.Time),
	)
	span.SetStatus(codes.Ok, "")
	return nil
}

// Query 在给定命名空间内检索与查询向量最相似的记录
func (q *Qdrant) Query(ctx context.Context, namespace string, vector []float64, topK int) ([]types.MatchResult, error) {
	collection := q.collectionName(namespace)

	ctx, span := qdrantTracer.Start(ctx, "Qdrant.Query",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "search_vectors"),
		attribute.String("db.collection", collection),
		attribute.Int("search.limit", topK),
		attribute.Int("query_vector.size", len(vector)),
	)

	if len(vector) != q.vectorSize {
		err := fmt.Errorf("查询向量维度(%d)与配置维度(%d)不匹配", len(vector), q.vectorSize)
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return nil, err
	}

	if topK <= 0 {
		topK = 10 // 默认限制为10
	}

	if err := q.Connect(ctx); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return nil, err
	}

	searchReq := map[string]interface{}{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}

	var result struct {
		Result []struct {
			ID      string                 `json:"id"`
			Score   float32                `json:"score"`
			Payload map[string]interface{} `json:"payload"`
		} `json:"result"`
		Status string  `json:"status"`
		Time   float64 `json:"time"`
	}

	err := q.doRequest(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/search", collection), searchReq, &result)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return nil, err
	}

	// 转换结果格式；记录ID从载荷中恢复，Qdrant已按分数降序返回
	matches := make([]types.MatchResult, 0, len(result.Result))
	for _, point := range result.Result {
		recordID := point.ID
		if v, ok := point.Payload[payloadRecordIDKey].(string); ok && v != "" {
			recordID = v
		}
		matches = append(matches, types.MatchResult{
			ID:       recordID,
			Score:    point.Score,
			Metadata: point.Payload,
		})
	}

	span.SetAttributes(
		attribute.Int("search.results.count", len(matches)),
		attribute.String("qdrant.response_status", result.Status),
		attribute.Float64("qdrant.response_time", result.Time),
	)
	span.SetStatus(codes.Ok, "")
	return matches, nil
}

// setHeaders 设置通用请求头
func (q *Qdrant) setHeaders(req *http.Request) {
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}
}

func (q *Qdrant) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	ctx, span := qdrantTracer.Start(ctx, fmt.Sprintf("%s %s", method, path),
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("net.peer.name", q.endpoint),
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", path),
	)

	var req *http.Request
	var err error

	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
			return err
		}

		req, err = http.NewRequestWithContext(ctx, method, q.endpoint+path, bytes.NewBuffer(jsonBody))
		if err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		span.SetAttributes(attribute.Int("http.request.body.size", len(jsonBody)))
	} else {
		req, err = http.NewRequestWithContext(ctx, method, q.endpoint+path, nil)
		if err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
			return err
		}
	}
	q.setHeaders(req)

	// 注入trace context
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := q.httpClient.Do(req)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeHTTP)
		return err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeHTTP)
		return err
	}

	span.SetAttributes(attribute.Int("http.response.body.size", len(respBody)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err = fmt.Errorf("qdrant API error: status=%d, body=%s", resp.StatusCode, string(respBody))
		tracing.RecordHTTPError(span, err, resp.StatusCode)
		return err
	}

	if result != nil && len(respBody) > 0 {
		if err = json.Unmarshal(respBody, result); err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
			return err
		}
	}

	span.SetStatus(codes.Ok, "")
	return nil
}
