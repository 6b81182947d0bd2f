package processor

import (
	"errors"
	"fmt"
)

// 定义基础错误类型
var (
	ErrInvalidSubmission = errors.New("提交数据校验失败")
	ErrResumeExtraction  = errors.New("提取简历文本失败")
	ErrEmbeddingService  = errors.New("嵌入服务调用失败")
	ErrAnalysisService   = errors.New("分析服务调用失败")
	ErrStoreWrite        = errors.New("向量索引写入失败")
	ErrStoreQuery        = errors.New("向量索引查询失败")
)

// MatchError 包含详细错误信息的自定义错误
type MatchError struct {
	EntityID string
	Op       string
	BaseErr  error
	Detail   string
}

func (e *MatchError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (操作:%s, ID:%s): %s", e.BaseErr, e.Op, e.EntityID, e.Detail)
	}
	return fmt.Sprintf("%s (操作:%s, ID:%s)", e.BaseErr, e.Op, e.EntityID)
}

func (e *MatchError) Unwrap() error {
	return e.BaseErr
}

// Is 实现 errors.Is 接口以支持错误比较
func (e *MatchError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

// 错误构造函数
func NewValidationError(entityID, detail string) error {
	return &MatchError{
		EntityID: entityID,
		Op:       "validate",
		BaseErr:  ErrInvalidSubmission,
		Detail:   detail,
	}
}

func NewExtractionError(entityID, detail string) error {
	return &MatchError{
		EntityID: entityID,
		Op:       "extract",
		BaseErr:  ErrResumeExtraction,
		Detail:   detail,
	}
}

func NewEmbeddingError(entityID, detail string) error {
	return &MatchError{
		EntityID: entityID,
		Op:       "embed",
		BaseErr:  ErrEmbeddingService,
		Detail:   detail,
	}
}

func NewAnalysisError(entityID, detail string) error {
	return &MatchError{
		EntityID: entityID,
		Op:       "analyze",
		BaseErr:  ErrAnalysisService,
		Detail:   detail,
	}
}

func NewStoreWriteError(entityID, detail string) error {
	return &MatchError{
		EntityID: entityID,
		Op:       "upsert",
		BaseErr:  ErrStoreWrite,
		Detail:   detail,
	}
}

func NewStoreQueryError(entityID, detail string) error {
	return &MatchError{
		EntityID: entityID,
		Op:       "query",
		BaseErr:  ErrStoreQuery,
		Detail:   detail,
	}
}
