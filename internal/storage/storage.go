package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"talent-match-go/internal/config"
	"talent-match-go/internal/constants"
)

// Storage 存储管理器，聚合所有存储相关依赖
// Qdrant是摄入流程的硬依赖；MinIO/RabbitMQ/Redis是旁路组件，初始化失败只降级不致命
type Storage struct {
	// 向量数据库
	Qdrant *Qdrant

	// 对象存储（简历原件归档）
	MinIO *MinIO

	// 消息队列（匹配事件发布）
	RabbitMQ *RabbitMQ

	// 键值存储（摄入状态跟踪）
	Redis *Redis
}

// NewStorage 创建存储管理器
func NewStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}

	storage := &Storage{}
	var err error

	// 初始化Qdrant（必需）
	storage.Qdrant, err = NewQdrant(&cfg.Qdrant, []string{constants.NamespaceJobs, constants.NamespaceCandidates})
	if err != nil {
		return nil, fmt.Errorf("初始化Qdrant失败: %w", err)
	}
	log.Println("Qdrant客户端初始化成功")

	// 根据配置决定 MinIO 的 logger
	var minioLogger *log.Logger
	if cfg.Logger.Level == "debug" {
		minioLogger = log.New(os.Stderr, "[MinIOStorage] ", log.LstdFlags|log.Lshortfile)
	} else {
		minioLogger = log.New(io.Discard, "", 0)
	}

	// 初始化MinIO（如果配置了）
	if cfg.MinIO.Endpoint != "" {
		storage.MinIO, err = NewMinIO(&cfg.MinIO, minioLogger)
		if err != nil {
			log.Printf("警告: 初始化MinIO失败, 简历原件归档不可用: %v", err)
			storage.MinIO = nil
		}
	}

	// 初始化RabbitMQ（如果配置了）
	if cfg.RabbitMQ.URL != "" {
		storage.RabbitMQ, err = NewRabbitMQ(&cfg.RabbitMQ)
		if err != nil {
			log.Printf("警告: 初始化RabbitMQ失败, 匹配事件发布不可用: %v", err)
			storage.RabbitMQ = nil
		} else if err := storage.RabbitMQ.EnsureExchange(cfg.RabbitMQ.MatchEventsExchange, "topic", true); err != nil {
			log.Printf("警告: 声明匹配事件交换机失败: %v", err)
		}
	}

	// 初始化Redis（如果配置了）
	if cfg.Redis.Address != "" {
		storage.Redis, err = NewRedisAdapter(&cfg.Redis)
		if err != nil {
			log.Printf("警告: 初始化Redis失败, 摄入状态跟踪不可用: %v", err)
			storage.Redis = nil
		}
	}

	return storage, nil
}

// Close 关闭所有连接
func (s *Storage) Close() {
	if s.RabbitMQ != nil {
		if err := s.RabbitMQ.Close(); err != nil {
			log.Printf("关闭RabbitMQ连接失败: %v", err)
		}
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Printf("关闭Redis连接失败: %v", err)
		}
	}
	// Qdrant和MinIO客户端不需要显式Close
}
