package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"
	"time"

	"talent-match-go/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ResumeArchiver 简历原件归档接口
type ResumeArchiver interface {
	// ArchiveResume 归档一份简历原件，返回对象键
	ArchiveResume(ctx context.Context, candidateID, fileName string, data []byte) (string, error)

	// GetResume 取回归档的简历原件
	GetResume(ctx context.Context, objectKey string) ([]byte, error)
}

// 确保MinIO实现了ResumeArchiver接口
var _ ResumeArchiver = (*MinIO)(nil)

// MinIO 提供简历原件的对象存储归档
// 归档是尽力而为的旁路操作，失败不影响摄入主流程
type MinIO struct {
	client       *minio.Client
	resumeBucket string
	logger       *log.Logger
}

// NewMinIO 创建MinIO客户端并确保归档桶存在
func NewMinIO(cfg *config.MinIOConfig, logger *log.Logger) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	bucket := cfg.ResumeBucket
	if bucket == "" {
		bucket = "resume-originals" // 默认值
	}

	m := &MinIO{
		client:       client,
		resumeBucket: bucket,
		logger:       logger,
	}

	if err := m.ensureBucketExists(bucket, cfg.Location); err != nil {
		return nil, fmt.Errorf("确保简历归档存储桶 %s 存在失败: %w", bucket, err)
	}

	logger.Printf("[MinIO] 客户端初始化成功, endpoint: %s, bucket: %s", cfg.Endpoint, bucket)
	return m, nil
}

// ensureBucketExists 确保存储桶存在
func (m *MinIO) ensureBucketExists(bucketName, location string) error {
	exists, err := m.client.BucketExists(context.Background(), bucketName)
	if err != nil {
		return fmt.Errorf("检查存储桶 %s 是否存在时出错: %w", bucketName, err)
	}
	if !exists {
		err = m.client.MakeBucket(context.Background(), bucketName, minio.MakeBucketOptions{Region: location})
		if err != nil {
			return fmt.Errorf("创建存储桶 %s 失败: %w", bucketName, err)
		}
		m.logger.Printf("[MinIO] 存储桶 %s 创建成功", bucketName)
	}
	return nil
}

// ArchiveResume 归档简历原件
// 对象键形如 resume/{candidateID}/{unix_ms}{ext}，同一候选人多次提交各自保留
func (m *MinIO) ArchiveResume(ctx context.Context, candidateID, fileName string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == "" {
		ext = ".pdf"
	}
	objectName := fmt.Sprintf("resume/%s/%d%s", sanitizeObjectSegment(candidateID), time.Now().UnixMilli(), ext)

	_, err := m.client.PutObject(ctx, m.resumeBucket, objectName, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentTypeForExt(ext)})
	if err != nil {
		return "", fmt.Errorf("归档简历原件 %s 到存储桶 %s 失败: %w", objectName, m.resumeBucket, err)
	}

	m.logger.Printf("[MinIO] 已归档简历原件: %s (%d 字节)", objectName, len(data))
	return objectName, nil
}

// GetResume 取回归档的简历原件
func (m *MinIO) GetResume(ctx context.Context, objectKey string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.resumeBucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("获取对象 %s/%s 失败: %w", m.resumeBucket, objectKey, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("读取对象 %s/%s 数据失败: %w", m.resumeBucket, objectKey, err)
	}
	return data, nil
}

// sanitizeObjectSegment 清理对象键中的路径片段，避免邮箱等ID里的特殊字符破坏键结构
func sanitizeObjectSegment(s string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", " ", "_", "#", "_", "?", "_")
	return replacer.Replace(s)
}

// contentTypeForExt 根据扩展名返回内容类型
func contentTypeForExt(ext string) string {
	switch ext {
	case ".pdf":
		return "application/pdf"
	case ".txt":
		return "text/plain"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return "application/octet-stream"
	}
}
