package service

import (
	"bytes"
	"context"
	"edtech_eval_backend/internal/config"
	"edtech_eval_backend/internal/model"
	"edtech_eval_backend/internal/util"
	"edtech_eval_backend/pkg/logger"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// ArchiveProvider 评测快照的对象存储
type ArchiveProvider interface {
	Put(ctx context.Context, key string, data []byte) error
}

// LocalArchiveProvider 本地目录
type LocalArchiveProvider struct {
	Root string
}

func (p *LocalArchiveProvider) Put(ctx context.Context, key string, data []byte) error {
	root, err := filepath.Abs(p.Root)
	if err != nil {
		return err
	}
	dst := filepath.Join(root, filepath.FromSlash(key))
	if rel, err := filepath.Rel(root, dst); err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("archive key %q escapes root", key)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}

// MinioArchiveProvider MinIO
type MinioArchiveProvider struct {
	Bucket string
	Client *minio.Client
}

func NewMinioArchiveProvider(cfg *config.ArchiveConfig) (*MinioArchiveProvider, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessID, cfg.MinioSecret, ""),
		Secure: cfg.MinioSecure,
	})
	if err != nil {
		return nil, err
	}
	return &MinioArchiveProvider{Bucket: cfg.MinioBucket, Client: client}, nil
}

func (p *MinioArchiveProvider) Put(ctx context.Context, key string, data []byte) error {
	_, err := p.Client.PutObject(ctx, p.Bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: util.MimeJSON,
	})
	return err
}

// OSSArchiveProvider 阿里云 OSS
type OSSArchiveProvider struct {
	Bucket string
	Client *oss.Client
}

func NewOSSArchiveProvider(cfg *config.ArchiveConfig) (*OSSArchiveProvider, error) {
	client, err := oss.New(cfg.OSSEndpoint, cfg.OSSAccessKey, cfg.OSSSecretKey)
	if err != nil {
		return nil, err
	}
	return &OSSArchiveProvider{Bucket: cfg.OSSBucket, Client: client}, nil
}

func (p *OSSArchiveProvider) Put(ctx context.Context, key string, data []byte) error {
	bucket, err := p.Client.Bucket(p.Bucket)
	if err != nil {
		return err
	}
	return bucket.PutObject(key, bytes.NewReader(data), oss.ContentType(util.MimeJSON))
}

// ArchiveService 评测记录保存成功后写一份 JSON 快照，失败只记日志
type ArchiveService struct {
	Provider ArchiveProvider
	timeout  time.Duration
}

// NewArchiveService 未启用时返回 nil
func NewArchiveService(cfg *config.Config) *ArchiveService {
	if !cfg.Archive.Enabled {
		return nil
	}

	var provider ArchiveProvider
	switch cfg.Archive.Type {
	case util.StorageMinio:
		p, err := NewMinioArchiveProvider(&cfg.Archive)
		if err == nil {
			provider = p
		} else {
			logger.Log.Warn("MinIO archive unavailable, using local directory", zap.Error(err))
		}
	case util.StorageOSS:
		p, err := NewOSSArchiveProvider(&cfg.Archive)
		if err == nil {
			provider = p
		} else {
			logger.Log.Warn("OSS archive unavailable, using local directory", zap.Error(err))
		}
	}

	if provider == nil {
		provider = &LocalArchiveProvider{Root: cfg.Archive.LocalPath}
	}

	return &ArchiveService{Provider: provider, timeout: 30 * time.Second}
}

// ArchiveKey evaluations/<student>/<yyyy-mm-dd>/<eval_id>.json，student 与 eval_id 各自转义为单个路径段
func ArchiveKey(rec *model.EvaluationRecord) string {
	return fmt.Sprintf("evaluations/%s/%s/%s.json",
		keySegment(rec.StudentID), rec.Timestamp.Format(util.DateFormat), keySegment(rec.EvalID))
}

func keySegment(s string) string {
	seg := url.PathEscape(strings.ReplaceAll(s, `\`, "_"))
	switch seg {
	case "", ".", "..":
		return "_"
	}
	return seg
}

func (s *ArchiveService) Archive(ctx context.Context, rec *model.EvaluationRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.Provider.Put(ctx, ArchiveKey(rec), data)
}

// ArchiveAsync 在后台写快照，不阻塞评测响应
func (s *ArchiveService) ArchiveAsync(rec *model.EvaluationRecord) {
	if s == nil {
		return
	}
	snapshot := rec.Clone()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.Archive(ctx, snapshot); err != nil {
			logger.Log.Warn("Evaluation archive failed",
				zap.String("eval_id", snapshot.EvalID),
				zap.Error(err),
			)
		}
	}()
}
