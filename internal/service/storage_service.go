package service

import (
	"context"
	"fmt"
	"learning_platform/internal/config"
	"learning_platform/internal/util"
	"learning_platform/pkg/logger"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// StorageProvider 只负责把对象 key 解析为可访问地址
type StorageProvider interface {
	GetURL(ctx context.Context, key string) (string, error)
}

// LocalStorageProvider 本地存储实现，由静态路由 /uploads 提供文件
type LocalStorageProvider struct {
	Config *config.StorageConfig
}

func (p *LocalStorageProvider) GetURL(ctx context.Context, key string) (string, error) {
	return "/uploads/" + strings.TrimPrefix(key, "/"), nil
}

// MinioStorageProvider MinIO存储实现
type MinioStorageProvider struct {
	Config *config.StorageConfig
	Client *minio.Client
	Expiry time.Duration
}

func NewMinioStorageProvider(cfg *config.StorageConfig) (*MinioStorageProvider, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessID, cfg.MinioSecret, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, err
	}
	return &MinioStorageProvider{Config: cfg, Client: client, Expiry: time.Hour}, nil
}

// GetURL 生成预签名下载地址
func (p *MinioStorageProvider) GetURL(ctx context.Context, key string) (string, error) {
	u, err := p.Client.PresignedGetObject(ctx, p.Config.MinioBucket, key, p.Expiry, url.Values{})
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// StorageService 存储服务
type StorageService struct {
	Provider StorageProvider
}

func NewStorageService(cfg *config.Config) (*StorageService, error) {
	switch cfg.Storage.Type {
	case "", util.StorageLocal:
		return &StorageService{Provider: &LocalStorageProvider{Config: &cfg.Storage}}, nil
	case util.StorageMinio:
		provider, err := NewMinioStorageProvider(&cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("init minio: %w", err)
		}
		return &StorageService{Provider: provider}, nil
	default:
		return nil, fmt.Errorf("unsupported storage type %q", cfg.Storage.Type)
	}
}

func (s *StorageService) GetURL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", util.ErrInvalidArgument
	}
	return s.Provider.GetURL(ctx, key)
}

// ResolveMaterialURL 资料自带 URL 时优先使用
func (s *StorageService) ResolveMaterialURL(ctx context.Context, directURL, objectKey string) string {
	if directURL != "" || objectKey == "" {
		return directURL
	}
	u, err := s.GetURL(ctx, objectKey)
	if err != nil {
		logger.Log.Warn("对象地址解析失败", zap.String("key", objectKey), zap.Error(err))
		return ""
	}
	return u
}
