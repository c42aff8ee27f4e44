package biz

import (
	"context"
	"fmt"
	"math"
	"path"
	"strings"
	"time"

	"github.com/lk2023060901/cloud-drive-backend/internal/pkg/logger"
	"go.uber.org/zap"
)

// 文件类型，按 MIME 主类型归类
const (
	TypeImage = "Image"
	TypeVideo = "Video"
	TypeAudio = "Audio"
	TypeOther = "Other"

	// TypeAll 查询用，表示不过滤类型
	TypeAll = "All"
)

// DefaultFolder 未指定目录时的上传目标
const DefaultFolder = "drive"

// TypeFromMIME 根据 MIME 主类型归类文件
func TypeFromMIME(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "image"):
		return TypeImage
	case strings.HasPrefix(mimeType, "video"):
		return TypeVideo
	case strings.HasPrefix(mimeType, "audio"):
		return TypeAudio
	default:
		return TypeOther
	}
}

// FileRecord 文件元数据记录，URL 是逻辑路径也是唯一键
type FileRecord struct {
	URL           string
	Name          string
	Type          string
	SizeKB        int64
	SizeFormatted string
	Date          string
	Location      string
	Favorite      bool
	Metadata      map[string]interface{}
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// StorageStats 存储总览
type StorageStats struct {
	TotalFiles   int64            `json:"total_files"`
	UsedKB       int64            `json:"used_kb"`
	QuotaKB      int64            `json:"quota_kb"`
	CountsByType map[string]int64 `json:"counts_by_type"`
	RecentFiles  []*FileRecord    `json:"recent_files"`
}

// Enrichment EXIF / 地理信息提取结果
type Enrichment struct {
	Date     string
	Location string
}

// DirEntry 目录列举结果
type DirEntry struct {
	Name    string
	IsDir   bool
	SizeKB  int64
	ModTime time.Time
}

// FileRepo 文件元数据仓储接口
type FileRepo interface {
	Insert(ctx context.Context, record *FileRecord) error
	// FindByURL 未找到时返回 (nil, nil)
	FindByURL(ctx context.Context, url string) (*FileRecord, error)
	FindByURLPrefix(ctx context.Context, prefix string) ([]*FileRecord, error)
	// List 按类型和目录过滤，fileType 为空表示全部，
	// pathPrefix 非空时只返回该目录的直接子文件
	List(ctx context.Context, fileType, pathPrefix string) ([]*FileRecord, error)
	UpdateURL(ctx context.Context, oldURL, newURL string) error
	// UpdateURLPrefix 把 oldPrefix 开头的所有 URL 改写到 newPrefix 下，返回改写条数
	UpdateURLPrefix(ctx context.Context, oldPrefix, newPrefix string) (int64, error)
	UpdateFavorite(ctx context.Context, url string, favorite bool) (*FileRecord, error)
	Delete(ctx context.Context, url string) error
	// DeleteByURLPrefix 删除 prefix 开头的所有记录，返回删除条数
	DeleteByURLPrefix(ctx context.Context, prefix string) (int64, error)
	Stats(ctx context.Context) (*StorageStats, error)
}

// BlobStore 物理文件存储接口，所有路径均为相对存储根的逻辑路径
type BlobStore interface {
	// Write 不覆盖已有文件，目标存在时返回 ErrConflict
	Write(ctx context.Context, path string, data []byte) error
	Read(ctx context.Context, path string) ([]byte, error)
	Delete(ctx context.Context, path string) error
	// Rename 目标已存在时返回 ErrConflict，源不存在时返回 ErrNotFound
	Rename(ctx context.Context, oldPath, newPath string) error
	Exists(ctx context.Context, path string) (bool, error)
	ListDir(ctx context.Context, path string) ([]DirEntry, error)
	// CreateDir 目录已存在时返回 ErrAlreadyExists，缺失的上级目录一并创建
	CreateDir(ctx context.Context, path string) error
	RemoveAll(ctx context.Context, path string) error
	// Walk 深度优先遍历 path 下的所有条目，回调收到相对 path 的逻辑路径
	Walk(ctx context.Context, path string, fn func(rel string, isDir bool) error) error
}

// Enricher 从文件内容提取展示元数据，只降级不报错
type Enricher interface {
	Enrich(ctx context.Context, data []byte, mimeType string) Enrichment
}

// StatsCache 存储总览缓存
type StatsCache interface {
	// Get 未命中时返回 (nil, nil)
	Get(ctx context.Context) (*StorageStats, error)
	Set(ctx context.Context, stats *StorageStats) error
	Invalidate(ctx context.Context) error
}

// UploadRequest 单个文件上传请求
type UploadRequest struct {
	Name     string
	MimeType string
	Folder   string
	Data     []byte
}

// MoveResult 批量移动/改名中单个条目的结果
type MoveResult struct {
	OldURL string
	NewURL string
	Record *FileRecord
}

// FileUseCase 文件用例
type FileUseCase struct {
	repo     FileRepo
	blobs    BlobStore
	enricher Enricher
	cache    StatsCache
	locks    *PathLocker
	quotaKB  int64
	logger   *logger.Logger
}

// NewFileUseCase 创建文件用例
func NewFileUseCase(
	repo FileRepo,
	blobs BlobStore,
	enricher Enricher,
	cache StatsCache,
	locks *PathLocker,
	quotaKB int64,
	log *logger.Logger,
) *FileUseCase {
	return &FileUseCase{
		repo:     repo,
		blobs:    blobs,
		enricher: enricher,
		cache:    cache,
		locks:    locks,
		quotaKB:  quotaKB,
		logger:   log,
	}
}

// Upload 上传单个文件：配额检查 -> 写入物理文件 -> 提取元数据 -> 落库。
// 落库失败时删除已写入的物理文件，避免孤儿文件。
func (uc *FileUseCase) Upload(ctx context.Context, req *UploadRequest) (*FileRecord, error) {
	if req.Name == "" || len(req.Data) == 0 {
		return nil, ErrEmptyUpload
	}

	folder := strings.Trim(req.Folder, "/")
	if folder == "" {
		folder = DefaultFolder
	}

	sizeKB := int64(math.Round(float64(len(req.Data)) / 1024))

	if err := uc.checkQuota(ctx, sizeKB); err != nil {
		return nil, err
	}

	// 文件名带毫秒时间戳前缀，同名文件互不覆盖
	physName := fmt.Sprintf("%d-%s", time.Now().UnixMilli(), req.Name)
	url := folder + "/" + physName

	uc.locks.Acquire(url)
	defer uc.locks.Release(url)

	if err := uc.blobs.Write(ctx, url, req.Data); err != nil {
		return nil, err
	}

	enr := uc.enricher.Enrich(ctx, req.Data, req.MimeType)

	record := &FileRecord{
		URL:           url,
		Name:          physName,
		Type:          TypeFromMIME(req.MimeType),
		SizeKB:        sizeKB,
		SizeFormatted: fmt.Sprintf("%d KB", sizeKB),
		Date:          enr.Date,
		Location:      enr.Location,
		Favorite:      false,
		Metadata: map[string]interface{}{
			"originalName": req.Name,
			"mimeType":     req.MimeType,
			"extension":    strings.TrimPrefix(path.Ext(req.Name), "."),
		},
	}

	if err := uc.repo.Insert(ctx, record); err != nil {
		// 元数据失败时回收物理文件，失败只记日志
		if delErr := uc.blobs.Delete(ctx, url); delErr != nil {
			uc.logger.WithContext(ctx).Warn("failed to clean up blob after insert failure",
				zap.String("url", url),
				zap.Error(delErr))
		}
		return nil, err
	}

	uc.invalidateStats(ctx)

	uc.logger.WithContext(ctx).Info("file uploaded",
		zap.String("url", url),
		zap.Int64("size_kb", sizeKB),
		zap.String("type", record.Type))

	return record, nil
}

func (uc *FileUseCase) checkQuota(ctx context.Context, sizeKB int64) error {
	stats, err := uc.repo.Stats(ctx)
	if err != nil {
		return err
	}
	if sizeKB >= uc.quotaKB-stats.UsedKB {
		return ErrNoSpace
	}
	return nil
}

// List 按类型/目录过滤查询文件列表
func (uc *FileUseCase) List(ctx context.Context, fileType, pathPrefix string) ([]*FileRecord, error) {
	if fileType == TypeAll {
		fileType = ""
	}
	return uc.repo.List(ctx, fileType, strings.Trim(pathPrefix, "/"))
}

// GetFile 读取文件内容，返回内容和下载用文件名
func (uc *FileUseCase) GetFile(ctx context.Context, url string) ([]byte, string, error) {
	data, err := uc.blobs.Read(ctx, url)
	if err != nil {
		return nil, "", err
	}
	return data, path.Base(url), nil
}

// MoveOrRename 批量移动或改名。rename 为真时 newBase 是不含扩展名的新路径，
// 否则 newBase 是目标目录。单条失败不影响其余条目，不存在的记录静默跳过。
func (uc *FileUseCase) MoveOrRename(ctx context.Context, urls []string, newBase string, rename bool) ([]*MoveResult, error) {
	newBase = strings.Trim(newBase, "/")
	if newBase == "" {
		return nil, ErrInvalidPath
	}

	results := make([]*MoveResult, 0, len(urls))
	moved := 0
	for _, url := range urls {
		url = strings.Trim(url, "/")
		if url == "" {
			continue
		}

		record, err := uc.repo.FindByURL(ctx, url)
		if err != nil {
			return nil, err
		}
		if record == nil {
			uc.logger.WithContext(ctx).Warn("skipping unknown file", zap.String("url", url))
			continue
		}

		var newURL string
		if rename {
			ext := strings.TrimPrefix(path.Ext(url), ".")
			newURL = newBase
			if ext != "" {
				newURL = newBase + "." + ext
			}
		} else {
			newURL = newBase + "/" + path.Base(url)
		}

		if newURL == url {
			results = append(results, &MoveResult{OldURL: url, NewURL: url, Record: record})
			continue
		}

		if res := uc.moveOne(ctx, record, url, newURL); res != nil {
			results = append(results, res)
			moved++
		}
	}

	if moved > 0 {
		uc.invalidateStats(ctx)
	}

	return results, nil
}

// moveOne 先移动物理文件再改元数据，物理移动失败就放弃这一条
func (uc *FileUseCase) moveOne(ctx context.Context, record *FileRecord, oldURL, newURL string) *MoveResult {
	uc.locks.Acquire(oldURL, newURL)
	defer uc.locks.Release(oldURL, newURL)

	if err := uc.blobs.Rename(ctx, oldURL, newURL); err != nil {
		uc.logger.WithContext(ctx).Warn("blob rename failed, skipping entry",
			zap.String("old", oldURL),
			zap.String("new", newURL),
			zap.Error(err))
		return nil
	}

	if err := uc.repo.UpdateURL(ctx, oldURL, newURL); err != nil {
		uc.logger.WithContext(ctx).Warn("metadata update failed after rename",
			zap.String("old", oldURL),
			zap.String("new", newURL),
			zap.Error(err))
		return nil
	}

	record.URL = newURL
	record.Name = path.Base(newURL)
	return &MoveResult{OldURL: oldURL, NewURL: newURL, Record: record}
}

// Delete 批量删除。物理删除失败不阻止元数据删除，不存在的记录静默跳过。
func (uc *FileUseCase) Delete(ctx context.Context, urls []string) ([]*FileRecord, error) {
	deleted := make([]*FileRecord, 0, len(urls))
	for _, url := range urls {
		url = strings.Trim(url, "/")
		if url == "" {
			continue
		}

		record, err := uc.repo.FindByURL(ctx, url)
		if err != nil {
			return nil, err
		}
		if record == nil {
			continue
		}

		uc.locks.Acquire(url)

		if err := uc.blobs.Delete(ctx, url); err != nil {
			uc.logger.WithContext(ctx).Warn("blob delete failed, removing record anyway",
				zap.String("url", url),
				zap.Error(err))
		}

		if err := uc.repo.Delete(ctx, url); err != nil {
			uc.locks.Release(url)
			if isNotFound(err) {
				continue
			}
			return deleted, err
		}

		uc.locks.Release(url)
		deleted = append(deleted, record)
	}

	if len(deleted) > 0 {
		uc.invalidateStats(ctx)
	}

	return deleted, nil
}

// ToggleFavorite 设置收藏标记
func (uc *FileUseCase) ToggleFavorite(ctx context.Context, url string, favorite bool) (*FileRecord, error) {
	return uc.repo.UpdateFavorite(ctx, strings.Trim(url, "/"), favorite)
}

// Stats 存储总览，优先走缓存
func (uc *FileUseCase) Stats(ctx context.Context) (*StorageStats, error) {
	if uc.cache != nil {
		if cached, err := uc.cache.Get(ctx); err != nil {
			uc.logger.WithContext(ctx).Warn("stats cache read failed", zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	stats, err := uc.repo.Stats(ctx)
	if err != nil {
		return nil, err
	}
	stats.QuotaKB = uc.quotaKB

	if uc.cache != nil {
		if err := uc.cache.Set(ctx, stats); err != nil {
			uc.logger.WithContext(ctx).Warn("stats cache write failed", zap.Error(err))
		}
	}

	return stats, nil
}

func (uc *FileUseCase) invalidateStats(ctx context.Context) {
	if uc.cache == nil {
		return
	}
	if err := uc.cache.Invalidate(ctx); err != nil {
		uc.logger.WithContext(ctx).Warn("stats cache invalidate failed", zap.Error(err))
	}
}
