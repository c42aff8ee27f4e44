package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/lk2023060901/cloud-drive-backend/internal/drive/biz"
	"github.com/lk2023060901/cloud-drive-backend/internal/pkg/database"
	"github.com/lk2023060901/cloud-drive-backend/internal/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// recentFileCount 总览中最近文件的条数
const recentFileCount = 3

// FilePO 文件记录持久化对象
type FilePO struct {
	ID            uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	URL           string    `gorm:"column:url;size:1024;not null;uniqueIndex:idx_files_url"`
	Name          string    `gorm:"column:name;size:512;not null"`
	FileType      string    `gorm:"column:file_type;size:16;not null;index:idx_files_type"`
	SizeKB        int64     `gorm:"column:size_kb;not null"`
	SizeFormatted string    `gorm:"column:size_formatted;size:32"`
	Date          string    `gorm:"column:date;size:64"`
	Location      string    `gorm:"column:location;size:256"`
	Favorite      bool      `gorm:"column:favorite;not null;default:false"`
	Metadata      string    `gorm:"column:metadata;type:jsonb"`
	CreatedAt     time.Time `gorm:"column:created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

// TableName 指定表名
func (FilePO) TableName() string {
	return "files"
}

type fileRepo struct {
	db     *database.DB
	logger *logger.Logger
}

// NewFileRepo 创建文件仓储实例
func NewFileRepo(db *database.DB, log *logger.Logger) biz.FileRepo {
	return &fileRepo{db: db, logger: log}
}

// Insert 插入文件记录，URL 冲突时返回 biz.ErrConflict
func (r *fileRepo) Insert(ctx context.Context, record *biz.FileRecord) error {
	po, err := r.fromDomain(record)
	if err != nil {
		return err
	}

	if err := r.db.WithContext(ctx).Create(po).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || database.IsDuplicateKeyError(err) {
			return fmt.Errorf("insert %s: %w", record.URL, biz.ErrConflict)
		}
		return fmt.Errorf("insert %s: %w", record.URL, err)
	}

	record.CreatedAt = po.CreatedAt
	record.UpdatedAt = po.UpdatedAt
	return nil
}

// FindByURL 按 URL 查询，未找到时返回 (nil, nil)
func (r *fileRepo) FindByURL(ctx context.Context, url string) (*biz.FileRecord, error) {
	var po FilePO
	err := r.db.WithContext(ctx).Where("url = ?", url).First(&po).Error
	if err != nil {
		if database.IsRecordNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find %s: %w", url, err)
	}
	return r.toDomain(&po)
}

// FindByURLPrefix 查询 prefix 开头的所有记录
func (r *fileRepo) FindByURLPrefix(ctx context.Context, prefix string) ([]*biz.FileRecord, error) {
	var pos []FilePO
	err := r.db.WithContext(ctx).
		Where("url LIKE ?", escapeLike(prefix)+"%").
		Find(&pos).Error
	if err != nil {
		return nil, fmt.Errorf("find by prefix %s: %w", prefix, err)
	}
	return r.toDomainList(pos)
}

// List 按类型和目录过滤。pathPrefix 非空时只匹配该目录的直接子文件，
// 不含更深层级。
func (r *fileRepo) List(ctx context.Context, fileType, pathPrefix string) ([]*biz.FileRecord, error) {
	var pos []FilePO
	query := r.db.WithContext(ctx).
		Scopes(
			database.WhereIf(fileType != "", "file_type = ?", fileType),
			database.OrderBy("created_at", true),
		)
	if pathPrefix != "" {
		escaped := escapeLike(pathPrefix)
		query = query.
			Where("url LIKE ?", escaped+"/%").
			Where("url NOT LIKE ?", escaped+"/%/%")
	}

	if err := query.Find(&pos).Error; err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return r.toDomainList(pos)
}

// UpdateURL 改写单条记录的 URL，记录不存在时返回 biz.ErrNotFound
func (r *fileRepo) UpdateURL(ctx context.Context, oldURL, newURL string) error {
	result := r.db.WithContext(ctx).
		Model(&FilePO{}).
		Where("url = ?", oldURL).
		Updates(map[string]interface{}{
			"url":  newURL,
			"name": baseName(newURL),
		})
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) || database.IsDuplicateKeyError(result.Error) {
			return fmt.Errorf("update url %s: %w", newURL, biz.ErrConflict)
		}
		return fmt.Errorf("update url %s: %w", oldURL, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("update url %s: %w", oldURL, biz.ErrNotFound)
	}
	return nil
}

// UpdateURLPrefix 批量改写 URL 前缀，单条 SQL 保证原子性
func (r *fileRepo) UpdateURLPrefix(ctx context.Context, oldPrefix, newPrefix string) (int64, error) {
	var moved int64
	err := r.db.Transaction(ctx, func(ctx context.Context, tx *gorm.DB) error {
		result := tx.Exec(
			"UPDATE files SET url = ? || substr(url, ?), updated_at = NOW() WHERE url LIKE ?",
			newPrefix, substrOffset(oldPrefix), escapeLike(oldPrefix)+"%",
		)
		if result.Error != nil {
			return result.Error
		}
		moved = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("update url prefix %s: %w", oldPrefix, err)
	}
	return moved, nil
}

// UpdateFavorite 设置收藏标记并返回更新后的记录
func (r *fileRepo) UpdateFavorite(ctx context.Context, url string, favorite bool) (*biz.FileRecord, error) {
	var po FilePO
	err := r.db.Transaction(ctx, func(ctx context.Context, tx *gorm.DB) error {
		result := tx.Model(&FilePO{}).
			Where("url = ?", url).
			Update("favorite", favorite)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return biz.ErrNotFound
		}
		return tx.Where("url = ?", url).First(&po).Error
	})
	if err != nil {
		if errors.Is(err, biz.ErrNotFound) {
			return nil, fmt.Errorf("favorite %s: %w", url, biz.ErrNotFound)
		}
		return nil, fmt.Errorf("favorite %s: %w", url, err)
	}
	return r.toDomain(&po)
}

// Delete 删除单条记录，不存在时返回 biz.ErrNotFound
func (r *fileRepo) Delete(ctx context.Context, url string) error {
	result := r.db.WithContext(ctx).Where("url = ?", url).Delete(&FilePO{})
	if result.Error != nil {
		return fmt.Errorf("delete %s: %w", url, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("delete %s: %w", url, biz.ErrNotFound)
	}
	return nil
}

// DeleteByURLPrefix 批量删除 prefix 开头的记录
func (r *fileRepo) DeleteByURLPrefix(ctx context.Context, prefix string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("url LIKE ?", escapeLike(prefix)+"%").
		Delete(&FilePO{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete by prefix %s: %w", prefix, result.Error)
	}
	return result.RowsAffected, nil
}

// Stats 汇总文件总数、占用空间、类型分布和最近上传
func (r *fileRepo) Stats(ctx context.Context) (*biz.StorageStats, error) {
	db := r.db.WithContext(ctx)

	var totals struct {
		Count  int64
		SizeKB int64
	}
	err := db.Model(&FilePO{}).
		Select("COUNT(*) AS count, COALESCE(SUM(size_kb), 0) AS size_kb").
		Scan(&totals).Error
	if err != nil {
		return nil, fmt.Errorf("stats totals: %w", err)
	}

	var byType []struct {
		FileType string
		Count    int64
	}
	err = db.Model(&FilePO{}).
		Select("file_type, COUNT(*) AS count").
		Group("file_type").
		Scan(&byType).Error
	if err != nil {
		return nil, fmt.Errorf("stats by type: %w", err)
	}

	var recent []FilePO
	err = db.Scopes(database.OrderBy("created_at", true)).
		Limit(recentFileCount).
		Find(&recent).Error
	if err != nil {
		return nil, fmt.Errorf("stats recent: %w", err)
	}

	recentRecords, err := r.toDomainList(recent)
	if err != nil {
		return nil, err
	}

	stats := &biz.StorageStats{
		TotalFiles:   totals.Count,
		UsedKB:       totals.SizeKB,
		CountsByType: make(map[string]int64, len(byType)),
		RecentFiles:  recentRecords,
	}
	for _, t := range byType {
		stats.CountsByType[t.FileType] = t.Count
	}
	return stats, nil
}

func (r *fileRepo) fromDomain(record *biz.FileRecord) (*FilePO, error) {
	metadata := "{}"
	if record.Metadata != nil {
		raw, err := json.Marshal(record.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshal metadata: %w", err)
		}
		metadata = string(raw)
	}

	return &FilePO{
		URL:           record.URL,
		Name:          record.Name,
		FileType:      record.Type,
		SizeKB:        record.SizeKB,
		SizeFormatted: record.SizeFormatted,
		Date:          record.Date,
		Location:      record.Location,
		Favorite:      record.Favorite,
		Metadata:      metadata,
	}, nil
}

func (r *fileRepo) toDomain(po *FilePO) (*biz.FileRecord, error) {
	var metadata map[string]interface{}
	if po.Metadata != "" {
		if err := json.Unmarshal([]byte(po.Metadata), &metadata); err != nil {
			// 坏数据不拦查询，记日志继续
			r.logger.Warn("failed to unmarshal file metadata",
				zap.String("url", po.URL),
				zap.Error(err))
			metadata = nil
		}
	}

	return &biz.FileRecord{
		URL:           po.URL,
		Name:          po.Name,
		Type:          po.FileType,
		SizeKB:        po.SizeKB,
		SizeFormatted: po.SizeFormatted,
		Date:          po.Date,
		Location:      po.Location,
		Favorite:      po.Favorite,
		Metadata:      metadata,
		CreatedAt:     po.CreatedAt,
		UpdatedAt:     po.UpdatedAt,
	}, nil
}

func (r *fileRepo) toDomainList(pos []FilePO) ([]*biz.FileRecord, error) {
	records := make([]*biz.FileRecord, 0, len(pos))
	for i := range pos {
		record, err := r.toDomain(&pos[i])
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// substrOffset 前缀之后第一个字符的位置。Postgres 的 substr 按字符计数，
// 这里必须数的是字符数而不是字节数，否则多字节路径会被截错位
func substrOffset(prefix string) int {
	return utf8.RuneCountInString(prefix) + 1
}

// escapeLike 转义 LIKE 模式中的特殊字符
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

func baseName(url string) string {
	if idx := strings.LastIndex(url, "/"); idx >= 0 {
		return url[idx+1:]
	}
	return url
}
