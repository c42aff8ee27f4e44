package biz

import (
	"context"
	"path"
	"strings"

	"github.com/lk2023060901/cloud-drive-backend/internal/pkg/logger"
	"go.uber.org/zap"
)

// FolderMoveResult 单个文件夹移动结果
type FolderMoveResult struct {
	OldPath string `json:"old_path"`
	NewPath string `json:"new_path"`
	// MovedRecords 随之改写 URL 的文件记录数
	MovedRecords int64 `json:"moved_records"`
}

// FolderDeleteResult 批量删除文件夹的结果
type FolderDeleteResult struct {
	Deleted []string `json:"deleted"`
	Skipped []string `json:"skipped"`
	// RemovedRecords 随之删除的文件记录数
	RemovedRecords int64 `json:"removed_records"`
}

// FolderUseCase 文件夹用例。文件夹本身没有元数据记录，
// 目录树以物理存储为准，级联操作按 URL 前缀改写文件记录。
type FolderUseCase struct {
	repo   FileRepo
	blobs  BlobStore
	cache  StatsCache
	locks  *PathLocker
	logger *logger.Logger
}

// NewFolderUseCase 创建文件夹用例
func NewFolderUseCase(repo FileRepo, blobs BlobStore, cache StatsCache, locks *PathLocker, log *logger.Logger) *FolderUseCase {
	return &FolderUseCase{
		repo:   repo,
		blobs:  blobs,
		cache:  cache,
		locks:  locks,
		logger: log,
	}
}

// Create 创建文件夹，缺失的上级目录一并创建
func (uc *FolderUseCase) Create(ctx context.Context, folderPath string) error {
	folderPath = strings.Trim(folderPath, "/")
	if folderPath == "" {
		return ErrInvalidPath
	}

	uc.locks.Acquire(folderPath)
	defer uc.locks.Release(folderPath)

	return uc.blobs.CreateDir(ctx, folderPath)
}

// List 列出目录下的子文件夹名
func (uc *FolderUseCase) List(ctx context.Context, folderPath string) ([]string, error) {
	entries, err := uc.blobs.ListDir(ctx, strings.Trim(folderPath, "/"))
	if err != nil {
		return nil, err
	}

	folders := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir {
			folders = append(folders, e.Name)
		}
	}
	return folders, nil
}

// Move 批量移动文件夹到 newParent 下。每个文件夹先级联改写其下
// 所有文件记录的 URL，再移动物理目录。不存在的文件夹静默跳过，
// 单个失败不影响其余条目。
func (uc *FolderUseCase) Move(ctx context.Context, oldPaths []string, newParent string) ([]*FolderMoveResult, error) {
	newParent = strings.Trim(newParent, "/")
	if newParent == "" {
		return nil, ErrInvalidPath
	}

	results := make([]*FolderMoveResult, 0, len(oldPaths))
	moved := 0
	for _, oldPath := range oldPaths {
		oldPath = strings.Trim(oldPath, "/")
		if oldPath == "" {
			continue
		}

		newPath := newParent + "/" + path.Base(oldPath)
		if newPath == oldPath {
			results = append(results, &FolderMoveResult{OldPath: oldPath, NewPath: newPath})
			continue
		}

		res, err := uc.moveOne(ctx, oldPath, newPath)
		if err != nil {
			uc.logger.WithContext(ctx).Warn("folder move failed, skipping entry",
				zap.String("old", oldPath),
				zap.String("new", newPath),
				zap.Error(err))
			continue
		}
		if res != nil {
			results = append(results, res)
			moved++
		}
	}

	if moved > 0 {
		uc.invalidateStats(ctx)
	}

	return results, nil
}

func (uc *FolderUseCase) moveOne(ctx context.Context, oldPath, newPath string) (*FolderMoveResult, error) {
	uc.locks.Acquire(oldPath, newPath)
	defer uc.locks.Release(oldPath, newPath)

	exists, err := uc.blobs.Exists(ctx, oldPath)
	if err != nil {
		return nil, err
	}
	if !exists {
		uc.logger.WithContext(ctx).Warn("skipping unknown folder", zap.String("path", oldPath))
		return nil, nil
	}

	// 物理目录和元数据的文件集合理应一致，这里对账一下
	uc.auditSubtree(ctx, oldPath)

	moved, err := uc.repo.UpdateURLPrefix(ctx, oldPath+"/", newPath+"/")
	if err != nil {
		return nil, err
	}

	if err := uc.blobs.Rename(ctx, oldPath, newPath); err != nil {
		// 目录移动失败时把已改写的记录改回去，保持一致
		if _, revertErr := uc.repo.UpdateURLPrefix(ctx, newPath+"/", oldPath+"/"); revertErr != nil {
			uc.logger.WithContext(ctx).Error("failed to revert metadata after move failure",
				zap.String("old", oldPath),
				zap.String("new", newPath),
				zap.Error(revertErr))
		}
		return nil, err
	}

	uc.logger.WithContext(ctx).Info("folder moved",
		zap.String("old", oldPath),
		zap.String("new", newPath),
		zap.Int64("records", moved))

	return &FolderMoveResult{OldPath: oldPath, NewPath: newPath, MovedRecords: moved}, nil
}

// auditSubtree 比对物理文件和前缀匹配到的记录，不一致只告警
func (uc *FolderUseCase) auditSubtree(ctx context.Context, folderPath string) {
	records, err := uc.repo.FindByURLPrefix(ctx, folderPath+"/")
	if err != nil {
		return
	}
	known := make(map[string]bool, len(records))
	for _, r := range records {
		known[r.URL] = true
	}

	_ = uc.blobs.Walk(ctx, folderPath, func(rel string, isDir bool) error {
		if isDir {
			return nil
		}
		url := folderPath + "/" + rel
		if !known[url] {
			uc.logger.WithContext(ctx).Warn("blob has no metadata record", zap.String("url", url))
		}
		delete(known, url)
		return nil
	})

	for url := range known {
		uc.logger.WithContext(ctx).Warn("metadata record has no blob", zap.String("url", url))
	}
}

// Delete 批量删除文件夹，连同其下所有物理文件和文件记录。
// 不存在的文件夹记入 Skipped，不中断其余条目。
func (uc *FolderUseCase) Delete(ctx context.Context, paths []string) (*FolderDeleteResult, error) {
	result := &FolderDeleteResult{
		Deleted: make([]string, 0, len(paths)),
		Skipped: make([]string, 0),
	}

	for _, folderPath := range paths {
		folderPath = strings.Trim(folderPath, "/")
		if folderPath == "" {
			continue
		}

		removed, err := uc.deleteOne(ctx, folderPath)
		if err != nil {
			uc.logger.WithContext(ctx).Warn("folder delete failed, skipping entry",
				zap.String("path", folderPath),
				zap.Error(err))
			result.Skipped = append(result.Skipped, folderPath)
			continue
		}
		if removed < 0 {
			result.Skipped = append(result.Skipped, folderPath)
			continue
		}

		result.Deleted = append(result.Deleted, folderPath)
		result.RemovedRecords += removed
	}

	if result.RemovedRecords > 0 || len(result.Deleted) > 0 {
		uc.invalidateStats(ctx)
	}

	return result, nil
}

// deleteOne 返回删除的记录数，文件夹不存在时返回 -1
func (uc *FolderUseCase) deleteOne(ctx context.Context, folderPath string) (int64, error) {
	uc.locks.Acquire(folderPath)
	defer uc.locks.Release(folderPath)

	exists, err := uc.blobs.Exists(ctx, folderPath)
	if err != nil {
		return 0, err
	}
	if !exists {
		return -1, nil
	}

	if err := uc.blobs.RemoveAll(ctx, folderPath); err != nil {
		return 0, err
	}

	removed, err := uc.repo.DeleteByURLPrefix(ctx, folderPath+"/")
	if err != nil {
		return 0, err
	}

	uc.logger.WithContext(ctx).Info("folder deleted",
		zap.String("path", folderPath),
		zap.Int64("records", removed))

	return removed, nil
}

func (uc *FolderUseCase) invalidateStats(ctx context.Context) {
	if uc.cache == nil {
		return
	}
	if err := uc.cache.Invalidate(ctx); err != nil {
		uc.logger.WithContext(ctx).Warn("stats cache invalidate failed", zap.Error(err))
	}
}
