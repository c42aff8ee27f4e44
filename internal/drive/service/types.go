package service

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/cloud-drive-backend/internal/drive/biz"
	apperrors "github.com/lk2023060901/cloud-drive-backend/internal/pkg/errors"
	"github.com/lk2023060901/cloud-drive-backend/internal/pkg/response"
)

// FileResponse 文件记录响应
type FileResponse struct {
	URL       string                 `json:"url"`
	Name      string                 `json:"name"`
	Type      string                 `json:"type"`
	SizeKB    int64                  `json:"size_kb"`
	Size      string                 `json:"size"`
	Date      string                 `json:"date"`
	Location  string                 `json:"location"`
	Favorite  bool                   `json:"favorite"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

func toFileResponse(record *biz.FileRecord) *FileResponse {
	return &FileResponse{
		URL:       record.URL,
		Name:      record.Name,
		Type:      record.Type,
		SizeKB:    record.SizeKB,
		Size:      record.SizeFormatted,
		Date:      record.Date,
		Location:  record.Location,
		Favorite:  record.Favorite,
		Metadata:  record.Metadata,
		CreatedAt: record.CreatedAt,
	}
}

func toFileResponses(records []*biz.FileRecord) []*FileResponse {
	out := make([]*FileResponse, 0, len(records))
	for _, r := range records {
		out = append(out, toFileResponse(r))
	}
	return out
}

// UploadFailure 批量上传中单个文件的失败信息
type UploadFailure struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// UploadResponse 批量上传响应
type UploadResponse struct {
	Files  []*FileResponse  `json:"files"`
	Failed []*UploadFailure `json:"failed,omitempty"`
}

// MoveRequest 批量移动/改名请求
type MoveRequest struct {
	URLs    []string `json:"urls" binding:"required"`
	NewPath string   `json:"new_path" binding:"required"`
	Rename  bool     `json:"rename"`
}

// MoveItemResponse 单条移动结果
type MoveItemResponse struct {
	OldURL string        `json:"old_url"`
	NewURL string        `json:"new_url"`
	File   *FileResponse `json:"file"`
}

// DeleteRequest 批量删除请求
type DeleteRequest struct {
	URLs []string `json:"urls" binding:"required"`
}

// FavoriteRequest 收藏请求
type FavoriteRequest struct {
	URL      string `json:"url" binding:"required"`
	Favorite bool   `json:"favorite"`
}

// StatsResponse 存储总览响应
type StatsResponse struct {
	TotalFiles   int64            `json:"total_files"`
	UsedKB       int64            `json:"used_kb"`
	QuotaKB      int64            `json:"quota_kb"`
	CountsByType map[string]int64 `json:"counts_by_type"`
	RecentFiles  []*FileResponse  `json:"recent_files"`
}

// CreateFolderRequest 创建文件夹请求
type CreateFolderRequest struct {
	Path string `json:"path" binding:"required"`
}

// MoveFoldersRequest 批量移动文件夹请求
type MoveFoldersRequest struct {
	OldPaths []string `json:"old_paths" binding:"required"`
	NewPath  string   `json:"new_path" binding:"required"`
}

// DeleteFoldersRequest 批量删除文件夹请求
type DeleteFoldersRequest struct {
	Folders []string `json:"folders" binding:"required"`
}

// handleFileError 把领域错误映射成文件模块错误码
func handleFileError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, biz.ErrNotFound):
		response.ErrorWithCode(c, apperrors.ErrFileNotFound)
	case errors.Is(err, biz.ErrConflict):
		response.ErrorWithCode(c, apperrors.ErrFileConflict)
	case errors.Is(err, biz.ErrNoSpace):
		response.ErrorWithCode(c, apperrors.ErrFileQuotaExceeded)
	case errors.Is(err, biz.ErrInvalidPath):
		response.ErrorWithCode(c, apperrors.ErrFileInvalidPath)
	case errors.Is(err, biz.ErrEmptyUpload):
		response.ErrorWithCode(c, apperrors.ErrFileEmptyUpload)
	default:
		response.ErrorWithCode(c, apperrors.ErrInternalServer)
	}
}

// handleFolderError 把领域错误映射成文件夹模块错误码
func handleFolderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, biz.ErrNotFound):
		response.ErrorWithCode(c, apperrors.ErrFolderNotFound)
	case errors.Is(err, biz.ErrAlreadyExists):
		response.ErrorWithCode(c, apperrors.ErrFolderAlreadyExists)
	case errors.Is(err, biz.ErrInvalidPath):
		response.ErrorWithCode(c, apperrors.ErrFileInvalidPath)
	default:
		response.ErrorWithCode(c, apperrors.ErrInternalServer)
	}
}

// reason 失败原因的对外文案
func reason(err error) string {
	switch {
	case errors.Is(err, biz.ErrNoSpace):
		return "no space available"
	case errors.Is(err, biz.ErrConflict):
		return "destination already exists"
	case errors.Is(err, biz.ErrInvalidPath):
		return "invalid path"
	default:
		return "upload failed"
	}
}
