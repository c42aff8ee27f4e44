package service

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/cloud-drive-backend/internal/drive/biz"
	apperrors "github.com/lk2023060901/cloud-drive-backend/internal/pkg/errors"
	"github.com/lk2023060901/cloud-drive-backend/internal/pkg/response"
	"github.com/lk2023060901/cloud-drive-backend/internal/pkg/workerpool"
	"go.uber.org/zap"
)

type FileService struct {
	fileUseCase *biz.FileUseCase
	uploadPool  *workerpool.Pool
	logger      *zap.Logger
}

func NewFileService(fileUseCase *biz.FileUseCase, uploadPool *workerpool.Pool, logger *zap.Logger) *FileService {
	return &FileService{
		fileUseCase: fileUseCase,
		uploadPool:  uploadPool,
		logger:      logger,
	}
}

// RegisterRoutes 注册文件路由
func (s *FileService) RegisterRoutes(r *gin.RouterGroup) {
	files := r.Group("/files")
	{
		files.POST("", s.Upload)
		files.GET("", s.List)
		files.GET("/stats", s.Stats)
		files.PUT("", s.Move)
		files.DELETE("", s.Delete)
	}

	file := r.Group("/file")
	{
		file.GET("", s.Download)
		file.PUT("", s.Favorite)
	}
}

// Upload 批量上传文件，表单字段 files（可多个）和 path（可选目录）
func (s *FileService) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		response.ErrorWithCode(c, apperrors.ErrInvalidParams, "invalid multipart form")
		return
	}

	headers := form.File["files"]
	if len(headers) == 0 {
		response.ErrorWithCode(c, apperrors.ErrFileEmptyUpload)
		return
	}

	folder := c.PostForm("path")

	s.logger.Info("batch upload",
		zap.Int("count", len(headers)),
		zap.String("path", folder))

	// 先全部提交到 Worker Pool，再统一收结果
	type pending struct {
		name string
		ch   <-chan workerpool.TaskResult
	}
	tasks := make([]pending, 0, len(headers))

	ctx := c.Request.Context()
	for _, header := range headers {
		header := header
		data, err := readUpload(header)
		if err != nil {
			s.logger.Warn("failed to read upload", zap.String("name", header.Filename), zap.Error(err))
			tasks = append(tasks, pending{name: header.Filename, ch: failedResult(err)})
			continue
		}

		ch := s.uploadPool.SubmitWithResult(func() (interface{}, error) {
			return s.fileUseCase.Upload(ctx, &biz.UploadRequest{
				Name:     header.Filename,
				MimeType: header.Header.Get("Content-Type"),
				Folder:   folder,
				Data:     data,
			})
		})
		tasks = append(tasks, pending{name: header.Filename, ch: ch})
	}

	result := &UploadResponse{
		Files:  make([]*FileResponse, 0, len(tasks)),
		Failed: make([]*UploadFailure, 0),
	}
	for _, t := range tasks {
		res := <-t.ch
		if res.Error != nil {
			s.logger.Warn("upload failed",
				zap.String("name", t.name),
				zap.Error(res.Error))
			result.Failed = append(result.Failed, &UploadFailure{Name: t.name, Reason: reason(res.Error)})
			continue
		}
		result.Files = append(result.Files, toFileResponse(res.Data.(*biz.FileRecord)))
	}

	if len(result.Files) == 0 && len(result.Failed) > 0 {
		// 没有任何文件成功时按第一个失败原因报错
		response.ErrorWithCode(c, apperrors.ErrInternalServer, result.Failed[0].Reason)
		return
	}

	response.Created(c, result)
}

// List 查询文件列表，query 参数 type 和 path 均可选
func (s *FileService) List(c *gin.Context) {
	fileType := c.DefaultQuery("type", biz.TypeAll)
	pathPrefix := c.Query("path")

	records, err := s.fileUseCase.List(c.Request.Context(), fileType, pathPrefix)
	if err != nil {
		s.logger.Error("failed to list files", zap.Error(err))
		handleFileError(c, err)
		return
	}

	response.Success(c, gin.H{"files": toFileResponses(records)})
}

// Download 下载文件，query 参数 url
func (s *FileService) Download(c *gin.Context) {
	url := c.Query("url")
	if url == "" {
		response.ErrorWithCode(c, apperrors.ErrInvalidParams, "url is required")
		return
	}

	data, name, err := s.fileUseCase.GetFile(c.Request.Context(), url)
	if err != nil {
		handleFileError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, "application/octet-stream", data)
}

// Favorite 设置收藏标记
func (s *FileService) Favorite(c *gin.Context) {
	var req FavoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, apperrors.ErrInvalidParams, err.Error())
		return
	}

	record, err := s.fileUseCase.ToggleFavorite(c.Request.Context(), req.URL, req.Favorite)
	if err != nil {
		handleFileError(c, err)
		return
	}

	response.Success(c, toFileResponse(record))
}

// Move 批量移动或改名
func (s *FileService) Move(c *gin.Context) {
	var req MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, apperrors.ErrInvalidParams, err.Error())
		return
	}

	results, err := s.fileUseCase.MoveOrRename(c.Request.Context(), req.URLs, req.NewPath, req.Rename)
	if err != nil {
		s.logger.Error("failed to move files", zap.Error(err))
		handleFileError(c, err)
		return
	}

	items := make([]*MoveItemResponse, 0, len(results))
	for _, r := range results {
		items = append(items, &MoveItemResponse{
			OldURL: r.OldURL,
			NewURL: r.NewURL,
			File:   toFileResponse(r.Record),
		})
	}

	response.Success(c, gin.H{"moved": items})
}

// Delete 批量删除文件
func (s *FileService) Delete(c *gin.Context) {
	var req DeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, apperrors.ErrInvalidParams, err.Error())
		return
	}

	deleted, err := s.fileUseCase.Delete(c.Request.Context(), req.URLs)
	if err != nil {
		s.logger.Error("failed to delete files", zap.Error(err))
		handleFileError(c, err)
		return
	}

	response.Success(c, gin.H{"deleted": toFileResponses(deleted)})
}

// Stats 存储总览
func (s *FileService) Stats(c *gin.Context) {
	stats, err := s.fileUseCase.Stats(c.Request.Context())
	if err != nil {
		s.logger.Error("failed to load stats", zap.Error(err))
		handleFileError(c, err)
		return
	}

	response.Success(c, &StatsResponse{
		TotalFiles:   stats.TotalFiles,
		UsedKB:       stats.UsedKB,
		QuotaKB:      stats.QuotaKB,
		CountsByType: stats.CountsByType,
		RecentFiles:  toFileResponses(stats.RecentFiles),
	})
}

func readUpload(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

// failedResult 构造一个已经失败的任务结果通道
func failedResult(err error) <-chan workerpool.TaskResult {
	ch := make(chan workerpool.TaskResult, 1)
	ch <- workerpool.TaskResult{Error: err}
	close(ch)
	return ch
}
