package service

import (
	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/cloud-drive-backend/internal/drive/biz"
	apperrors "github.com/lk2023060901/cloud-drive-backend/internal/pkg/errors"
	"github.com/lk2023060901/cloud-drive-backend/internal/pkg/response"
	"go.uber.org/zap"
)

type FolderService struct {
	folderUseCase *biz.FolderUseCase
	logger        *zap.Logger
}

func NewFolderService(folderUseCase *biz.FolderUseCase, logger *zap.Logger) *FolderService {
	return &FolderService{
		folderUseCase: folderUseCase,
		logger:        logger,
	}
}

// RegisterRoutes 注册文件夹路由
func (s *FolderService) RegisterRoutes(r *gin.RouterGroup) {
	folders := r.Group("/folders")
	{
		folders.GET("", s.List)
		folders.POST("", s.Create)
		folders.PUT("", s.Move)
		folders.DELETE("", s.Delete)
	}
}

// List 列出目录下的子文件夹，query 参数 path（默认根目录 drive）
func (s *FolderService) List(c *gin.Context) {
	path := c.DefaultQuery("path", biz.DefaultFolder)

	folders, err := s.folderUseCase.List(c.Request.Context(), path)
	if err != nil {
		handleFolderError(c, err)
		return
	}

	response.Success(c, gin.H{"folders": folders})
}

// Create 创建文件夹
func (s *FolderService) Create(c *gin.Context) {
	var req CreateFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, apperrors.ErrInvalidParams, err.Error())
		return
	}

	if err := s.folderUseCase.Create(c.Request.Context(), req.Path); err != nil {
		s.logger.Warn("failed to create folder", zap.String("path", req.Path), zap.Error(err))
		handleFolderError(c, err)
		return
	}

	response.Created(c, gin.H{"path": req.Path})
}

// Move 批量移动文件夹
func (s *FolderService) Move(c *gin.Context) {
	var req MoveFoldersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, apperrors.ErrInvalidParams, err.Error())
		return
	}

	results, err := s.folderUseCase.Move(c.Request.Context(), req.OldPaths, req.NewPath)
	if err != nil {
		s.logger.Error("failed to move folders", zap.Error(err))
		handleFolderError(c, err)
		return
	}

	response.Success(c, gin.H{"moved": results})
}

// Delete 批量删除文件夹
func (s *FolderService) Delete(c *gin.Context) {
	var req DeleteFoldersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, apperrors.ErrInvalidParams, err.Error())
		return
	}

	result, err := s.folderUseCase.Delete(c.Request.Context(), req.Folders)
	if err != nil {
		s.logger.Error("failed to delete folders", zap.Error(err))
		handleFolderError(c, err)
		return
	}

	response.Success(c, result)
}
