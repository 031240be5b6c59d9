package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tiz36/ztask/internal/api/dto"
	"github.com/tiz36/ztask/ztask"
)

// TaskService 处理器依赖的任务能力，ztask.ZTask 即满足
type TaskService interface {
	Classify(sql string) ztask.SQLType
	NewSQLTask(name, datasourceName, sql string, opts ...ztask.Option) (*ztask.SQLTask, error)
	Define(ctx context.Context, task *ztask.SQLTask) (*ztask.TaskDefinition, []byte, error)
	SubmitDefinition(ctx context.Context, def *ztask.TaskDefinition, doc []byte) (ztask.SubmitResult, error)
}

// SQLHandler SQL 任务处理器
type SQLHandler struct {
	svc TaskService
}

// NewSQLHandler 创建SQLHandler
func NewSQLHandler(svc TaskService) *SQLHandler {
	return &SQLHandler{svc: svc}
}

// Classify 判断 SQL 类型
// POST /api/v1/sql/classify
func (h *SQLHandler) Classify(c *gin.Context) {
	var req dto.ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, "invalid request body: "+err.Error()))
		return
	}

	t := h.svc.Classify(req.SQL)
	c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.ClassifyResponse{
		SQLType:     t,
		SQLTypeName: t.String(),
	}))
}

// Define 构建任务定义，submit 为 true 时一并投递
// POST /api/v1/sql/definitions
func (h *SQLHandler) Define(c *gin.Context) {
	var req dto.DefineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, "invalid request body: "+err.Error()))
		return
	}

	task, err := h.svc.NewSQLTask(req.Name, req.Datasource, req.SQL, req.Options()...)
	if err != nil {
		writeError(c, err)
		return
	}

	ctx := c.Request.Context()
	def, doc, err := h.svc.Define(ctx, task)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := dto.DefineResponse{Definition: doc}
	if req.Submit {
		res, err := h.svc.SubmitDefinition(ctx, def, doc)
		if err != nil {
			writeError(c, err)
			return
		}
		resp.Submit = &res
	}

	status := http.StatusOK
	if req.Submit {
		status = http.StatusAccepted
	}
	c.JSON(status, dto.NewSuccessResponse(resp))
}

// StatusFor 错误码到 HTTP 状态码
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ztask.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ztask.ErrDatasourceResolution):
		return http.StatusBadGateway
	case errors.Is(err, ztask.ErrNotConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := StatusFor(err)
	_ = c.Error(err)
	c.JSON(status, dto.NewErrorResponse(status, err.Error()))
}
