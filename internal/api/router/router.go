package router

import (
	"context"

	"talent-match-go/internal/api/handler"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// RegisterRoutes 注册 API 路由
func RegisterRoutes(h *server.Hertz, ingestHandler *handler.IngestHandler) {
	api := h.Group("/api/v1")

	api.POST("/jobs", ingestHandler.HandleJobPost)
	api.POST("/candidates", ingestHandler.HandleCandidateSubmit)

	// 添加健康检查
	api.GET("/health", func(c context.Context, ctx *app.RequestContext) {
		ctx.JSON(consts.StatusOK, utils.H{"status": "ok"})
	})
}
