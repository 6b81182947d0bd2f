package handler

import (
	"context"
	"errors"
	"io"

	"talent-match-go/internal/logger"
	"talent-match-go/internal/processor"
	"talent-match-go/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// IngestHandler 摄入处理器，把HTTP请求翻译成匹配流水线调用
type IngestHandler struct {
	matcher *processor.Matcher
}

// NewIngestHandler 创建摄入处理器
func NewIngestHandler(matcher *processor.Matcher) *IngestHandler {
	return &IngestHandler{matcher: matcher}
}

// HandleJobPost 处理岗位发布请求 (JSON body)
func (h *IngestHandler) HandleJobPost(c context.Context, ctx *app.RequestContext) {
	var submission types.JobSubmission
	if err := ctx.BindJSON(&submission); err != nil {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "请求体不是合法的JSON"})
		return
	}

	resp, err := h.matcher.IngestJob(c, &submission)
	if err != nil {
		writeIngestError(ctx, err, "处理岗位发布失败")
		return
	}

	ctx.JSON(consts.StatusOK, utils.H{
		"success":             true,
		"job_id":              resp.JobID,
		"analysis":            resp.Analysis,
		"matching_candidates": resp.MatchingCandidates,
	})
}

// HandleCandidateSubmit 处理候选人投递请求 (multipart form)
// 表单字段: name, email, linkedin_url, skills, experience；简历文件字段名为 resume，可选
func (h *IngestHandler) HandleCandidateSubmit(c context.Context, ctx *app.RequestContext) {
	submission := types.CandidateSubmission{
		Name:       ctx.PostForm("name"),
		Email:      ctx.PostForm("email"),
		ProfileURL: ctx.PostForm("linkedin_url"),
		Skills:     ctx.PostForm("skills"),
		Experience: ctx.PostForm("experience"),
	}

	var resumeData []byte
	var resumeFileName string
	fileHeader, err := ctx.FormFile("resume")
	if err == nil && fileHeader != nil {
		file, openErr := fileHeader.Open()
		if openErr != nil {
			ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "打开简历文件失败"})
			return
		}
		resumeData, err = io.ReadAll(file)
		file.Close()
		if err != nil {
			ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "读取简历文件失败"})
			return
		}
		resumeFileName = fileHeader.Filename
	}

	resp, err := h.matcher.IngestCandidate(c, &submission, resumeData, resumeFileName)
	if err != nil {
		writeIngestError(ctx, err, "处理候选人投递失败")
		return
	}

	ctx.JSON(consts.StatusOK, utils.H{
		"success":       true,
		"analysis":      resp.Analysis,
		"matching_jobs": resp.MatchingJobs,
	})
}

// writeIngestError 把流水线错误映射到HTTP状态码
// 校验失败和简历无法解析是客户端错误，其余（嵌入/分析/索引）是服务端错误
// 服务端错误只返回统一的提示，细节进日志和span
func writeIngestError(ctx *app.RequestContext, err error, genericMsg string) {
	switch {
	case errors.Is(err, processor.ErrInvalidSubmission):
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": err.Error()})
	case errors.Is(err, processor.ErrResumeExtraction):
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": err.Error()})
	default:
		logger.Error().Err(err).Msg("摄入请求处理失败")
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": genericMsg})
	}
}
