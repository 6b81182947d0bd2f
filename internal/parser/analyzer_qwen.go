package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"

	"talent-match-go/internal/constants"
)

const defaultQwenModelName = "qwen-plus"

// 两个固定的分析提示模板，各自要求五个固定段落
// 报告正文是生成服务的自由输出，本组件不解析也不校验其内部结构
const jobAnalysisPromptTemplate = `Analyze the following job posting and provide:
1. Key skills and qualifications required
2. Experience level assessment
3. Main responsibilities
4. Unique benefits or perks
5. Suggested candidate profile

Job Posting:
%s`

const candidateAnalysisPromptTemplate = `Analyze the following candidate profile and provide:
1. A brief summary of their background
2. Key skills identified
3. Experience level assessment
4. Potential role matches
5. Areas for improvement

Profile:
%s`

// QwenAnalyzer 调用通义千问聊天接口生成岗位/候选人分析报告
type QwenAnalyzer struct {
	apiKey     string
	modelName  string
	apiURL     string
	httpClient *http.Client
	logger     *log.Logger
}

// NewQwenAnalyzer 创建分析客户端
func NewQwenAnalyzer(apiKey, modelName, apiURL string) (*QwenAnalyzer, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("API 密钥不能为空")
	}

	mn := modelName
	if strings.TrimSpace(mn) == "" {
		mn = defaultQwenModelName
	}

	url := apiURL
	if strings.TrimSpace(url) == "" {
		url = "https://dashscope.aliyuncs.com/compatible-mode/v1/chat/completions"
	}

	return &QwenAnalyzer{
		apiKey:     apiKey,
		modelName:  mn,
		apiURL:     url,
		httpClient: &http.Client{},
		logger:     log.New(os.Stderr, "[QwenAnalyzer] ", log.LstdFlags),
	}, nil
}

// --- OpenAI Compatible Request/Response Structures ---

type qwenChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type qwenChatCompletionRequest struct {
	Model    string            `json:"model"`
	Messages []qwenChatMessage `json:"messages"`
}

type qwenChatChoice struct {
	Index        int             `json:"index"`
	Message      qwenChatMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

type qwenChatCompletionResponse struct {
	ID      string           `json:"id"`
	Object  string           `json:"object"`
	Model   string           `json:"model"`
	Choices []qwenChatChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// Analyze 针对给定任务生成分析报告，每次调用恰好一次同步生成请求，不重试
// task 取 constants.AnalysisTaskJob 或 constants.AnalysisTaskCandidate
func (q *QwenAnalyzer) Analyze(ctx context.Context, task string, document string) (string, error) {
	var prompt string
	switch task {
	case constants.AnalysisTaskJob:
		prompt = fmt.Sprintf(jobAnalysisPromptTemplate, document)
	case constants.AnalysisTaskCandidate:
		prompt = fmt.Sprintf(candidateAnalysisPromptTemplate, document)
	default:
		return "", fmt.Errorf("未知的分析任务: %s", task)
	}

	reqBody := qwenChatCompletionRequest{
		Model: q.modelName,
		Messages: []qwenChatMessage{
			{Role: "user", Content: prompt},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("序列化请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, q.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+q.apiKey)

	resp, err := q.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("发送HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("读取响应体失败: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		q.logger.Printf("生成服务调用失败, 状态码: %d", resp.StatusCode)
		return "", fmt.Errorf("API调用失败, 状态码: %d, 响应: %s", resp.StatusCode, string(body))
	}

	var parsed qwenChatCompletionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("解析响应JSON失败: %w", err)
	}

	if parsed.Error != nil && parsed.Error.Message != "" {
		return "", fmt.Errorf("API返回错误: 类型=%s, 消息='%s', Code=%s", parsed.Error.Type, parsed.Error.Message, parsed.Error.Code)
	}

	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("生成服务未返回任何结果")
	}

	return parsed.Choices[0].Message.Content, nil
}
