package parser

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"talent-match-go/internal/types"
)

// PDFTextExtractor 二进制文档到纯文本的提取接口
type PDFTextExtractor interface {
	ExtractTextFromBytes(ctx context.Context, data []byte, uri string) (string, error)
}

// 技能关键词表，小写形式；子串匹配，不做词边界判断
// （关键词落在更长token内也会命中，属于已知的不精确行为）
var skillKeywords = []string{
	"javascript", "python", "java", "react", "angular", "vue", "node.js",
	"aws", "azure", "docker", "kubernetes", "sql", "nosql", "agile",
	"project management", "leadership", "communication", "problem solving",
}

// 教育关键词表，按行匹配
var educationKeywords = []string{
	"bachelor", "master", "phd", "degree", "university", "college",
	"certification", "diploma",
}

// 经验行：包含19xx/20xx年份且长度超过50字符，视为有实质内容的带日期经历条目
var experienceYearPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)

const experienceMinLineLength = 50

// ResumeParser 简历解析器：提取文本并用关键词/模式匹配得到粗粒度结构化信号
type ResumeParser struct {
	extractor PDFTextExtractor
}

// NewResumeParser 创建简历解析器
func NewResumeParser(extractor PDFTextExtractor) *ResumeParser {
	return &ResumeParser{extractor: extractor}
}

// Parse 解析简历二进制内容
// 返回的Text保留原始大小写；关键词匹配在小写副本上进行
// 零匹配不是错误，空的结果集合是合法输出
func (p *ResumeParser) Parse(ctx context.Context, data []byte, uri string) (*types.ParsedResume, error) {
	text, err := p.extractor.ExtractTextFromBytes(ctx, data, uri)
	if err != nil {
		return nil, fmt.Errorf("提取简历文本失败: %w", err)
	}

	lowered := strings.ToLower(text)

	skills := make([]string, 0, len(skillKeywords))
	for _, kw := range skillKeywords {
		if strings.Contains(lowered, kw) {
			skills = append(skills, kw)
		}
	}

	var education []string
	var experience []string
	for _, line := range strings.Split(text, "\n") {
		loweredLine := strings.ToLower(line)
		for _, kw := range educationKeywords {
			if strings.Contains(loweredLine, kw) {
				education = append(education, line)
				break
			}
		}
		if len(line) > experienceMinLineLength && experienceYearPattern.MatchString(line) {
			experience = append(experience, line)
		}
	}

	return &types.ParsedResume{
		Text:       text,
		Skills:     skills,
		Education:  education,
		Experience: experience,
	}, nil
}
