package processor

import (
	"fmt"
	"strings"

	"talent-match-go/internal/types"
)

// 规范化：把结构化提交折叠为"标签: 值"形式的规范文档
// 同一文档既作为嵌入输入也作为分析输入，字段顺序固定，空字段照常渲染
// 规范化是纯函数，永不失败

// NormalizeJob 生成岗位的规范文档
func NormalizeJob(job *types.JobSubmission) string {
	var b strings.Builder
	writeField(&b, "Title", job.Title)
	writeField(&b, "Company", job.Company)
	writeField(&b, "Location", job.Location)
	writeField(&b, "Type", string(job.Type))
	writeField(&b, "Experience Level", string(job.Experience))
	writeField(&b, "Description", job.Description)
	writeField(&b, "Requirements", job.Requirements)
	writeField(&b, "Benefits", job.Benefits)
	return b.String()
}

// NormalizeCandidate 生成候选人的规范文档
// resumeText 为提取出的简历全文，未上传简历时为空字符串，Resume字段仍然渲染
func NormalizeCandidate(c *types.CandidateSubmission, resumeText string) string {
	var b strings.Builder
	writeField(&b, "Name", c.Name)
	writeField(&b, "Email", c.Email)
	writeField(&b, "LinkedIn", c.ProfileURL)
	writeField(&b, "Skills", c.Skills)
	writeField(&b, "Experience", c.Experience)
	writeField(&b, "Resume", resumeText)
	return b.String()
}

func writeField(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, "%s: %s\n", label, value)
}
