package reasoner

import (
	"fmt"
	"strings"

	"github.com/crimson-sun/hazardscope/internal/model"
)

// BuildPrompt renders the analysis prompt: the category enumeration, the
// few-shot examples as (category, description, suggestion), the retrieved
// neighbours as (category, description), and the JSON output instruction.
func BuildPrompt(categories []model.HazardCategory, fewShot, similar []model.ExemplarCase) string {
	names := make(map[string]string, len(categories))
	var b strings.Builder

	fmt.Fprintf(&b, "你是一个专业的隐患识别专家。请分析上传的图片，识别其中的安全隐患，并提供整改建议，%d种隐患类型如下所示。\n", len(categories))
	for _, c := range categories {
		names[c.ID] = c.Description
		fmt.Fprintf(&b, "%q: %q,\n", c.ID, c.Description)
	}

	if len(fewShot) > 0 {
		b.WriteString("\n部分类别的相关例子如下:\n")
		for i, ex := range fewShot {
			fmt.Fprintf(&b, "\n示例%d:\n", i+1)
			fmt.Fprintf(&b, "类型: %s\n", categoryLabel(ex.CategoryID, names))
			fmt.Fprintf(&b, "描述: %s\n", orDefault(ex.Description, "无描述"))
			fmt.Fprintf(&b, "建议: %s\n", orDefault(ex.Suggestion, "无建议"))
		}
	}

	if len(similar) > 0 {
		b.WriteString("\n以下几个示例的图片与上传的图片非常类似，其隐患类别和描述如下，请据此确定隐患类型并提出建议：\n")
		for i, cs := range similar {
			fmt.Fprintf(&b, "\n相似案例%d:\n", i+1)
			fmt.Fprintf(&b, "类型: %s\n", categoryLabel(cs.CategoryID, names))
			fmt.Fprintf(&b, "描述: %s\n", orDefault(cs.Description, "无描述"))
		}
	}

	b.WriteString(`
请按照以下格式输出分析结果（JSON 或可被 JSON 解析）：
{
"type": "隐患类型编号",
"description": "详细描述",
"suggestion": "整改建议",
"confidence": 0.95
}
`)
	return b.String()
}

func categoryLabel(id string, names map[string]string) string {
	if id == "" {
		id = "未知"
	}
	if name, ok := names[id]; ok {
		return fmt.Sprintf("%s (%s)", id, name)
	}
	return id
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
