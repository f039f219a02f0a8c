package reasoner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/crimson-sun/hazardscope/internal/engine/taxonomy"
	"github.com/crimson-sun/hazardscope/internal/model"
)

func TestBuildPromptEnumeratesCategories(t *testing.T) {
	cats := taxonomy.DefaultCategories()
	p := BuildPrompt(cats, nil, nil)

	assert.Contains(t, p, "15种隐患类型")
	for _, c := range cats {
		assert.Contains(t, p, `"`+c.ID+`": `)
	}
	assert.NotContains(t, p, "示例1")
	assert.NotContains(t, p, "相似案例1")
	for _, key := range []string{`"type"`, `"description"`, `"suggestion"`, `"confidence"`} {
		assert.Contains(t, p, key)
	}
}

func TestBuildPromptRendersExamples(t *testing.T) {
	cats := []model.HazardCategory{{ID: "1", Description: "安全帽佩戴不规范"}}
	fewShot := []model.ExemplarCase{
		{CategoryID: "1", Description: "工人未系下颚带", Suggestion: "系紧下颚带"},
		{CategoryID: "9"},
	}
	similar := []model.ExemplarCase{
		{CategoryID: "1", Description: "未戴安全帽", Suggestion: "never shown"},
	}

	p := BuildPrompt(cats, fewShot, similar)

	assert.Contains(t, p, "示例1:\n类型: 1 (安全帽佩戴不规范)\n描述: 工人未系下颚带\n建议: 系紧下颚带\n")
	assert.Contains(t, p, "示例2:\n类型: 9\n描述: 无描述\n建议: 无建议\n")
	assert.Contains(t, p, "相似案例1:\n类型: 1 (安全帽佩戴不规范)\n描述: 未戴安全帽\n")
	assert.NotContains(t, p, "never shown")

	// few-shot block precedes the similar-case block
	assert.Less(t, strings.Index(p, "示例1"), strings.Index(p, "相似案例1"))
}
