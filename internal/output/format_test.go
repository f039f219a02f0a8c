package output

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crimson-sun/hazardscope/internal/model"
)

func testRecord() Record {
	return Record{
		AnalysisResult: model.AnalysisResult{
			ID:                  "analysis_20260301_120000_abcd1234",
			CategoryID:          "4",
			Description:         "脚手架缺少防护栏",
			Confidence:          0.82,
			SimilarCases:        []string{"4_1.jpg", "4_2.jpg"},
			AnalysisMethod:      model.MethodFused,
			Model:               model.BackendGemini,
			StandardDescription: "脚手架防护缺失",
		},
		Source:    "site/a.jpg",
		ImageHash: "deadbeef",
	}
}

func TestParseVerbosity(t *testing.T) {
	cases := map[string]Verbosity{
		"":         Standard,
		"minimal":  Minimal,
		" FULL ":   Full,
		"standard": Standard,
	}
	for in, want := range cases {
		got, err := ParseVerbosity(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseVerbosity("loud")
	assert.Error(t, err)
}

func TestFormatRecordMinimal(t *testing.T) {
	got := FormatRecord(testRecord(), Minimal)
	assert.Empty(t, got.SimilarCases)
	assert.NotNil(t, got.SimilarCases)
	assert.Empty(t, got.StandardDescription)
	assert.Equal(t, "4", got.CategoryID)
	assert.Equal(t, "site/a.jpg", got.Source)
}

func TestFormatRecordStandard(t *testing.T) {
	got := FormatRecord(testRecord(), Standard)
	assert.Len(t, got.SimilarCases, 2)
	assert.Empty(t, got.StandardDescription)
}

func TestFormatRecordFullDoesNotAlias(t *testing.T) {
	rec := testRecord()
	got := FormatRecord(rec, Full)
	assert.Equal(t, "脚手架防护缺失", got.StandardDescription)
	got.SimilarCases[0] = "changed"
	assert.Equal(t, "4_1.jpg", rec.SimilarCases[0])
}

func TestVerbosityString(t *testing.T) {
	assert.Equal(t, "minimal", Minimal.String())
	assert.Equal(t, "full", Full.String())
	assert.Equal(t, "verbosity(7)", Verbosity(7).String())
}
