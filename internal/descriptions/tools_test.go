package descriptions

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetToolDescription(t *testing.T) {
	assert.True(t, strings.HasPrefix(GetToolDescription(SurveyProcessTool), "Turn a scanned"))
	assert.Contains(t, GetToolDescription(PDFValidateFileTool), "page count")
	assert.Equal(t, "Tool description not available", GetToolDescription("pdf_read_file"))
}

func TestGetAllToolNames(t *testing.T) {
	assert.Equal(t, []string{"pdf_validate_file", "survey_process"}, GetAllToolNames())
}
