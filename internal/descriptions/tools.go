package descriptions

import "sort"

// Tool names exposed by the MCP server
const (
	SurveyProcessTool   = "survey_process"
	PDFValidateFileTool = "pdf_validate_file"
)

const (
	SurveyProcessDescription = `Turn a scanned multi-page survey PDF into a table with one row per completed survey.

**When to use:** A stack of paper surveys has been scanned into one PDF and the answers are needed as CSV or XLSX.

**How it works:** Every page is sent to the configured vision model, which reads the questions and marked answers. Consecutive pages (two by default) are merged into one survey response. Pages that cannot be read are reported and their row is flagged in the status column; the run only fails when no page could be read.

**Examples:**
• "Process /scans/customer-feedback.pdf"
• "Process /scans/intake.pdf and write the results to /reports/intake.xlsx"

**Output columns:** response_id, pages, status (ok, partial, incomplete, failed), then one column per question key.

**Best practices:** Run pdf_validate_file first to confirm the page count is a multiple of the pages per survey.`

	PDFValidateFileDescription = `Verify a PDF is readable and report its page count before processing.

**When to use:** Before survey_process, to catch corrupt files and odd page counts early.

**Examples:**
• "Validate /scans/customer-feedback.pdf"

**Best practices:** A page count that is not a multiple of the pages per survey means the last survey is incomplete.`
)

// ToolDescriptions maps tool names to their descriptions
var ToolDescriptions = map[string]string{
	SurveyProcessTool:   SurveyProcessDescription,
	PDFValidateFileTool: PDFValidateFileDescription,
}

// GetToolDescription returns the description for a tool
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return "Tool description not available"
}

// GetAllToolNames returns the names of all tools, sorted
func GetAllToolNames() []string {
	names := make([]string, 0, len(ToolDescriptions))
	for name := range ToolDescriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
