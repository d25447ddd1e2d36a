package llm

import (
	"fmt"
	"sort"
	"strings"
)

const generationSystemPrompt = `You are an expert web developer who creates complete, functional web applications.
Generate clean, well-structured code that follows best practices:
- Use semantic HTML5
- Write clean, readable CSS
- Include proper JavaScript functionality
- Ensure accessibility
- Make responsive designs
- Add proper error handling
Always format your response with clear file separators like:
` + "```html" + `
<!-- index.html -->
<!DOCTYPE html>
...
` + "```" + `
` + "```css" + `
/* styles.css */
body {
...
` + "```" + `
` + "```javascript" + `
// main.js
function init() {
...
` + "```" + `
Create a complete, working application that fulfills all requirements.`

const revisionSystemPrompt = `You are an expert web developer updating an existing project.
Provide only the files that need changes. Keep the existing structure and functionality where possible.
Focus on implementing the new requirements while maintaining code quality.
Format your response with clear file separators for each updated file.`

func buildGenerationPrompt(brief, attachmentAnalysis string, checks []string) string {
	return fmt.Sprintf(`Generate a complete web project based on this brief:
%s

Attachments analysis:
%s
%s
Requirements:
1. Create a responsive web application using HTML, CSS, and JavaScript
2. Use Bootstrap 5 for styling
3. If data files are provided, integrate them into the application
4. Ensure all required UI elements are present with correct IDs
5. Make the application functional and visually appealing
6. Include proper error handling
7. Add comments explaining key functionality

Please provide the complete code for each file, clearly separated with file headers.`, brief, attachmentAnalysis, checksSection(checks))
}

func buildRevisionPrompt(brief string, existing map[string]string, attachmentAnalysis string, checks []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `Revise the existing project based on these new requirements:
%s

New attachments:
%s
%s`, brief, attachmentAnalysis, checksSection(checks))

	if len(existing) > 0 {
		b.WriteString("\nCurrent project files:\n")
		names := make([]string, 0, len(existing))
		for name := range existing {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "--- %s ---\n%s\n", name, existing[name])
		}
	}

	b.WriteString(`
Please provide only the files that need to be updated or added. Do not include unchanged files.
Maintain the existing project structure where possible.`)

	return b.String()
}

func checksSection(checks []string) string {
	if len(checks) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\nValidation requirements:\n")
	for _, check := range checks {
		fmt.Fprintf(&b, "- %s\n", check)
	}
	return b.String()
}
