package llm

import (
	"regexp"
	"strings"
)

// fileHeaderRe matches the file separator comments the system prompt asks the
// model to emit, e.g. "<!-- index.html -->", "/* styles.css */", "// main.js".
var fileHeaderRe = regexp.MustCompile(`^(?:<!--|/\*|//|#)\s*([\w./-]+\.(?:html|htm|css|js|mjs|json|md|txt|csv|svg|xml))\s*(?:-->|\*/)?\s*$`)

// ParseGeneratedFiles splits a model response into named files. Content is
// collected from each file header until the next one; code fence markers are
// dropped.
func ParseGeneratedFiles(content string) map[string]string {
	files := make(map[string]string)

	var current string
	var lines []string

	flush := func() {
		if current == "" {
			return
		}
		files[current] = strings.TrimSpace(strings.Join(lines, "\n"))
		current = ""
		lines = nil
	}

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)

		if m := fileHeaderRe.FindStringSubmatch(trimmed); m != nil {
			flush()
			current = m[1]
			continue
		}

		if strings.HasPrefix(trimmed, "```") {
			continue
		}

		if current != "" {
			lines = append(lines, line)
		}
	}
	flush()

	// Drop entries that ended up empty, e.g. a header immediately followed by
	// another header.
	for name, body := range files {
		if body == "" {
			delete(files, name)
		}
	}

	return files
}

// FallbackProject is the minimal working page used when generation fails.
func FallbackProject(brief, taskId string) map[string]string {
	summary := brief
	if len(summary) > 200 {
		summary = summary[:200] + "..."
	}

	return map[string]string{
		"index.html": `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Task ` + taskId + `</title>
    <link href="https://cdn.jsdelivr.net/npm/bootstrap@5.1.3/dist/css/bootstrap.min.css" rel="stylesheet">
    <link rel="stylesheet" href="styles.css">
</head>
<body>
    <div class="container mt-5">
        <h1>Task ` + taskId + `</h1>
        <p class="lead">` + summary + `</p>
        <div id="content">
            <p>Project generated for: ` + taskId + `</p>
        </div>
    </div>
    <script src="https://cdn.jsdelivr.net/npm/bootstrap@5.1.3/dist/js/bootstrap.bundle.min.js"></script>
    <script src="main.js"></script>
</body>
</html>`,
		"styles.css": `body {
    font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif;
}
.container {
    max-width: 1200px;
}
#content {
    margin-top: 2rem;
    padding: 2rem;
    border: 1px solid #dee2e6;
    border-radius: 0.375rem;
    background-color: #f8f9fa;
}`,
		"main.js": `document.addEventListener('DOMContentLoaded', function() {
    console.log('Project loaded successfully');

    const content = document.getElementById('content');
    if (content) {
        content.innerHTML += '<p>JavaScript is working!</p>';
    }
});`,
	}
}

// Gitignore returns the standard ignore list added to every generated repo.
func Gitignore() string {
	return `.DS_Store
.env
.env.local
npm-debug.log*
yarn-debug.log*
yarn-error.log*
node_modules/
*.log
temp/
.vscode/
`
}
