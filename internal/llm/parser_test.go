package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGeneratedFiles(t *testing.T) {
	response := `Here are the project files:

<!-- index.html -->
` + "```html" + `
<!DOCTYPE html>
<html>
<body><h1>Demo</h1></body>
</html>
` + "```" + `

/* styles.css */
` + "```css" + `
body { margin: 0; }
` + "```" + `

// main.js
` + "```js" + `
console.log('ready');
` + "```"

	files := ParseGeneratedFiles(response)
	require.Len(t, files, 3)

	assert.Contains(t, files["index.html"], "<h1>Demo</h1>")
	assert.Equal(t, "body { margin: 0; }", files["styles.css"])
	assert.Equal(t, "console.log('ready');", files["main.js"])

	for _, content := range files {
		assert.NotContains(t, content, "```")
	}
}

func TestParseGeneratedFilesNoHeaders(t *testing.T) {
	files := ParseGeneratedFiles("I could not generate the project, sorry.")
	assert.Empty(t, files)
}

func TestParseGeneratedFilesEmptyEntries(t *testing.T) {
	response := `<!-- empty.html -->
<!-- index.html -->
<html></html>`

	files := ParseGeneratedFiles(response)
	require.Len(t, files, 1)
	assert.Equal(t, "<html></html>", files["index.html"])
}

func TestParseGeneratedFilesNestedPaths(t *testing.T) {
	response := `// assets/js/app.js
console.log('nested');

/* css/theme.css */
body { color: red; }`

	files := ParseGeneratedFiles(response)
	require.Len(t, files, 2)
	assert.Equal(t, "console.log('nested');", files["assets/js/app.js"])
	assert.Equal(t, "body { color: red; }", files["css/theme.css"])
}

func TestParseGeneratedFilesIgnoresCodeComments(t *testing.T) {
	response := `// main.js
// helper for the click handler
function handle() {}
`

	files := ParseGeneratedFiles(response)
	require.Len(t, files, 1)
	assert.Contains(t, files["main.js"], "// helper for the click handler")
}

func TestFallbackProject(t *testing.T) {
	files := FallbackProject("Create a demo page", "task-1")

	require.Contains(t, files, "index.html")
	require.Contains(t, files, "styles.css")
	require.Contains(t, files, "main.js")
	assert.Contains(t, files["index.html"], "task-1")
	assert.Contains(t, files["index.html"], "Create a demo page")
}
