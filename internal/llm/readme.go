package llm

import (
	"fmt"
	"strings"
	"time"
)

// GenerateReadme renders the README committed alongside every generated
// project. repoURL may be empty when the repository does not exist yet.
func GenerateReadme(brief, taskId, repoURL string) string {
	date := time.Now().UTC().Format("2006-01-02")
	title := extractTitle(brief, taskId)

	var deployment string
	if repoURL != "" {
		pagesURL := pagesURLFor(repoURL)
		deployment = fmt.Sprintf(`
## Live Demo

This project is deployed and available at: [%s](%s)

## Repository

Source code: [%s](%s)
`, pagesURL, pagesURL, repoURL, repoURL)
	}

	cloneURL := repoURL
	if cloneURL == "" {
		cloneURL = "[REPOSITORY_URL]"
	}

	return fmt.Sprintf(`# %s

> Task ID: `+"`%s`"+` | Generated: %s

## Description

%s
%s
## Setup

This project is a static web application that runs in any modern web browser.

1. Clone the repository:
   `+"```bash"+`
   git clone %s
   `+"```"+`
2. Open `+"`index.html`"+` in your browser, or serve locally:
   `+"```bash"+`
   python -m http.server 8000
   `+"```"+`

## License

This project is licensed under the MIT License - see the [LICENSE](LICENSE) file for details.

---
*This project was automatically generated and deployed using an LLM-powered deployment system.*
`, title, taskId, date, brief, deployment, cloneURL)
}

// LicenseText returns the MIT license committed at the root of every repo.
func LicenseText() string {
	year := time.Now().UTC().Year()
	return fmt.Sprintf(`MIT License

Copyright (c) %d Student Project

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
`, year)
}

// pagesURLFor converts a repository URL into its Pages URL, e.g.
// https://github.com/acme/demo becomes https://acme.github.io/demo.
func pagesURLFor(repoURL string) string {
	trimmed := strings.TrimSuffix(repoURL, ".git")
	parts := strings.Split(strings.TrimPrefix(trimmed, "https://github.com/"), "/")
	if len(parts) == 2 {
		return fmt.Sprintf("https://%s.github.io/%s", parts[0], parts[1])
	}
	return trimmed
}

var titlePrefixes = []string{
	"create a", "build a", "develop a", "make a",
	"create an", "build an", "develop an", "make an",
	"create", "build", "develop", "make",
}

func extractTitle(brief, taskId string) string {
	first := strings.TrimSpace(strings.SplitN(brief, ".", 2)[0])

	if len(first) > 10 && len(first) < 100 {
		title := first
		lower := strings.ToLower(title)
		for _, prefix := range titlePrefixes {
			if strings.HasPrefix(lower, prefix+" ") {
				title = strings.TrimSpace(title[len(prefix):])
				break
			}
		}
		if title != "" {
			return strings.ToUpper(title[:1]) + title[1:]
		}
	}

	return fmt.Sprintf("Task %s - Web Application", taskId)
}
