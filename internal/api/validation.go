package api

import (
	"net/http"
	"sort"
	"strings"

	"deploy-backend/pkg/api"
)

// ValidateDeploymentRequest performs the synchronous structural checks. Secret
// validation is separate so an invalid secret can map to 401 instead of 400.
func ValidateDeploymentRequest(req api.DeploymentRequest) error {
	var missing []string
	for field, value := range map[string]string{
		"email":          req.Email,
		"secret":         req.Secret,
		"task":           req.Task,
		"nonce":          req.Nonce,
		"brief":          req.Brief,
		"evaluation_url": req.EvaluationURL,
	} {
		if value == "" {
			missing = append(missing, field)
		}
	}
	if req.Round == 0 {
		missing = append(missing, "round")
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return CodedErrorf(http.StatusBadRequest, "missing required fields: %s", strings.Join(missing, ", "))
	}

	if req.Round != api.RoundBuild && req.Round != api.RoundRevise {
		return CodedErrorf(http.StatusBadRequest, "round must be 1 or 2")
	}

	if !validEmail(req.Email) {
		return CodedErrorf(http.StatusBadRequest, "invalid email format")
	}

	if !strings.HasPrefix(req.EvaluationURL, "http://") && !strings.HasPrefix(req.EvaluationURL, "https://") {
		return CodedErrorf(http.StatusBadRequest, "evaluation_url must start with http:// or https://")
	}

	for i, attachment := range req.Attachments {
		if attachment.Filename == "" || attachment.Content == "" {
			return CodedErrorf(http.StatusBadRequest, "attachment %d must have filename and content fields", i)
		}
	}

	return nil
}

func validEmail(email string) bool {
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	domain := email[at+1:]
	return strings.Contains(domain, ".") && !strings.HasPrefix(domain, ".") && !strings.HasSuffix(domain, ".")
}
