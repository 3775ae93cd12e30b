package approval

import (
	"fmt"
	"strings"
)

// FormatPrompt builds the CLI prompt text for an approval request.
func FormatPrompt(req Request) string {
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return fmt.Sprintf("run %s? [y/N]: ", req.Action)
	}
	if strings.Contains(description, "\n") {
		return fmt.Sprintf("%s\nproceed? [y/N]: ", description)
	}
	return fmt.Sprintf("run %s? [y/N]: ", description)
}
