package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/salmonumbrella/paddock-cli/internal/api"
	"github.com/salmonumbrella/paddock-cli/internal/config"
)

// HandleError processes an error and returns a user-friendly message with suggestions
func HandleError(err error) string {
	if err == nil {
		return ""
	}

	var msg strings.Builder

	var apiErr *api.APIError
	var authErr *api.AuthError
	var netErr *api.NetworkError

	switch {
	case errors.As(err, &authErr):
		fmt.Fprintf(&msg, "Not signed in: %s\n\n", authErr.Reason)
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Run: paddock login\n")
		msg.WriteString("  - Check the active profile: paddock config show\n")

	case errors.As(err, &apiErr):
		fmt.Fprintf(&msg, "API error (HTTP %d): %s\n\n", apiErr.StatusCode, apiErr.Body)
		msg.WriteString(suggestionsForStatusCode(apiErr.StatusCode, apiErr.Body))

	case errors.As(err, &netErr):
		fmt.Fprintf(&msg, "No response from the backend: %s\n\n", netErr.Detail)
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Check that the backend is running\n")
		msg.WriteString("  - Show the resolved address: paddock origin\n")
		msg.WriteString("  - Use --debug to see the request\n")

	case errors.Is(err, config.ErrNoSession):
		msg.WriteString("No stored session.\n\n")
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Run: paddock login\n")

	default:
		fmt.Fprintf(&msg, "Error: %s\n", err.Error())
	}

	return msg.String()
}

func suggestionsForStatusCode(code int, body string) string {
	var suggestions strings.Builder
	suggestions.WriteString("Suggestions:\n")

	switch code {
	case 400:
		suggestions.WriteString("  - Check your request parameters\n")
		suggestions.WriteString("  - Use --debug to see the full request\n")
		if strings.Contains(body, "required") {
			suggestions.WriteString("  - A required field may be missing\n")
		}

	case 403:
		suggestions.WriteString("  - You don't have permission for this action\n")
		suggestions.WriteString("  - Check the scopes of your account: paddock whoami\n")

	case 404:
		suggestions.WriteString("  - The resource doesn't exist\n")
		suggestions.WriteString("  - Check the path and ID\n")

	case 409:
		suggestions.WriteString("  - The resource changed in the meantime\n")
		suggestions.WriteString("  - Fetch it again and retry\n")

	case 422:
		suggestions.WriteString("  - Validation failed\n")
		suggestions.WriteString("  - Check your input values\n")

	case 500, 502, 503, 504:
		suggestions.WriteString("  - Server error - not your fault\n")
		suggestions.WriteString("  - Wait and retry\n")

	default:
		suggestions.WriteString("  - Use --debug for more details\n")
	}

	return suggestions.String()
}

// ExitWithError prints error with suggestions and exits
func ExitWithError(err error) {
	if err == nil {
		return
	}
	_, _ = fmt.Fprint(os.Stderr, HandleError(err))
	os.Exit(ExitCode(err))
}
