package automation

import (
	"fmt"
	"regexp"
	"strings"

	"whatsapp-bot/internal/models"
)

// MatchTrigger reports whether messageText satisfies a trigger. Literal modes
// compare lower-cased operands; regex mode compiles triggerText with the
// case-insensitive flag and runs it against the unmodified text. An invalid
// pattern or an unknown match type never matches.
func MatchTrigger(messageText, triggerText, matchType string) bool {
	message := strings.ToLower(messageText)
	value := strings.ToLower(triggerText)

	switch matchType {
	case models.MatchExact:
		return message == value
	case models.MatchContains:
		return strings.Contains(message, value)
	case models.MatchStartsWith:
		return strings.HasPrefix(message, value)
	case models.MatchRegex:
		re, err := regexp.Compile("(?i)" + triggerText)
		if err != nil {
			return false
		}
		return re.MatchString(messageText)
	default:
		return false
	}
}

// ValidMatchType reports whether matchType is one of the supported modes.
func ValidMatchType(matchType string) bool {
	switch matchType {
	case models.MatchExact, models.MatchContains, models.MatchStartsWith, models.MatchRegex:
		return true
	}
	return false
}

// ValidateTrigger checks a trigger definition before it is stored.
func ValidateTrigger(triggerText, matchType string) error {
	if !ValidMatchType(matchType) {
		return fmt.Errorf("unknown match type %q", matchType)
	}
	if strings.TrimSpace(triggerText) == "" {
		return fmt.Errorf("trigger text is required")
	}
	if matchType == models.MatchRegex {
		if _, err := regexp.Compile("(?i)" + triggerText); err != nil {
			return fmt.Errorf("invalid regex: %w", err)
		}
	}
	return nil
}
