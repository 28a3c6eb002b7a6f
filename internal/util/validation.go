package util

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	// MaxIntentLength bounds task intents and route requests.
	MaxIntentLength = 4096

	// MaxLookbackHours bounds violation queries to one year.
	MaxLookbackHours = 24 * 366
)

var ruleIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:-]{0,127}$`)

// ValidateUUID checks if a string is a valid UUID.
//
// Parameters:
//   - id: The string to validate as UUID
//
// Returns:
//   - error: An error if the string is not a valid UUID, nil otherwise
//
// Example:
//
//	if err := util.ValidateUUID(taskID); err != nil {
//	    return models.ErrInvalidRequest
//	}
func ValidateUUID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid UUID format: %w", err)
	}
	return nil
}

// ValidateRuleID checks that a policy rule identifier is 1-128 characters of
// letters, digits, '_', '.', ':' or '-', starting with a letter or digit.
//
// Example:
//
//	if err := util.ValidateRuleID(req.RuleID); err != nil {
//	    return fmt.Errorf("%w: %v", models.ErrInvalidRequest, err)
//	}
func ValidateRuleID(id string) error {
	if !ruleIDPattern.MatchString(id) {
		return fmt.Errorf("invalid rule id %q", id)
	}
	return nil
}

// ValidateIntent checks that a task intent is non-blank valid UTF-8 no
// longer than MaxIntentLength bytes.
func ValidateIntent(intent string) error {
	if strings.TrimSpace(intent) == "" {
		return fmt.Errorf("intent must not be empty")
	}
	if len(intent) > MaxIntentLength {
		return fmt.Errorf("intent too long: %d bytes (max %d)", len(intent), MaxIntentLength)
	}
	if !utf8.ValidString(intent) {
		return fmt.Errorf("intent must be valid UTF-8")
	}
	return nil
}

// ValidateLookbackHours checks a violation query window.
func ValidateLookbackHours(hours int) error {
	if hours < 1 || hours > MaxLookbackHours {
		return fmt.Errorf("hours must be between 1 and %d, got %d", MaxLookbackHours, hours)
	}
	return nil
}

// ValidatePortRange checks if a port number is in the valid range (1-65535).
func ValidatePortRange(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

// ValidateListenAddr checks a host:port listen address. The host may be empty.
//
// Example:
//
//	if err := util.ValidateListenAddr(":8080"); err != nil {
//	    return err
//	}
func ValidateListenAddr(addr string) error {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	if host != "" && net.ParseIP(host) == nil && strings.ContainsAny(host, " /") {
		return fmt.Errorf("invalid listen host %q", host)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid listen port %q", portStr)
	}
	return ValidatePortRange(port)
}
