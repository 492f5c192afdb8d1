package middleware

import (
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v3"
)

// Identifier length limits matching what YouTube actually issues.
const (
	VideoIDLen      = 11 // watch ids are always 11 characters
	MaxChannelIDLen = 32 // UC + 22 characters, padded limit for safety
)

var (
	// videoIDRe matches YouTube video IDs: alphanumeric, dash, underscore.
	videoIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	// channelIDRe matches canonical channel IDs: UC followed by 22 id chars.
	channelIDRe = regexp.MustCompile(`^UC[A-Za-z0-9_-]{22}$`)
)

// ErrorResponse is a helper that returns a standard API error response.
func ErrorResponse(c fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    code,
			"message": message,
		},
	})
}

// ValidateVideoID checks that a video ID is well-formed.
func ValidateVideoID(id string) (string, string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", "videoId is required"
	}
	if !videoIDRe.MatchString(id) {
		return "", "videoId must be 11 characters of [A-Za-z0-9_-]"
	}
	return id, ""
}

// ValidateChannelID checks that a channel ID is a canonical UC id.
func ValidateChannelID(id string) (string, string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", "channelId is required"
	}
	if len(id) > MaxChannelIDLen {
		return "", "channelId must be at most 32 characters"
	}
	if !channelIDRe.MatchString(id) {
		return "", "channelId must start with UC followed by 22 id characters"
	}
	return id, ""
}
