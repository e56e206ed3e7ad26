package discord

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/memohai/linkfix/internal/channel"
)

// mapError translates discordgo failures into channel sentinels so the
// pipeline can classify them without knowing about Discord.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var rl *discordgo.RateLimitError
	if errors.As(err, &rl) {
		return fmt.Errorf("discord %s: %w: %w", op, channel.ErrRateLimited, err)
	}
	var rest *discordgo.RESTError
	if !errors.As(err, &rest) {
		return fmt.Errorf("discord %s: %w", op, err)
	}
	if sentinel := classifyREST(rest); sentinel != nil {
		return fmt.Errorf("discord %s: %w: %w", op, sentinel, err)
	}
	return fmt.Errorf("discord %s: %w", op, err)
}

func classifyREST(rest *discordgo.RESTError) error {
	status := 0
	if rest.Response != nil {
		status = rest.Response.StatusCode
	}
	code := 0
	if rest.Message != nil {
		code = rest.Message.Code
	}
	switch {
	case status == http.StatusTooManyRequests:
		return channel.ErrRateLimited
	case status == http.StatusBadRequest && code == discordgo.ErrCodeInvalidFormBody &&
		strings.Contains(strings.ToLower(string(rest.ResponseBody)), "embed"):
		return channel.ErrEmbedTooLarge
	case code == discordgo.ErrCodeUnknownMessage, code == discordgo.ErrCodeUnknownChannel,
		status == http.StatusNotFound:
		return channel.ErrNotFound
	case code == discordgo.ErrCodeMissingAccess, code == discordgo.ErrCodeMissingPermissions,
		status == http.StatusForbidden:
		return channel.ErrForbidden
	}
	return nil
}
