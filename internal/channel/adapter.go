package channel

import "context"

// Sender posts messages. Replies whose target is gone fall back to a plain send.
type Sender interface {
	Send(ctx context.Context, msg OutboundMessage) (SentMessage, error)
}

// MessageEditor mutates existing messages.
type MessageEditor interface {
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	SuppressEmbeds(ctx context.Context, channelID, messageID string) error
}

// EmbedWatcher waits for a message to gain embeds. It returns the observed
// embed count and true, or false on timeout or cancellation.
type EmbedWatcher interface {
	WaitForEmbeds(ctx context.Context, req EmbedWait) (int, bool)
}

// Notifier writes operational notices to the event log channel.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// PermissionChecker reports the bot's permissions in a channel.
type PermissionChecker interface {
	Permissions(ctx context.Context, channelID string) (Permissions, error)
}

// TypingIndicator shows the bot as typing in a channel.
type TypingIndicator interface {
	Typing(ctx context.Context, channelID string) error
}

// Platform is everything the link pipeline needs from a chat platform.
type Platform interface {
	Sender
	MessageEditor
	PermissionChecker
	TypingIndicator
}
