// Package publish delivers episode digests to a Telegram channel.
//
// Digests are sent through the Bot API sendMessage method in HTML parse mode
// with the configured footer link appended. The summary text is escaped and
// cut so the visible message stays within Telegram's 4096 character limit.
// When no bot token is configured a no-op publisher is returned.
package publish
