package assistant

import "github.com/saturn-platform/opsclaw/internal/provider"

const defaultMaxHistory = 20

func appendUserMessage(history []provider.ChatMessage, text string) []provider.ChatMessage {
	next := append([]provider.ChatMessage{}, history...)
	next = append(next, provider.ChatMessage{
		Role:    provider.RoleUser,
		Content: text,
	})
	return next
}

// trimHistory keeps at most limit recent messages and always starts on a user
// message so the replayed conversation stays well formed.
func trimHistory(history []provider.ChatMessage, limit int) []provider.ChatMessage {
	if limit <= 0 {
		return nil
	}
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	for len(history) > 0 && history[0].Role != provider.RoleUser {
		history = history[1:]
	}
	return append([]provider.ChatMessage(nil), history...)
}
