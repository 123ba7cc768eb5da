package responder

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/chat-relay/internal/model/chat"
)

// triggers is the fixed vocabulary that wakes the assistant. Matching is
// deliberately substring-based, not word-boundary based: "hi" fires inside
// "this", "ai" inside "said". Clients rely on this low-precision behavior,
// so it must not be tightened.
var triggers = []string{
	"ai", "bot", "assistant", "help", "hello", "hi", "hey",
	"what", "how", "why", "when", "where", "who", "can you",
	"please", "thanks", "thank you",
}

// ShouldRespond reports whether a human message warrants an automated
// reply: any question mark, or any trigger word as a substring of the
// lowercased body.
func ShouldRespond(body string) bool {
	if strings.Contains(body, "?") {
		return true
	}

	lower := strings.ToLower(body)
	for _, trigger := range triggers {
		if strings.Contains(lower, trigger) {
			return true
		}
	}
	return false
}

// contextWindow caps how many recent messages make it into the prompt.
const contextWindow = 5

// BuildPrompt assembles the single prompt string sent to the generation
// service: instruction preamble, up to five context messages newest first,
// then the current message restated.
func BuildPrompt(currentMessage, author string, context []chat.StoredMessage) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are a helpful AI assistant in a group chat. The user '%s' just sent a message. Respond in a friendly, conversational way. Keep your response concise (1-2 sentences max) and engaging. Be helpful and natural.\n\n", author)

	if len(context) > 0 {
		b.WriteString("Recent conversation:\n")
		count := 0
		for i := len(context) - 1; i >= 0 && count < contextWindow; i-- {
			msg := context[i]
			if msg.IsAI {
				fmt.Fprintf(&b, "AI: %s\n", msg.Body)
			} else {
				fmt.Fprintf(&b, "%s: %s\n", msg.Username, msg.Body)
			}
			count++
		}
	}

	fmt.Fprintf(&b, "\nCurrent message from %s: %s\n\nPlease respond:", author, currentMessage)

	return b.String()
}
