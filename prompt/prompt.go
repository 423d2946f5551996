// Package prompt folds a conversation history and the new user input into the
// single prompt string handed to a provider adapter.
package prompt

import (
	"strings"

	"github.com/casualjim/hoot/failure"
)

// DefaultTemplate is used when a request carries no template of its own.
const DefaultTemplate = "You are a helpful assistant called OuebxChat. Context: {history}\nUser: {input}\nAssistant:"

const (
	historySlot = "{history}"
	inputSlot   = "{input}"
)

// Role identifies the author of a turn.
type Role string

const (
	User      Role = "user"
	Assistant Role = "assistant"
	System    Role = "system"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case User, Assistant, System:
		return true
	}
	return false
}

// Turn is one prior message of a conversation.
type Turn struct {
	Role Role   `json:"author"`
	Text string `json:"content"`
}

// RenderHistory renders each turn as "role: text", one per line.
// Turns with an unknown role are skipped.
func RenderHistory(history []Turn) string {
	var b strings.Builder
	for _, t := range history {
		if !t.Role.Valid() {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(string(t.Role))
		b.WriteString(": ")
		b.WriteString(t.Text)
	}
	return b.String()
}

// Assemble substitutes the rendered history and the content into template.
// An empty template selects DefaultTemplate. Only the {history} and {input}
// placeholders are replaced, every other brace is kept as written.
func Assemble(history []Turn, content, template string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", failure.New(failure.Validation, "message content cannot be empty")
	}
	if template == "" {
		template = DefaultTemplate
	}

	r := strings.NewReplacer(historySlot, RenderHistory(history), inputSlot, content)
	return r.Replace(template), nil
}
