package relay

import (
	"github.com/satriahrh/genui-relay/domain/entities"
)

var languageDirectives = map[entities.Language]string{
	entities.LanguageEnglish: "You are a helpful assistant that answers with rich, interactive UI components. " +
		"Respond in English.",
	entities.LanguageArabic: "You are a helpful assistant that answers with rich, interactive UI components. " +
		"Respond in Modern Standard Arabic and lay the interface out right-to-left.",
}

const stateDirective = "The user is refining an interface you already produced. " +
	"Modify the previous UI state below to satisfy the latest request instead of generating a new interface " +
	"from scratch. Keep every component the request does not mention unchanged.\n\nPrevious UI state:\n"

// upstreamMessages builds the message list sent upstream: language directive,
// the conversation in its original order, then the previous-state directive
// when the request continues an existing UI.
func upstreamMessages(req entities.StreamRequest) []entities.ChatMessage {
	directive, ok := languageDirectives[req.Language]
	if !ok {
		directive = languageDirectives[entities.LanguageEnglish]
	}

	messages := make([]entities.ChatMessage, 0, len(req.Messages)+2)
	messages = append(messages, entities.NewTextMessage(entities.RoleSystem, directive))
	messages = append(messages, entities.ExpandAll(req.Messages)...)

	if req.SessionContext.HasPreviousState() {
		messages = append(messages, entities.NewTextMessage(entities.RoleSystem,
			stateDirective+string(req.SessionContext.PreviousState)))
	}
	return messages
}
