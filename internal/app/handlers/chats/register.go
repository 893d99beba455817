package chats

import (
	"donateo/internal/app/commands"
	"donateo/internal/app/policies"
	"donateo/internal/app/queries"
	domainchat "donateo/internal/domain/chat"
)

// Engine bundles everything the chat handlers need.
type Engine struct {
	Deps
	Items     policies.ItemCatalog
	Limiter   policies.RateLimiter
	Moderator domainchat.Moderator
	Bot       domainchat.Responder
}

// Register wires every chat command and query handler onto the buses.
func Register(cmdBus *commands.InMemoryBus, queryBus *queries.InMemoryBus, e Engine) {
	if e.Locks == nil {
		e.Locks = NewKeyedMutex()
	}
	commands.RegisterHandler(cmdBus, createChatKey, &CreateChatHandler{Deps: e.Deps, Items: e.Items})
	commands.RegisterHandler(cmdBus, sendMessageKey, &SendMessageHandler{Deps: e.Deps, Limiter: e.Limiter, Moderator: e.Moderator, Bot: e.Bot})
	commands.RegisterHandler(cmdBus, quickReplyKey, &SendQuickReplyHandler{Deps: e.Deps, Limiter: e.Limiter})
	commands.RegisterHandler(cmdBus, setPickupKey, &SetPickupDetailsHandler{Deps: e.Deps})
	commands.RegisterHandler(cmdBus, confirmPickupKey, &ConfirmPickupHandler{Deps: e.Deps})
	commands.RegisterHandler(cmdBus, markReadKey, &MarkReadHandler{Deps: e.Deps})
	commands.RegisterHandler(cmdBus, endChatKey, &EndChatHandler{Deps: e.Deps})
	commands.RegisterHandler(cmdBus, reportKey, &ReportChatHandler{Deps: e.Deps})

	queries.RegisterHandler(queryBus, getChatKey, &GetChatHandler{Chats: e.Chats})
	queries.RegisterHandler(queryBus, findChatKey, &FindChatHandler{Chats: e.Chats})
	queries.RegisterHandler(queryBus, listMyChatsKey, &ListMyChatsHandler{Chats: e.Chats, Logger: e.Logger})
	queries.RegisterHandler(queryBus, listAllChatsKey, &ListAllChatsHandler{Chats: e.Chats, Logger: e.Logger})
}
