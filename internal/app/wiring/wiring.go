package wiring

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/CypherNinjaa/social-media-sub000/internal/app/commands"
	conversationsapp "github.com/CypherNinjaa/social-media-sub000/internal/app/handlers/conversations"
	messagesapp "github.com/CypherNinjaa/social-media-sub000/internal/app/handlers/messages"
	reactionsapp "github.com/CypherNinjaa/social-media-sub000/internal/app/handlers/reactions"
	readsapp "github.com/CypherNinjaa/social-media-sub000/internal/app/handlers/reads"
	searchapp "github.com/CypherNinjaa/social-media-sub000/internal/app/handlers/search"
	"github.com/CypherNinjaa/social-media-sub000/internal/app/handlers/support"
	"github.com/CypherNinjaa/social-media-sub000/internal/app/middleware"
	"github.com/CypherNinjaa/social-media-sub000/internal/app/outbox"
	"github.com/CypherNinjaa/social-media-sub000/internal/app/queries"
	"github.com/CypherNinjaa/social-media-sub000/internal/app/uow"
	"github.com/CypherNinjaa/social-media-sub000/internal/domain/profile"
)

// Deps are the ports the application layer needs from infrastructure.
// Limiter is optional.
type Deps struct {
	UoWFactory  uow.UoWFactory
	Profiles    profile.Directory
	Sink        outbox.Sink
	Idempotency middleware.IdempotencyStore
	Limiter     middleware.Limiter
	SearchLimit int
	Logger      *slog.Logger
}

// Application exposes the middleware-wrapped buses.
type Application struct {
	Commands commands.Bus
	Queries  queries.Bus
}

// Build registers every messaging handler and wraps the buses. Commands run
// logging, validation, rate limiting, idempotency, outbox flush and the
// transaction, outermost first.
func Build(d Deps) Application {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	box := outbox.Buffered{Sink: d.Sink}
	publisher := support.Publisher{Outbox: box, Encoder: outbox.JSONEventEncoder{}}
	messageID := func() string {
		if id, err := uuid.NewV7(); err == nil {
			return id.String()
		}
		return uuid.NewString()
	}

	commandBus := commands.NewInMemoryBus()
	commands.RegisterHandler(commandBus, conversationsapp.GetOrCreateCommand{}.Key(), &conversationsapp.GetOrCreateHandler{
		UoWFactory: d.UoWFactory,
		Publisher:  publisher,
		Logger:     logger,
		NewID:      uuid.NewString,
	})
	commands.RegisterHandler(commandBus, messagesapp.SendCommand{}.Key(), &messagesapp.SendHandler{
		UoWFactory: d.UoWFactory,
		Publisher:  publisher,
		Logger:     logger,
		NewID:      messageID,
	})
	commands.RegisterHandler(commandBus, messagesapp.EditCommand{}.Key(), &messagesapp.EditHandler{
		UoWFactory: d.UoWFactory,
		Publisher:  publisher,
		Profiles:   d.Profiles,
		Logger:     logger,
	})
	commands.RegisterHandler(commandBus, messagesapp.DeleteCommand{}.Key(), &messagesapp.DeleteHandler{
		UoWFactory: d.UoWFactory,
		Publisher:  publisher,
		Logger:     logger,
	})
	commands.RegisterHandler(commandBus, messagesapp.ClearCommand{}.Key(), &messagesapp.ClearHandler{
		UoWFactory: d.UoWFactory,
		Publisher:  publisher,
		Logger:     logger,
	})
	commands.RegisterHandler(commandBus, readsapp.MarkReadCommand{}.Key(), &readsapp.MarkReadHandler{
		UoWFactory: d.UoWFactory,
		Publisher:  publisher,
		Logger:     logger,
	})
	commands.RegisterHandler(commandBus, reactionsapp.ToggleCommand{}.Key(), &reactionsapp.ToggleHandler{
		UoWFactory: d.UoWFactory,
		Publisher:  publisher,
		Profiles:   d.Profiles,
		Logger:     logger,
	})

	queryBus := queries.NewInMemoryBus()
	queries.RegisterHandler(queryBus, conversationsapp.ListInboxQuery{}.Key(), &conversationsapp.ListInboxHandler{
		UoWFactory: d.UoWFactory,
		Profiles:   d.Profiles,
		Logger:     logger,
	})
	queries.RegisterHandler(queryBus, conversationsapp.UnreadSummaryQuery{}.Key(), &conversationsapp.UnreadSummaryHandler{
		UoWFactory: d.UoWFactory,
	})
	queries.RegisterHandler(queryBus, messagesapp.ListQuery{}.Key(), &messagesapp.ListHandler{
		UoWFactory: d.UoWFactory,
		Profiles:   d.Profiles,
		Logger:     logger,
	})
	queries.RegisterHandler(queryBus, searchapp.Query{}.Key(), &searchapp.Handler{
		UoWFactory:   d.UoWFactory,
		Profiles:     d.Profiles,
		DefaultLimit: d.SearchLimit,
		Logger:       logger,
	})

	validator := middleware.NewStructValidator()
	var rateLimit middleware.CommandMiddleware
	if d.Limiter != nil {
		rateLimit = middleware.RateLimit(d.Limiter, logger)
	}
	var idempotency middleware.CommandMiddleware
	if d.Idempotency != nil {
		idempotency = middleware.Idempotency(d.Idempotency, nil)
	}

	return Application{
		Commands: middleware.ChainCommands(
			commandBus,
			middleware.Logging(logger),
			middleware.Validation(validator),
			rateLimit,
			idempotency,
			middleware.OutboxFlush(box),
			middleware.Transaction(d.UoWFactory, nil),
		),
		Queries: middleware.ChainQueries(
			queryBus,
			middleware.QueryLogging(logger),
			middleware.QueryValidation(validator),
		),
	}
}
