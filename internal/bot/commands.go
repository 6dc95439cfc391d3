package bot

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	apperrors "oispurts/internal/errors"
	"oispurts/internal/infrastructure"
	"oispurts/pkg/contracts/domain"
)

// Querier is the read side of the rank tracker
type Querier interface {
	Search(query string) (domain.Observation, bool)
	Suggestions(query string) []string
	History(name string) []domain.Observation
	ListAll() []domain.ListEntry
	Status(now time.Time) domain.Status
}

// Refresher runs a collection on demand
type Refresher interface {
	ForceRun(ctx context.Context) (domain.CollectionResult, error)
}

// Commands turns chat messages into MarkdownV2 replies
type Commands struct {
	query     Querier
	refresher Refresher
	location  *time.Location
	pageSize  int
	logger    *slog.Logger
	now       func() time.Time
}

// NewCommands creates the command dispatcher. refresher may be nil, in
// which case /refresh is reported as unavailable.
func NewCommands(query Querier, refresher Refresher, location *time.Location, pageSize int, logger *slog.Logger) *Commands {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	if location == nil {
		location = time.UTC
	}
	if pageSize < 1 {
		pageSize = 20
	}
	return &Commands{
		query:     query,
		refresher: refresher,
		location:  location,
		pageSize:  pageSize,
		logger:    logger.With(slog.String("component", "bot.commands")),
		now:       time.Now,
	}
}

// sampleQuery is what the Sample Query button looks up
const sampleQuery = "RELIANCE"

// Button is one inline keyboard button; Data comes back in the press
type Button struct {
	Label string
	Data  string
}

// StartKeyboard is attached to the /start reply, two buttons per row
var StartKeyboard = [][]Button{
	{{Label: "📊 Check Status", Data: "status"}, {Label: "📋 List Stocks", Data: "list"}},
	{{Label: "❓ Help", Data: "help"}, {Label: "📈 Sample Query", Data: "sample"}},
}

// buttonCommands maps button data to the message it stands for
var buttonCommands = map[string]string{
	"status": "/status",
	"list":   "/list",
	"help":   "/help",
	"sample": "/query " + sampleQuery,
}

// HasKeyboard reports whether the reply to text carries StartKeyboard
func HasKeyboard(text string) bool {
	name, _, ok := parseCommand(text)
	return ok && name == "start"
}

// HandleButton answers an inline keyboard press. Unknown data gives an
// empty reply.
func (c *Commands) HandleButton(ctx context.Context, data string) string {
	text, ok := buttonCommands[data]
	if !ok {
		c.logger.WarnContext(ctx, "unknown button", slog.String("data", data))
		return ""
	}
	return c.Handle(ctx, text)
}

// parseCommand splits "/cmd@BotName args" into its lowercased name and
// trimmed arguments. ok is false for plain text.
func parseCommand(text string) (name, args string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	head, rest, _ := strings.Cut(text, " ")
	head = strings.TrimPrefix(head, "/")
	if at := strings.IndexByte(head, '@'); at >= 0 {
		head = head[:at]
	}
	return strings.ToLower(head), strings.TrimSpace(rest), true
}

// Handle returns the reply to one incoming message. Empty input gives an
// empty reply.
func (c *Commands) Handle(ctx context.Context, text string) string {
	name, args, isCommand := parseCommand(text)
	if !isCommand {
		if strings.TrimSpace(text) == "" {
			return ""
		}
		return c.lookup(ctx, text)
	}

	c.logger.InfoContext(ctx, "command received",
		slog.String("command", name),
		slog.String("args", args))

	switch name {
	case "start":
		return welcomeText()
	case "help":
		return helpText()
	case "status":
		return RenderStatus(c.query.Status(c.now()), c.location)
	case "query":
		if args == "" {
			return Escape("Please provide a stock name, e.g. /query RELIANCE")
		}
		return c.lookup(ctx, args)
	case "list":
		return c.list(args)
	case "history":
		if args == "" {
			return Escape("Please provide a stock name, e.g. /history TCS")
		}
		return c.history(args)
	case "refresh":
		return c.refresh(ctx)
	default:
		return Escape("Unknown command /" + name + ". Type /help for the list of commands.")
	}
}

// lookup answers free text and /query with the best match, or with
// suggestions on a miss
func (c *Commands) lookup(ctx context.Context, text string) string {
	obs, ok := c.query.Search(text)
	if !ok {
		c.logger.DebugContext(ctx, "lookup miss", slog.String("query", text))
		return RenderNotFound(text, c.query.Suggestions(text))
	}
	return RenderObservation(obs, c.location)
}

func (c *Commands) list(args string) string {
	page := 1
	if args != "" {
		n, err := strconv.Atoi(args)
		if err != nil || n < 1 {
			return Escape("Page must be a positive number, e.g. /list 2")
		}
		page = n
	}
	text, _ := RenderList(c.query.ListAll(), page, c.pageSize, c.now().In(c.location))
	return text
}

// history resolves partial names the same way as lookup
func (c *Commands) history(name string) string {
	obs, ok := c.query.Search(name)
	if !ok {
		return RenderNotFound(name, c.query.Suggestions(name))
	}
	return RenderHistory(obs.InstrumentKey, c.query.History(obs.InstrumentKey), c.location)
}

func (c *Commands) refresh(ctx context.Context) string {
	now := c.now().In(c.location)
	if c.refresher == nil {
		return RenderError("Data refresh failed", "manual refresh is not available", now)
	}

	result, err := c.refresher.ForceRun(ctx)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrTypeBusy) {
			return "⏳ " + Escape("A collection is already running, try again shortly.")
		}
		c.logger.ErrorContext(ctx, "forced collection failed", slog.String("error", err.Error()))
		return RenderError("Data refresh failed", err.Error(), now)
	}
	if result.Timestamp.IsZero() {
		result.Timestamp = now
	}
	result.Timestamp = result.Timestamp.In(c.location)
	return RenderCollection(result)
}
