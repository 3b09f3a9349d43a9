package commands

import (
	"fmt"
	"strings"

	"github.com/tinyland-inc/relaybot/pkg/routing"
)

const helpText = `Commands:
  init                   make this channel receive conversation requests
  deinit                 stop receiving conversation requests here
  accept <name>          accept a pending request
  reject <name>          reject a pending request
  close                  end your current conversation
  list [users|bots|requests|engagements]
  enable aggregation     require an agent channel for new requests
  disable aggregation    let requests queue without an agent channel
  reset                  clear all routing state
  help                   show this text`

// Interpreter dispatches parsed commands against the routing coordinator
// and replies to the sender. It implements routing.CommandHandler.
type Interpreter struct {
	coord  *routing.Coordinator
	parser Parser
}

// NewInterpreter wires an interpreter to the coordinator. prefix and
// botNames configure how messages address the bot.
func NewInterpreter(coord *routing.Coordinator, prefix string, botNames []string) *Interpreter {
	return &Interpreter{
		coord:  coord,
		parser: Parser{Prefix: prefix, BotNames: botNames},
	}
}

// TryHandle parses text and, if it is a command, executes it and replies
// to the sender. Unrecognized text explicitly addressed at the bot is
// answered; anything else is passed back to the caller.
func (i *Interpreter) TryHandle(sender routing.Party, text string, addressed bool) bool {
	cmd, explicit, ok := i.parser.Parse(text)
	if !ok {
		if explicit && addressed {
			i.coord.SendTo(sender, routing.ReplyCommandNotRecognized)
			return true
		}
		return false
	}
	if reply := i.dispatch(sender, cmd); reply != "" {
		i.coord.SendTo(sender, reply)
	}
	return true
}

func (i *Interpreter) dispatch(sender routing.Party, cmd Command) string {
	switch cmd.Kind {
	case KindInit:
		return i.coord.InitializeAggregation(sender)
	case KindDeinit:
		return i.coord.DeinitializeAggregation(sender)
	case KindAccept:
		if cmd.Arg == "" {
			return "Usage: accept <name>"
		}
		return i.coord.Accept(sender, cmd.Arg)
	case KindReject:
		if cmd.Arg == "" {
			return "Usage: reject <name>"
		}
		return i.coord.Reject(sender, cmd.Arg)
	case KindClose:
		return i.coord.Close(sender)
	case KindEnableAggregation:
		if !i.authorized(sender) {
			return routing.ReplyNotAllowed
		}
		return i.coord.SetAggregationRequired(true)
	case KindDisableAggregation:
		if !i.authorized(sender) {
			return routing.ReplyNotAllowed
		}
		return i.coord.SetAggregationRequired(false)
	case KindReset:
		if !i.authorized(sender) {
			return routing.ReplyNotAllowed
		}
		return i.coord.Reset()
	case KindList:
		if !i.authorized(sender) {
			return routing.ReplyNotAllowed
		}
		return i.list(cmd.Arg)
	case KindHelp:
		return helpText
	}
	return routing.ReplyCommandNotRecognized
}

// authorized limits administrative commands to aggregation channels. As
// long as no aggregation channel exists yet, anyone may administer so
// the system can be bootstrapped.
func (i *Interpreter) authorized(sender routing.Party) bool {
	if i.coord.Aggregation().IsAggregationChannel(sender) {
		return true
	}
	return len(i.coord.Aggregation().AggregationParties()) == 0
}

// list renders read-only diagnostics of the routing state.
func (i *Interpreter) list(what string) string {
	snap := i.coord.Snapshot()
	var b strings.Builder
	switch what {
	case "users":
		fmt.Fprintf(&b, "%d user parties", len(snap.UserParties))
		for _, p := range snap.UserParties {
			fmt.Fprintf(&b, "\n  %s", p.String())
		}
	case "bots":
		fmt.Fprintf(&b, "%d bot parties", len(snap.BotParties))
		for _, p := range snap.BotParties {
			fmt.Fprintf(&b, "\n  %s", p.String())
		}
	case "engagements":
		fmt.Fprintf(&b, "%d engagements", len(snap.Engagements))
		for _, e := range snap.Engagements {
			fmt.Fprintf(&b, "\n  %s <-> %s (since %s)",
				e.Owner.Name(), e.Counterpart.Name(), e.Since.Format("2006-01-02 15:04:05"))
		}
	case "", "requests":
		fmt.Fprintf(&b, "%d pending requests", len(snap.PendingRequests))
		for _, r := range snap.PendingRequests {
			fmt.Fprintf(&b, "\n  %s (waiting since %s)",
				r.Party.Name(), r.RequestedAt.Format("2006-01-02 15:04:05"))
		}
	default:
		return "Usage: list [users|bots|requests|engagements]"
	}
	return b.String()
}
