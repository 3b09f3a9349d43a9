// Package commands turns chat text into router operations: one parse
// step producing a closed command set, then a dispatch over it.
package commands

import "strings"

// Kind enumerates the commands the bot understands.
type Kind int

const (
	KindUnknown Kind = iota
	KindInit
	KindDeinit
	KindAccept
	KindReject
	KindClose
	KindEnableAggregation
	KindDisableAggregation
	KindReset
	KindList
	KindHelp
)

// Command is one parsed command with its optional argument.
type Command struct {
	Kind Kind
	Arg  string
}

// Parser recognizes commands in raw message text. Prefix is the command
// marker (for example "/relay"); BotNames are mention spellings of the
// bot that count as addressing it.
type Parser struct {
	Prefix   string
	BotNames []string
}

// Parse attempts to read a command from text. explicit reports whether
// the text was explicitly addressed at the bot via the prefix or a
// mention, which matters for how unrecognized input is answered.
func (p *Parser) Parse(text string) (cmd Command, explicit bool, ok bool) {
	rest := strings.TrimSpace(text)

	for {
		stripped := false
		if p.Prefix != "" && hasCommandPrefix(rest, p.Prefix) {
			rest = strings.TrimSpace(rest[len(p.Prefix):])
			explicit = true
			stripped = true
		}
		for _, name := range p.BotNames {
			for _, spelling := range []string{"@" + name, name} {
				if spelling != "" && hasTokenPrefix(rest, spelling) {
					rest = strings.TrimSpace(rest[len(spelling):])
					explicit = true
					stripped = true
				}
			}
		}
		if !stripped {
			break
		}
	}

	if rest == "" {
		return Command{}, explicit, false
	}

	// Only the keyword is normalized; the argument keeps its exact
	// spelling, internal whitespace included, so names match verbatim.
	word := rest
	arg := ""
	if i := strings.IndexAny(rest, " \t"); i >= 0 {
		word = rest[:i]
		arg = strings.TrimSpace(rest[i:])
	}
	keyword := strings.ToLower(word)

	switch keyword {
	case "init", "initialize":
		return Command{Kind: KindInit}, explicit, true
	case "deinit", "deinitialize":
		return Command{Kind: KindDeinit}, explicit, true
	case "accept":
		return Command{Kind: KindAccept, Arg: arg}, explicit, true
	case "reject":
		return Command{Kind: KindReject, Arg: arg}, explicit, true
	case "close", "end":
		return Command{Kind: KindClose}, explicit, true
	case "enable":
		if strings.EqualFold(arg, "aggregation") {
			return Command{Kind: KindEnableAggregation}, explicit, true
		}
	case "disable":
		if strings.EqualFold(arg, "aggregation") {
			return Command{Kind: KindDisableAggregation}, explicit, true
		}
	case "reset":
		return Command{Kind: KindReset}, explicit, true
	case "list":
		return Command{Kind: KindList, Arg: strings.ToLower(arg)}, explicit, true
	case "help":
		return Command{Kind: KindHelp}, explicit, true
	}
	return Command{}, explicit, false
}

// hasCommandPrefix reports whether s starts with the command prefix.
// Symbol prefixes ("!", ".") may be glued to the keyword; word prefixes
// ("/relay") must stand as their own token.
func hasCommandPrefix(s, prefix string) bool {
	last := prefix[len(prefix)-1]
	if !isWordChar(last) {
		return len(s) > len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
	}
	return hasTokenPrefix(s, prefix)
}

func isWordChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// hasTokenPrefix reports whether s starts with the prefix as a whole
// token, case-insensitively.
func hasTokenPrefix(s, prefix string) bool {
	if len(s) < len(prefix) {
		return false
	}
	if !strings.EqualFold(s[:len(prefix)], prefix) {
		return false
	}
	return len(s) == len(prefix) || s[len(prefix)] == ' ' || s[len(prefix)] == '\t'
}
