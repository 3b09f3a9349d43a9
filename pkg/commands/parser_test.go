package commands

import "testing"

func TestParse(t *testing.T) {
	p := &Parser{Prefix: "/relay", BotNames: []string{"relaybot"}}

	tests := []struct {
		name         string
		text         string
		wantKind     Kind
		wantArg      string
		wantExplicit bool
		wantOK       bool
	}{
		{"bare init", "init", KindInit, "", false, true},
		{"initialize alias", "Initialize", KindInit, "", false, true},
		{"deinit", "deinit", KindDeinit, "", false, true},
		{"accept with name", "accept alice", KindAccept, "alice", false, true},
		{"accept multiword name", "accept Alice Liddell", KindAccept, "Alice Liddell", false, true},
		{"accept keeps inner whitespace", "accept Alice  Liddell", KindAccept, "Alice  Liddell", false, true},
		{"reject", "reject bob", KindReject, "bob", false, true},
		{"close", "close", KindClose, "", false, true},
		{"end alias", "END", KindClose, "", false, true},
		{"enable aggregation", "enable aggregation", KindEnableAggregation, "", false, true},
		{"disable aggregation", "Disable Aggregation", KindDisableAggregation, "", false, true},
		{"enable alone is not a command", "enable", KindUnknown, "", false, false},
		{"reset", "reset", KindReset, "", false, true},
		{"list default", "list", KindList, "", false, true},
		{"list engagements", "list Engagements", KindList, "engagements", false, true},
		{"help", "help", KindHelp, "", false, true},
		{"prefix", "/relay accept alice", KindAccept, "alice", true, true},
		{"mention", "@relaybot init", KindInit, "", true, true},
		{"bare name mention", "relaybot close", KindClose, "", true, true},
		{"prefix and mention", "/relay @relaybot list", KindList, "", true, true},
		{"prefix alone", "/relay", KindUnknown, "", true, false},
		{"mention with unknown text", "@relaybot good morning", KindUnknown, "", true, false},
		{"plain chatter", "hello there", KindUnknown, "", false, false},
		{"keyword case", "ACCEPT alice", KindAccept, "alice", false, true},
		{"leading whitespace", "   close  ", KindClose, "", false, true},
		{"empty", "", KindUnknown, "", false, false},
		{"prefix must be a token", "/relaying on", KindUnknown, "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, explicit, ok := p.Parse(tt.text)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if explicit != tt.wantExplicit {
				t.Errorf("explicit = %v, want %v", explicit, tt.wantExplicit)
			}
			if cmd.Kind != tt.wantKind {
				t.Errorf("kind = %v, want %v", cmd.Kind, tt.wantKind)
			}
			if cmd.Arg != tt.wantArg {
				t.Errorf("arg = %q, want %q", cmd.Arg, tt.wantArg)
			}
		})
	}
}

func TestParseSymbolPrefixGlued(t *testing.T) {
	p := &Parser{Prefix: "!"}
	cmd, explicit, ok := p.Parse("!accept alice")
	if !ok || !explicit || cmd.Kind != KindAccept || cmd.Arg != "alice" {
		t.Errorf("got %+v, explicit=%v, ok=%v", cmd, explicit, ok)
	}
	if _, _, ok := p.Parse("!"); ok {
		t.Error("bare prefix should not parse")
	}
}

func TestParseWithoutPrefix(t *testing.T) {
	p := &Parser{}
	cmd, explicit, ok := p.Parse("accept alice")
	if !ok || explicit || cmd.Kind != KindAccept {
		t.Errorf("got %+v, explicit=%v, ok=%v", cmd, explicit, ok)
	}
}
