// Package console provides an interactive webchat client: it connects
// to a running gateway's webchat endpoint and relays terminal input, so
// the request/accept/relay flow can be exercised without a browser.
package console

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

func NewConsoleCommand() *cobra.Command {
	var addr string
	var name string

	cmd := &cobra.Command{
		Use:   "console",
		Short: "Chat with a running gateway over webchat",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return consoleCmd(addr, name)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:18812", "Webchat host:port of the gateway")
	cmd.Flags().StringVar(&name, "name", "console", "Display name to chat under")

	return cmd
}

type outgoing struct {
	Name string `json:"name,omitempty"`
	Text string `json:"text"`
}

type incoming struct {
	Text string `json:"text"`
}

func consoleCmd(addr, name string) error {
	wsURL := "ws://" + addr + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", wsURL, err)
	}
	defer conn.Close()

	fmt.Printf("Connected to %s as %q (Ctrl+C to exit)\n\n", wsURL, name)

	go func() {
		for {
			var msg incoming
			if err := conn.ReadJSON(&msg); err != nil {
				fmt.Println("\nConnection closed")
				os.Exit(0)
			}
			fmt.Printf("\n<< %s\n", msg.Text)
		}
	}()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          ">> ",
		HistoryFile:     filepath.Join(os.TempDir(), ".relaybot_console_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("initialize readline: %w", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				fmt.Println("\nGoodbye!")
				return nil
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Println("Goodbye!")
			return nil
		}

		if err := conn.WriteJSON(outgoing{Name: name, Text: input}); err != nil {
			return fmt.Errorf("send: %w", err)
		}
	}
}
