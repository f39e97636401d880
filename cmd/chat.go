package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive assistant session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd.Context())
	},
}

var askCmd = &cobra.Command{
	Use:   "ask [query]",
	Short: "Ask a single question and exit",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Println(a.assistant.ProcessQuery(cmd.Context(), strings.Join(args, " ")))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(chatCmd, askCmd)
}

func runChat(ctx context.Context) error {
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}

	fmt.Println("aide ready. Type 'help' for what I can do, 'clear' to reset context, 'exit' to quit.")
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "clear":
			a.assistant.ClearContext()
			fmt.Println("Context cleared.")
			continue
		}
		fmt.Println(a.assistant.ProcessQuery(ctx, line))
		fmt.Println()
	}
	return scanner.Err()
}
