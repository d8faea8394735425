package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sells-group/catalog-cli/internal/pipeline"
)

var chatCmd = &cobra.Command{
	Use:   "chat <id>",
	Short: "Ask questions about a catalog's extracted data",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		rec, err := env.Store.GetCatalog(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(rec.Specs) == 0 {
			return fmt.Errorf("catalog %s has no extracted records to chat about", rec.ID)
		}

		session, err := env.Gateway.NewChatSession(rec.Specs)
		if err != nil {
			return err
		}

		fmt.Printf("Chatting about %s (%d records). Empty line or Ctrl-D to quit.\n", rec.SourceLabel, len(rec.Specs))
		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("> ")
			if !scanner.Scan() {
				break
			}
			question := strings.TrimSpace(scanner.Text())
			if question == "" {
				break
			}

			answer, err := session.Ask(cmd.Context(), question)
			if err != nil {
				fmt.Fprintln(os.Stderr, pipeline.UserMessage(err))
				continue
			}
			fmt.Println(answer)
		}
		return scanner.Err()
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
