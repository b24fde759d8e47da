package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	chatMessage string
	chatResume  string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the assistant agent",
	Long: `Start an interactive chat session with the assistant agent.
With --message, sends a single message and prints the response instead.
With --resume, the session continues from the latest checkpoint of the
given thread id instead of starting empty.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatMessage, "message", "m", "", "send a single message and exit")
	chatCmd.Flags().StringVar(&chatResume, "resume", "", "resume from the latest checkpoint of a thread id")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	rt, err := newRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.close()

	var sessionID string
	if chatResume != "" {
		sessionID, err = rt.orchestrator.ResumeSession(ctx, "assistant", chatResume)
		if err != nil {
			return fmt.Errorf("failed to resume session: %w", err)
		}
	} else {
		sessionID, err = rt.orchestrator.CreateSession(ctx, "assistant", nil)
		if err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}
	}
	defer func() { _ = rt.orchestrator.CloseSession(ctx, sessionID) }()

	if chatMessage != "" {
		res := rt.orchestrator.Execute(ctx, sessionID, chatMessage)
		if !res.Success {
			return fmt.Errorf("execution failed: %s", res.Error)
		}
		fmt.Println(res.Response)
		return nil
	}

	fmt.Printf("Weave %s - chatting with %s (%s). Type 'exit' to quit.\n",
		version, cfg.Provider.Model, cfg.Provider.Provider)
	if info, ok := rt.orchestrator.GetSessionInfo(sessionID); ok {
		fmt.Printf("Thread %s - pass it to 'chat --resume' to pick this conversation back up.\n", info.ThreadID)
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}

		res := rt.orchestrator.Execute(ctx, sessionID, input)
		if !res.Success {
			fmt.Printf("error: %s\n", res.Error)
			continue
		}
		fmt.Println(res.Response)
	}

	return scanner.Err()
}
