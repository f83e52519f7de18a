package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/luigisaetta/oraculum/pkg/models"
)

func newAskCmd() *cobra.Command {
	var serverURL string
	var convID string

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask the assistant a question (interactive without arguments)",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if convID == "" {
				convID = uuid.NewString()
			}

			if len(args) > 0 {
				return ask(serverURL, convID, strings.Join(args, " "))
			}

			// No question given: start a small REPL that keeps the
			// conversation id stable across turns.
			prompt := color.New(color.FgCyan, color.Bold)
			scanner := bufio.NewScanner(os.Stdin)
			for {
				prompt.Print("you> ")
				if !scanner.Scan() {
					fmt.Println()
					return scanner.Err()
				}
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				if line == "exit" || line == "quit" {
					return nil
				}
				if err := ask(serverURL, convID, line); err != nil {
					color.New(color.FgRed).Fprintf(os.Stderr, "error: %v\n", err)
				}
			}
		},
	}

	cmd.Flags().StringVarP(&serverURL, "server", "s", "http://localhost:8080", "oraculum server URL")
	cmd.Flags().StringVar(&convID, "conv", "", "conversation id (defaults to a fresh one)")
	return cmd
}

// ask sends one request and prints the response chunks as they arrive.
func ask(serverURL, convID, question string) error {
	body, err := json.Marshal(models.UserRequest{ConvID: convID, RequestText: question})
	if err != nil {
		return err
	}

	resp, err := http.Post(serverURL+"/streaming_chat", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("contact server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if label := resp.Header.Get("X-Classification"); label != "" {
		color.New(color.FgYellow).Printf("[%s]\n", label)
	}

	buf := make([]byte, 512)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			os.Stdout.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read stream: %w", err)
		}
	}
	fmt.Println()
	return nil
}
