// Blockmate is a command-line client for the blockmated HTTP API.
//
// It talks to a running blockmated server and is meant for local testing
// and manual administration: registering users, setting goals, validating
// requests, and inspecting stored users.
//
// Usage:
//
//	blockmate register --id 42 --name Alice
//	blockmate goals --id 42 --goal "finish thesis" --forbid "social media"
//	blockmate validate --id 42 --text "I want to open YouTube" --minutes 15
//	blockmate user --id 42
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	serverURL string

	rootCmd = &cobra.Command{
		Use:   "blockmate",
		Short: "Client for the blockmated usage-validation server",
		Long: `Blockmate is a command-line client for blockmated.

It registers users, configures their goals and usage rules, submits
app-usage requests for validation, and inspects stored user profiles.`,
	}
)

func main() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8000", "blockmated server URL")

	rootCmd.AddCommand(registerCmd())
	rootCmd.AddCommand(goalsCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(healthCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func registerCmd() *cobra.Command {
	var (
		telegramID int64
		name       string
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{
				"telegram_id": telegramID,
				"username":    name,
			}
			var resp struct {
				Message string `json:"message"`
			}
			if err := postJSON("/register_user", body, &resp); err != nil {
				return err
			}
			fmt.Println(resp.Message)
			return nil
		},
	}

	cmd.Flags().Int64Var(&telegramID, "id", 0, "telegram user ID")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func goalsCmd() *cobra.Command {
	var (
		telegramID int64
		goals      []string
		allowed    []string
		forbidden  []string
	)

	cmd := &cobra.Command{
		Use:   "goals",
		Short: "Set a user's goals and usage rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{
				"telegram_id":        telegramID,
				"goals":              goals,
				"allowed_usecases":   allowed,
				"forbidden_usecases": forbidden,
			}
			var resp struct {
				Message string `json:"message"`
			}
			if err := postJSON("/set_goals", body, &resp); err != nil {
				return err
			}
			fmt.Println(resp.Message)
			return nil
		},
	}

	cmd.Flags().Int64Var(&telegramID, "id", 0, "telegram user ID")
	cmd.Flags().StringArrayVar(&goals, "goal", nil, "goal (repeatable)")
	cmd.Flags().StringArrayVar(&allowed, "allow", nil, "allowed usecase (repeatable)")
	cmd.Flags().StringArrayVar(&forbidden, "forbid", nil, "forbidden usecase (repeatable)")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func validateCmd() *cobra.Command {
	var (
		telegramID int64
		text       string
		minutes    int
		chatID     int64
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate an app-usage request",
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{
				"telegram_id":  telegramID,
				"request_text": text,
			}
			if cmd.Flags().Changed("minutes") {
				body["duration_minutes"] = minutes
			}
			if cmd.Flags().Changed("chat") {
				body["chat_id"] = chatID
			}
			var resp struct {
				Decision     string `json:"decision"`
				Message      string `json:"message"`
				Alternative  string `json:"alternative,omitempty"`
				ReminderTime *int   `json:"reminder_time,omitempty"`
			}
			if err := postJSON("/validate", body, &resp); err != nil {
				return err
			}
			fmt.Printf("Decision: %s\n", resp.Decision)
			fmt.Printf("Message:  %s\n", resp.Message)
			if resp.Alternative != "" {
				fmt.Printf("Instead:  %s\n", resp.Alternative)
			}
			if resp.ReminderTime != nil {
				fmt.Printf("Reminder in %d minutes\n", *resp.ReminderTime)
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&telegramID, "id", 0, "telegram user ID")
	cmd.Flags().StringVar(&text, "text", "", "request text, e.g. \"I want to open YouTube\"")
	cmd.Flags().IntVar(&minutes, "minutes", 0, "requested duration in minutes")
	cmd.Flags().Int64Var(&chatID, "chat", 0, "chat ID for the reminder (defaults to telegram ID)")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}

func userCmd() *cobra.Command {
	var telegramID int64

	cmd := &cobra.Command{
		Use:   "user",
		Short: "Show a stored user profile with history",
		RunE: func(cmd *cobra.Command, args []string) error {
			var doc json.RawMessage
			if err := getJSON(fmt.Sprintf("/user/%d", telegramID), &doc); err != nil {
				return err
			}
			var pretty bytes.Buffer
			if err := json.Indent(&pretty, doc, "", "  "); err != nil {
				return err
			}
			fmt.Println(pretty.String())
			return nil
		},
	}

	cmd.Flags().Int64Var(&telegramID, "id", 0, "telegram user ID")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Status string `json:"status"`
			}
			if err := getJSON("/health", &resp); err != nil {
				return err
			}
			fmt.Printf("Server is %s\n", resp.Status)
			return nil
		},
	}
}

var httpClient = &http.Client{Timeout: 30 * time.Second}

func postJSON(path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := httpClient.Post(serverURL+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func getJSON(path string, out any) error {
	resp, err := httpClient.Get(serverURL + path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(data))
	}
	return json.Unmarshal(data, out)
}
