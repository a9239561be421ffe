package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/doubtsolver/doubtd/internal/config"
	"github.com/doubtsolver/doubtd/internal/history"
	"github.com/doubtsolver/doubtd/internal/storage"
)

func historyCache() (*history.Cache, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return history.NewCache(history.NewFileKV(cfg.Storage.DataDir)), nil
}

func entryFromQuestion(q storage.Question) history.Entry {
	e := history.Entry{
		ID:        q.ID,
		Question:  q.Text,
		CreatedAt: q.CreatedAt.Format(time.RFC3339Nano),
	}
	if a, ok := q.Outcome.Answer(); ok {
		e.Answer = a
	}
	if errText, ok := q.Outcome.Err(); ok {
		e.Error = errText
	}
	return e
}

func printQuestion(q storage.Question) {
	fmt.Printf("%s %s\n", colorize(colorBold, fmt.Sprintf("#%d", q.ID)), q.Text)
	if a, ok := q.Outcome.Answer(); ok {
		fmt.Printf("\n%s\n", a)
		return
	}
	if errText, ok := q.Outcome.Err(); ok {
		printError("%s", errText)
		return
	}
	fmt.Println(colorize(colorYellow, "(pending)"))
}

// resolveLocally records the server's resolution in the local history file.
// History is best effort; a write failure never fails the command.
func resolveLocally(q storage.Question) {
	cache, err := historyCache()
	if err != nil {
		return
	}
	cache.Add(entryFromQuestion(q))
}

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question and print the generated answer",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")
		userID, _ := cmd.Flags().GetInt64("user")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]any{"question": question}
		if cmd.Flags().Changed("user") {
			req["userId"] = userID
		}

		resp, err := client.post(cmd.Context(), "/api/questions", req)
		if err != nil {
			return err
		}

		q, err := decodeRecord(resp)
		if err != nil {
			return err
		}

		resolveLocally(q)
		printQuestion(q)
		return nil
	},
}

// --- regenerate ---

var regenerateCmd = &cobra.Command{
	Use:   "regenerate <id>",
	Short: "Generate a fresh answer for an existing question",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid question id %q", args[0])
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), fmt.Sprintf("/api/questions/%d/regenerate", id), nil)
		if err != nil {
			return err
		}

		q, err := decodeRecord(resp)
		if err != nil {
			return err
		}

		resolveLocally(q)
		printQuestion(q)
		return nil
	},
}

// --- show ---

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a stored question and its answer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid question id %q", args[0])
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/api/questions/%d", id))
		if err != nil {
			return err
		}

		var q storage.Question
		if err := decodeJSON(resp, &q); err != nil {
			return err
		}

		printQuestion(q)
		return nil
	},
}

// --- list ---

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List asked questions",
	Long: `List asked questions.

Without flags the local history file is shown. With --user the server is
queried for that user's stored questions instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("user") {
			userID, _ := cmd.Flags().GetInt64("user")
			return listServerQuestions(cmd, userID)
		}

		cache, err := historyCache()
		if err != nil {
			return err
		}

		entries := cache.Load()
		if len(entries) == 0 {
			fmt.Println("No questions in history.")
			return nil
		}

		for _, e := range entries {
			printHistoryLine(e.ID, e.CreatedAt, e.Question, e.Answer, e.Error)
		}
		return nil
	},
}

func listServerQuestions(cmd *cobra.Command, userID int64) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}

	resp, err := client.get(cmd.Context(), fmt.Sprintf("/api/users/%d/questions", userID))
	if err != nil {
		return err
	}

	var questions []storage.Question
	if err := decodeJSON(resp, &questions); err != nil {
		return err
	}

	if len(questions) == 0 {
		fmt.Println("No questions found.")
		return nil
	}

	for _, q := range questions {
		answerText, _ := q.Outcome.Answer()
		errText, _ := q.Outcome.Err()
		printHistoryLine(q.ID, q.CreatedAt.Format(time.RFC3339), q.Text, answerText, errText)
	}
	return nil
}

func printHistoryLine(id int64, createdAt, question, answerText, errText string) {
	if len(question) > 60 {
		question = question[:60] + "..."
	}
	marker := colorize(colorGreen, "answered")
	if errText != "" {
		marker = colorize(colorRed, "failed")
	} else if answerText == "" {
		marker = colorize(colorYellow, "pending")
	}
	fmt.Printf("%s  %s  %s  %s\n", colorize(colorCyan, fmt.Sprintf("#%d", id)), createdAt, marker, question)
}

// --- delete ---

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a stored question",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid question id %q", args[0])
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), fmt.Sprintf("/api/questions/%d", id))
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		// Drop it from local history too, if present.
		if cache, cacheErr := historyCache(); cacheErr == nil {
			entries := cache.Load()
			kept := entries[:0]
			for _, e := range entries {
				if e.ID != id {
					kept = append(kept, e)
				}
			}
			cache.Save(kept)
		}

		printSuccess("%s", result["message"])
		return nil
	},
}

// --- clear ---

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the local question history",
	Long: `Clear the local question history.

With --user the server-side questions for that user are deleted as well.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("user") {
			userID, _ := cmd.Flags().GetInt64("user")

			client, err := newAPIClient()
			if err != nil {
				return err
			}

			resp, err := client.delete(cmd.Context(), fmt.Sprintf("/api/users/%d/questions", userID))
			if err != nil {
				return err
			}

			var result map[string]string
			if err := decodeJSON(resp, &result); err != nil {
				return err
			}
			printSuccess("%s", result["message"])
		}

		cache, err := historyCache()
		if err != nil {
			return err
		}
		cache.Clear()
		printSuccess("Local history cleared")
		return nil
	},
}

func init() {
	askCmd.Flags().Int64("user", 0, "owner id to file the question under")
	listCmd.Flags().Int64("user", 0, "list server-side questions for this user id")
	clearCmd.Flags().Int64("user", 0, "also delete server-side questions for this user id")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value.\n\nValid keys:\n  " + strings.Join(config.ValidKeys(), "\n  "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
