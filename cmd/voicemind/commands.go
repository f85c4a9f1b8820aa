package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/voicemind/voicemind/internal/answer"
)

// --- meetings ---

var meetingsCmd = &cobra.Command{
	Use:   "meetings",
	Short: "Manage meeting sessions",
}

var meetingsStartCmd = &cobra.Command{
	Use:   "start <meeting-id>",
	Short: "Start a new meeting session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		language, _ := cmd.Flags().GetString("language")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]any{"meeting_id": args[0]}
		if title != "" {
			req["title"] = title
		}
		if language != "" {
			req["language"] = language
		}

		resp, err := client.post(cmd.Context(), "/api/meetings", req)
		if err != nil {
			return err
		}
		var result map[string]any
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Started meeting %s", result["meeting_id"])
		return nil
	},
}

var meetingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List meetings, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/api/meetings")
		if err != nil {
			return err
		}
		var result struct {
			Meetings []struct {
				MeetingID   string `json:"meeting_id"`
				Title       string `json:"title"`
				Status      string `json:"status"`
				TotalChunks int    `json:"total_chunks"`
				StartTime   string `json:"start_time"`
			} `json:"meetings"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if len(result.Meetings) == 0 {
			fmt.Fprintln(os.Stdout, "No meetings recorded.")
			return nil
		}
		for _, m := range result.Meetings {
			title := m.Title
			if title == "" {
				title = "(untitled)"
			}
			fmt.Fprintf(os.Stdout, "%-24s %-12s %4d chunks  %s  %s\n",
				m.MeetingID, m.Status, m.TotalChunks, m.StartTime, title)
		}
		return nil
	},
}

var meetingsEndCmd = &cobra.Command{
	Use:   "end <meeting-id>",
	Short: "End a meeting and generate its summary and agenda",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		printStep("Finalizing meeting %s...", args[0])
		resp, err := client.post(cmd.Context(), "/api/meetings/"+args[0]+"/end", nil)
		if err != nil {
			return err
		}
		var result struct {
			TotalChunks      int    `json:"total_chunks"`
			TranscriptLength int    `json:"transcript_length"`
			Summary          string `json:"summary"`
			Agenda           string `json:"agenda"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Meeting completed (%d chunks, %d transcript chars)", result.TotalChunks, result.TranscriptLength)
		fmt.Fprintf(os.Stdout, "\n%s\n%s\n\n%s\n%s\n",
			colorize(colorBold, "Summary"), result.Summary,
			colorize(colorBold, "Agenda"), result.Agenda)
		return nil
	},
}

var meetingsAttachCmd = &cobra.Command{
	Use:   "attach <meeting-id> <file>",
	Short: "Attach a briefing document (text or PDF) to a meeting",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		if title == "" {
			title = filepath.Base(args[1])
		}

		data, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("reading file: %w", err)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/api/meetings/"+args[0]+"/documents", map[string]any{
			"title":          title,
			"content_base64": base64.StdEncoding.EncodeToString(data),
		})
		if err != nil {
			return err
		}
		var result map[string]any
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Attached document %s", result["document_id"])
		return nil
	},
}

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <meeting-id> [question...]",
	Short: "Ask a question about a completed meeting",
	Long: `Ask a question about a completed meeting.

Examples:
  voicemind ask standup-2025-09-01 "What did we decide about the rollout?"
  voicemind ask standup-2025-09-01 --action-items`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		actionItems, _ := cmd.Flags().GetBool("action-items")

		question := strings.Join(args[1:], " ")
		if actionItems {
			question = answer.ActionItemsQuestion
		}
		if question == "" {
			return fmt.Errorf("a question (or --action-items) is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/api/meetings/"+args[0]+"/questions", map[string]any{
			"question": question,
		})
		if err != nil {
			return err
		}
		var result struct {
			Answer         string `json:"answer"`
			ModelUsed      string `json:"model_used"`
			ResponseTimeMS int64  `json:"response_time_ms"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Fprintln(os.Stdout, result.Answer)
		printStatus("Model", "%s (%dms)", result.ModelUsed, result.ResponseTimeMS)
		return nil
	},
}

// --- transcript ---

var transcriptCmd = &cobra.Command{
	Use:   "transcript <meeting-id>",
	Short: "Print a meeting transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		segments, _ := cmd.Flags().GetBool("segments")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/api/meetings/"+args[0]+"/transcript")
		if err != nil {
			return err
		}
		var result struct {
			Status         string `json:"status"`
			FullTranscript string `json:"full_transcript"`
			Segments       []struct {
				ChunkNumber int    `json:"chunk_number"`
				Text        string `json:"text"`
			} `json:"segments"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if segments || result.FullTranscript == "" {
			if len(result.Segments) == 0 {
				printWarning("No audio recorded yet (status: %s)", result.Status)
				return nil
			}
			for _, s := range result.Segments {
				text := s.Text
				if text == "" {
					text = "(transcription pending)"
				}
				fmt.Fprintf(os.Stdout, "%4d  %s\n", s.ChunkNumber, text)
			}
			return nil
		}

		fmt.Fprintln(os.Stdout, result.FullTranscript)
		return nil
	},
}

func init() {
	meetingsStartCmd.Flags().String("title", "", "meeting title")
	meetingsStartCmd.Flags().String("language", "", `spoken language hint (ISO code, default "auto")`)
	meetingsAttachCmd.Flags().String("title", "", "document title (defaults to the file name)")
	askCmd.Flags().Bool("action-items", false, "extract action items instead of asking a free-form question")
	transcriptCmd.Flags().Bool("segments", false, "print per-chunk segments instead of the stitched transcript")

	meetingsCmd.AddCommand(meetingsStartCmd, meetingsListCmd, meetingsEndCmd, meetingsAttachCmd)
	rootCmd.AddCommand(meetingsCmd, askCmd, transcriptCmd)
}
