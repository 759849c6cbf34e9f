package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/yourusername/sc-fetch-go/internal/domain"
)

var (
	serverURL string
	rootCmd   = &cobra.Command{
		Use:   "sc-fetch",
		Short: "sc-fetch CLI - fetch SoundCloud tracks and playlists as MP3",
		Long:  `A command-line client for the sc-fetch server: submit fetch jobs, inspect them and follow their progress.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")

	addCmd.Flags().String("quality", "", "Audio quality (0 best .. 10 worst)")
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(watchCmd)
}

var addCmd = &cobra.Command{
	Use:   "add [url]",
	Short: "Submit a fetch job",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		quality, _ := cmd.Flags().GetString("quality")

		payload := map[string]string{"url": args[0]}
		if quality != "" {
			payload["quality"] = quality
		}

		data, _ := json.Marshal(payload)
		resp, err := http.Post(serverURL+"/api/v1/jobs", "application/json", bytes.NewBuffer(data))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusAccepted {
			fmt.Fprintf(os.Stderr, "Error: %s\n", string(body))
			os.Exit(1)
		}

		var job domain.Job
		json.Unmarshal(body, &job)
		fmt.Printf("Job submitted!\n")
		fmt.Printf("ID: %s\n", job.ID)
		fmt.Printf("Kind: %s\n", job.Kind)
	},
}

var getCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Show a job",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		resp, err := http.Get(serverURL + "/api/v1/jobs/" + args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			fmt.Fprintf(os.Stderr, "Error: %s\n", string(body))
			os.Exit(1)
		}

		var job domain.Job
		json.Unmarshal(body, &job)
		fmt.Printf("ID:       %s\n", job.ID)
		fmt.Printf("URL:      %s\n", job.URL)
		fmt.Printf("Kind:     %s\n", job.Kind)
		fmt.Printf("Stage:    %s\n", job.Stage)
		fmt.Printf("Progress: %.1f%%\n", job.Progress)
		if job.ErrorMessage != "" {
			fmt.Printf("Error:    %s\n", job.ErrorMessage)
		}
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs",
	Run: func(cmd *cobra.Command, args []string) {
		resp, err := http.Get(serverURL + "/api/v1/jobs")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		var jobs []domain.Job
		json.Unmarshal(body, &jobs)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tURL\tKIND\tSTAGE\tPROGRESS")
		for _, j := range jobs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.1f%%\n",
				truncate(j.ID, 8),
				truncate(j.URL, 48),
				j.Kind,
				j.Stage,
				j.Progress)
		}
		w.Flush()
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show job statistics",
	Run: func(cmd *cobra.Command, args []string) {
		resp, err := http.Get(serverURL + "/api/v1/jobs/stats")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		var stats domain.JobStats
		body, _ := io.ReadAll(resp.Body)
		json.Unmarshal(body, &stats)

		fmt.Printf("Total:     %d\n", stats.Total)
		fmt.Printf("Active:    %d\n", stats.Active)
		fmt.Printf("Completed: %d\n", stats.Completed)
		fmt.Printf("Failed:    %d\n", stats.Failed)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch [id]",
	Short: "Follow a job's live progress",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		wsURL, err := progressURL(serverURL, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer conn.Close()

		for {
			var event domain.ProgressEvent
			if err := conn.ReadJSON(&event); err != nil {
				return
			}

			line := fmt.Sprintf("[%s] %5.1f%%", event.Stage, event.Progress)
			if event.TotalTracks > 0 {
				line += fmt.Sprintf(" (%d/%d)", event.CompletedTracks, event.TotalTracks)
			}
			if event.Message != "" {
				line += " " + event.Message
			}
			fmt.Println(line)

			if event.Stage == domain.StageComplete || event.Stage == domain.StageError {
				return
			}
		}
	},
}

// progressURL converts the HTTP server URL into the job's WebSocket endpoint
func progressURL(server, jobID string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/api/v1/jobs/" + jobID + "/events"
	return u.String(), nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return strings.TrimSpace(s[:max-3]) + "..."
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
