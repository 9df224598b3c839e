package main

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"reconstructd/pkg/types"
)

// reconctl is a small operator CLI against a running reconstructd server.

var (
	serverURL string
	client    = &http.Client{Timeout: 30 * time.Second}
)

func main() {
	root := &cobra.Command{
		Use:           "reconctl",
		Short:         "Operator CLI for a reconstructd server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&serverURL, "server", envDefault("RECONSTRUCTD_URL", "http://localhost:8000"), "Base URL of the reconstructd server")

	root.AddCommand(submitCmd(), statusCmd(), cancelCmd(), resultCmd(), backendsCmd(), serverStatusCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func submitCmd() *cobra.Command {
	var backendID string
	var wait bool
	cmd := &cobra.Command{
		Use:     "submit <image>",
		Short:   "Upload an image and create a reconstruction job",
		Example: "  reconctl submit photo.png --backend esrgan-x4 --wait",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := submit(args[0], backendID)
			if err != nil {
				return err
			}
			fmt.Println(jobID)
			if !wait {
				return nil
			}
			return pollUntilTerminal(jobID)
		},
	}
	cmd.Flags().StringVar(&backendID, "backend", "", "Backend id (server default when omitted)")
	cmd.Flags().BoolVar(&wait, "wait", false, "Poll until the job reaches a terminal state")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show job status and progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var view types.JobView
			if err := getJSON("/api/jobs/"+args[0], &view); err != nil {
				return err
			}
			fmt.Printf("%s  %s  %d%%  %s\n", view.JobID, view.Status, view.Progress, view.Message)
			if view.Error != "" {
				fmt.Println("error:", view.Error)
			}
			return nil
		},
	}
}

func cancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Request cancellation of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := http.NewRequest(http.MethodDelete, serverURL+"/api/jobs/"+args[0], nil)
			if err != nil {
				return err
			}
			resp, err := client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return apiError(resp)
			}
			var out types.CancelResponse
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				return err
			}
			if out.Cancelled {
				fmt.Println("cancellation requested")
			} else {
				fmt.Println("job already finished")
			}
			return nil
		},
	}
}

func resultCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "result <job-id>",
		Short: "Download the reconstructed image of a completed job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Get(serverURL + "/api/jobs/" + args[0] + "/result")
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return apiError(resp)
			}
			dst := output
			if dst == "" {
				dst = args[0] + ".png"
			}
			f, err := os.Create(dst)
			if err != nil {
				return err
			}
			defer f.Close()
			if _, err := io.Copy(f, resp.Body); err != nil {
				return err
			}
			fmt.Println("saved", dst)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default <job-id>.png)")
	return cmd
}

func backendsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List backends known to the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var out types.BackendsResponse
			if err := getJSON("/api/backends", &out); err != nil {
				return err
			}
			for _, b := range out.Backends {
				fmt.Printf("%s  x%d  %s\n", b.ID, b.Scale, b.Path)
			}
			return nil
		},
	}
}

func serverStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "server-status",
		Short: "Show the server's operational snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var out types.StatusResponse
			if err := getJSON("/status", &out); err != nil {
				return err
			}
			fmt.Printf("queue=%d running=%d/%d submitted=%d backend=%s device=%s loads=%d swaps=%d uptime=%ds\n",
				out.QueueLen, out.Running, out.MaxConcurrent, out.SubmittedTotal,
				out.CurrentBackend, out.Device, out.LoadsTotal, out.SwapsTotal, out.UptimeSeconds)
			return nil
		},
	}
}

func submit(path, backendID string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", filepath.Base(path))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, f); err != nil {
			pw.CloseWithError(err)
			return
		}
		if backendID != "" {
			if err := mw.WriteField("backend", backendID); err != nil {
				pw.CloseWithError(err)
				return
			}
		}
		pw.CloseWithError(mw.Close())
	}()

	resp, err := client.Post(serverURL+"/api/jobs", mw.FormDataContentType(), pr)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", apiError(resp)
	}
	var out types.SubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.JobID, nil
}

func pollUntilTerminal(jobID string) error {
	for {
		var view types.JobView
		if err := getJSON("/api/jobs/"+jobID, &view); err != nil {
			return err
		}
		fmt.Printf("\r%s %3d%% %s   ", view.Status, view.Progress, view.Message)
		if view.Status.Terminal() {
			fmt.Println()
			if view.Status != types.JobCompleted {
				return fmt.Errorf("job finished with status %s", view.Status)
			}
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}
}

func getJSON(path string, v any) error {
	resp, err := client.Get(serverURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func apiError(resp *http.Response) error {
	var e types.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&e); err == nil && e.Error != "" {
		return fmt.Errorf("%s (http %d)", e.Error, resp.StatusCode)
	}
	return fmt.Errorf("http %d", resp.StatusCode)
}
