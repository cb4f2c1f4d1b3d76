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
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	grantServer string
	grantActor  string
	grantDeny   bool
	grantYes    bool
)

var grantCmd = &cobra.Command{
	Use:   "grant <action-kind>",
	Short: "Grant or revoke approval for an action kind on a running daemon",
	Args:  cobra.ExactArgs(1),
	RunE:  runGrant,
}

func init() {
	grantCmd.Flags().StringVar(&grantServer, "server", "http://127.0.0.1:8791", "base URL of the running daemon")
	grantCmd.Flags().StringVar(&grantActor, "actor", "", "actor recorded in the audit trail (default $USER)")
	grantCmd.Flags().BoolVar(&grantDeny, "deny", false, "revoke instead of grant")
	grantCmd.Flags().BoolVar(&grantYes, "yes", false, "skip the interactive confirmation")
}

func runGrant(_ *cobra.Command, args []string) error {
	kind := strings.TrimSpace(args[0])
	approved := !grantDeny

	actor := strings.TrimSpace(grantActor)
	if actor == "" {
		actor = strings.TrimSpace(os.Getenv("USER"))
	}
	if actor == "" {
		actor = "cli"
	}

	if !grantYes {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return fmt.Errorf("refusing to change permissions without confirmation (use --yes)")
		}
		verb := "Grant"
		if !approved {
			verb = "Revoke"
		}
		fmt.Printf("%s approval for %q as %q? [y/N] ", verb, kind, actor)
		line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
		default:
			fmt.Println("aborted")
			return nil
		}
	}

	body, _ := json.Marshal(map[string]any{
		"kind":     kind,
		"approved": approved,
		"actor":    actor,
	})
	url := strings.TrimRight(grantServer, "/") + "/api/admin/approvals"

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("contact daemon: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("daemon returned %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}

	fmt.Printf("%s: approved=%v\n", kind, approved)
	return nil
}
