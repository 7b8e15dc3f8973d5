package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/khetumewada/WebChat/internal/api"
)

// AddUser creates a user through the admin API of a running relay.
func AddUser(ctx context.Context, adminAddr string, req api.AddUserRequest, out io.Writer) error {
	reqBody, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("http://%s/admin/users", adminAddr)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to call admin API: %w. Is the server running?", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var result api.AddUserResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode response (Status: %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK || !result.Success {
		return fmt.Errorf("failed to add user (Status: %d): %s", resp.StatusCode, result.Message)
	}

	_, _ = fmt.Fprintf(out, "\nUser Created Successfully!\n")
	_, _ = fmt.Fprintf(out, "ID:                %s\n", result.ID)
	_, _ = fmt.Fprintf(out, "Username:          %s\n\n", result.Username)
	return nil
}
