package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/albumdrop/internal/shared"
	"github.com/urfave/cli/v3"
)

// Status checks the upload server's health endpoint.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	if r.api == nil {
		return fmt.Errorf("%w: API service not initialized", shared.ErrServiceUnavailable)
	}

	resp, err := r.api.Health(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		if obj := resp.Object(); obj != nil {
			return r.writeJSON(obj, true)
		}
		return r.writeJSON(map[string]any{"status_code": resp.StatusCode, "body": string(resp.Body)}, true)
	}

	r.writePlainHeader("Upload Server")
	r.writePlain("URL: %s\n", r.config.Server.BaseURL)
	r.writePlain("Status: %d\n", resp.StatusCode)
	if obj := resp.Object(); obj != nil {
		for _, key := range []string{"status", "received"} {
			if v, ok := obj[key]; ok {
				r.writePlain("%s: %v\n", key, v)
			}
		}
	}

	if !resp.OK() {
		return fmt.Errorf("%w: health check returned %d", shared.ErrAPIRequest, resp.StatusCode)
	}
	return nil
}
