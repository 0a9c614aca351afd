package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/questsync/internal/services"
	"github.com/desertthunder/questsync/internal/shared"
)

// client returns the API client, rebuilt when --url points elsewhere.
func (r *Runner) client(cmd *cli.Command) *services.APIService {
	if cmd.IsSet("url") {
		return services.NewAPIService(cmd.String("url"), r.httpClient)
	}
	return r.api
}

// printResponse writes JSON bodies through writeJSON and anything else verbatim.
func (r *Runner) printResponse(resp *services.APIResponse, pretty bool) error {
	if !resp.OK() {
		return fmt.Errorf("%w: status %d: %s", shared.ErrAPIRequest, resp.StatusCode, resp.Detail())
	}
	if resp.IsJSON {
		return r.writeJSON(resp.JSONData, pretty)
	}
	_, err := fmt.Fprintln(r.output, string(resp.Body))
	return err
}

// APIGet makes a GET request against a running server.
func (r *Runner) APIGet(ctx context.Context, cmd *cli.Command) error {
	path, err := requireArg(cmd, "path")
	if err != nil {
		return err
	}

	r.logger.Debug("GET request", "path", path)
	resp, err := r.client(cmd).Get(ctx, path)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	return r.printResponse(resp, !cmd.Bool("json"))
}

// APIPost sends --data as a JSON body.
func (r *Runner) APIPost(ctx context.Context, cmd *cli.Command) error {
	path, err := requireArg(cmd, "path")
	if err != nil {
		return err
	}

	data := cmd.String("data")
	if data == "" {
		data = "{}"
	}
	if !json.Valid([]byte(data)) {
		return fmt.Errorf("%w: data is not valid JSON", shared.ErrInvalidFlag)
	}

	r.logger.Debug("POST request", "path", path)
	resp, err := r.client(cmd).Post(ctx, path, []byte(data))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	return r.printResponse(resp, true)
}
