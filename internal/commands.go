package internal

import (
	"context"
	"log/slog"

	"github.com/starford/bharathvani/internal/mcpserver"
	"github.com/starford/bharathvani/internal/stats"
)

// RunMCP serves the read-only MCP tools on stdin/stdout until the client
// disconnects. Logs must not reach stdout, so supply WithLogger.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	comps, err := newComponents(ctx, app.config, app.logger)
	if err != nil {
		return err
	}
	defer comps.Close()

	srv := mcpserver.New(comps.entries(app.config, app.logger), comps.lookup)
	app.logger.Info("MCP server starting on stdio")
	return srv.ServeStdio()
}

// AddUser registers a credential without starting the server.
func AddUser(ctx context.Context, username, secret string, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	comps, err := newComponents(ctx, app.config, app.logger)
	if err != nil {
		return err
	}
	defer comps.Close()

	if err := comps.creds.Register(ctx, username, secret); err != nil {
		return err
	}
	app.logger.Info("user registered", slog.String("username", username))
	return nil
}

// CorpusStats computes the statistics report of the configured corpus.
func CorpusStats(ctx context.Context, opts ...Option) (*stats.Report, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}
	comps, err := newComponents(ctx, app.config, app.logger)
	if err != nil {
		return nil, err
	}
	defer comps.Close()

	return comps.entries(app.config, app.logger).Stats(ctx)
}
