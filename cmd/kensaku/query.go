package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperjump/kensaku/internal/cli"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/retrieval"
)

var (
	flagQueryCategory string
	flagQueryOutput   string
	flagQueryServer   string
	flagQueryTimeout  time.Duration
)

var queryCmd = &cobra.Command{
	Use:   "query <text...>",
	Short: "Retrieve cited context for a question",
	Long: `Retrieve cited context for a question.

The query is all remaining arguments joined by spaces, so quoting is optional.
With --server the running server answers; otherwise the collection is opened directly.`,
	Example: `  kensaku query What was the revenue in Q3?
  kensaku query --category external "pricing page"
  kensaku query --output json --server http://localhost:8080 onboarding checklist`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVar(&flagQueryCategory, "category", "", "restrict to internal or external sources")
	queryCmd.Flags().StringVar(&flagQueryOutput, "output", "text", "output format: text or json")
	queryCmd.Flags().StringVar(&flagQueryServer, "server", "", "server URL (empty = open the collection directly)")
	queryCmd.Flags().DurationVar(&flagQueryTimeout, "timeout", 0, "query timeout (0 = configured default)")
	rootCmd.AddCommand(queryCmd)
}

// buildQuery joins positional args with spaces so multi-word queries work with or without quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func runQuery(cmd *cobra.Command, args []string) error {
	text := buildQuery(args)
	if text == "" {
		return errors.New("query is required")
	}
	category, err := models.ParseCategory(flagQueryCategory)
	if err != nil {
		return err
	}
	format, err := cli.ParseOutputFormat(flagQueryOutput)
	if err != nil {
		return err
	}
	req := &models.QueryRequest{Query: text, Category: category, TimeoutMS: int(flagQueryTimeout.Milliseconds())}
	ctx := cmd.Context()

	var resp *models.QueryResponse
	if flagQueryServer != "" {
		resp, err = cli.NewClient(flagQueryServer).Query(ctx, req)
	} else {
		resp, err = queryDirect(ctx, req)
	}
	if err != nil {
		return err
	}
	return cli.WriteQueryResponse(os.Stdout, resp, format)
}

func queryDirect(ctx context.Context, req *models.QueryRequest) (*models.QueryResponse, error) {
	cfg, logger, err := setup()
	if err != nil {
		return nil, err
	}
	defer logger.Sync()
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer components.Close()

	if req.TimeoutMS > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.TimeoutMS)*time.Millisecond)
		defer cancel()
	}
	start := time.Now()
	res, err := components.Pipeline.Query(ctx, req.Query, req.Category)
	return toResponse(req.Query, res, err, time.Since(start))
}

// toResponse maps a pipeline result to the wire response. The no-documents signal is a
// response status, not an error.
func toResponse(query string, res *models.RetrievalResult, err error, took time.Duration) (*models.QueryResponse, error) {
	resp := &models.QueryResponse{Status: models.QueryStatusOK, Query: query, QueryTime: took.Milliseconds()}
	switch {
	case err == nil:
		resp.Context, resp.Sources, resp.Passages = res.Context, res.Sources, res.Passages
		return resp, nil
	case errors.Is(err, retrieval.ErrNoDocumentsIndexed):
		resp.Status = models.QueryStatusNoDocuments
		return resp, nil
	default:
		return nil, fmt.Errorf("query failed: %w", err)
	}
}
