package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// scrapeRequest mirrors the shelfscrape API request model.
type scrapeRequest struct {
	URL            string   `json:"url"`
	Format         string   `json:"format,omitempty"`
	ScrapeAllPages bool     `json:"scrape_all_pages,omitempty"`
	Fields         []string `json:"fields,omitempty"`
	Stealth        bool     `json:"stealth,omitempty"`
}

// scrapeResult mirrors the shelfscrape API result envelope.
type scrapeResult struct {
	Success     bool   `json:"success"`
	Count       int    `json:"count"`
	PageCount   int    `json:"page_count"`
	FailedPages []int  `json:"failed_pages"`
	Data        string `json:"data"`
	Encoding    string `json:"encoding"`
	Filename    string `json:"filename"`
	Error       string `json:"error"`
	ErrorCode   string `json:"error_code"`
}

// jobResponse mirrors POST /api/v1/jobs and GET /api/v1/jobs/:id.
type jobResponse struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Progress struct {
		Current int `json:"current"`
		Total   int `json:"total"`
	} `json:"progress"`
	Result *scrapeResult `json:"result"`
	Error  string        `json:"error"`
}

var fieldNames = []string{"title", "description", "price", "images", "stock_status", "sku", "categories", "url"}

func main() {
	apiURL := os.Getenv("SHELFSCRAPE_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("SHELFSCRAPE_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "SHELFSCRAPE_API_KEY is required")
		os.Exit(1)
	}

	s := server.NewMCPServer(
		"shelfscrape",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	s.AddTool(mcp.NewTool("scrape_products", scrapeToolOptions(
		"Extract product records (title, price, images, SKU, stock, categories, URL) from a shop catalog or product page and return them as CSV or JSON. Set all_pages to follow the listing's pagination.",
	)...), handleScrapeProducts(apiURL, apiKey))

	s.AddTool(mcp.NewTool("scrape_job", scrapeToolOptions(
		"Like scrape_products, but runs as a background job on the server and waits for it. Use it for long paginated listings that may outlast a single request.",
	)...), handleScrapeJob(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func scrapeToolOptions(description string) []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithDescription(description),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The catalog or product page to scrape"),
		),
		mcp.WithString("format",
			mcp.Description("Output format: 'csv' (default) or 'json'"),
			mcp.Enum("csv", "json"),
		),
		mcp.WithBoolean("all_pages",
			mcp.Description("Walk every page of a paginated listing (default: false)"),
		),
		mcp.WithArray("fields",
			mcp.Description("Fields to extract, in column order. Default: all of "+strings.Join(fieldNames, ", ")),
		),
		mcp.WithBoolean("stealth",
			mcp.Description("Enable anti-bot evasions in the browser (default: false)"),
		),
	}
}

func buildRequest(request mcp.CallToolRequest) (*scrapeRequest, error) {
	url, err := request.RequireString("url")
	if err != nil {
		return nil, fmt.Errorf("url is required")
	}
	return &scrapeRequest{
		URL:            url,
		Format:         request.GetString("format", "csv"),
		ScrapeAllPages: request.GetBool("all_pages", false),
		Fields:         request.GetStringSlice("fields", nil),
		Stealth:        request.GetBool("stealth", false),
	}, nil
}

// apiDo sends a request to the shelfscrape API and returns the response body.
func apiDo(ctx context.Context, client *http.Client, method, url, apiKey string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-API-Key", apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

func handleScrapeProducts(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 10 * time.Minute}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		req, err := buildRequest(request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		respBody, err := apiDo(ctx, client, http.MethodPost, apiURL+"/api/v1/scrape", apiKey, req)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var res scrapeResult
		if err := json.Unmarshal(respBody, &res); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}
		return toolResult(&res), nil
	}
}

func handleScrapeJob(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 30 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		req, err := buildRequest(request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		respBody, err := apiDo(ctx, client, http.MethodPost, apiURL+"/api/v1/jobs", apiKey, req)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		var created jobResponse
		if err := json.Unmarshal(respBody, &created); err != nil || created.ID == "" {
			return mcp.NewToolResultError("job creation failed: " + string(respBody)), nil
		}

		job, err := pollJob(ctx, client, apiURL+"/api/v1/jobs/"+created.ID, apiKey)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("polling job %s failed: %v", created.ID, err)), nil
		}
		if job.Result == nil {
			return mcp.NewToolResultError(fmt.Sprintf("job %s ended without a result", job.ID)), nil
		}
		return toolResult(job.Result), nil
	}
}

// pollJob polls until the job leaves the processing state or ctx ends.
func pollJob(ctx context.Context, client *http.Client, url, apiKey string) (*jobResponse, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			body, err := apiDo(ctx, client, http.MethodGet, url, apiKey, nil)
			if err != nil {
				return nil, err
			}
			var job jobResponse
			if err := json.Unmarshal(body, &job); err != nil {
				return nil, fmt.Errorf("parse poll status: %w", err)
			}
			if job.Status != "processing" {
				return &job, nil
			}
		}
	}
}

func toolResult(res *scrapeResult) *mcp.CallToolResult {
	if !res.Success {
		return mcp.NewToolResultError(fmt.Sprintf("[%s] %s", res.ErrorCode, res.Error))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Products: %d across %d page(s)\n", res.Count, res.PageCount)
	if len(res.FailedPages) > 0 {
		fmt.Fprintf(&b, "Pages that failed to load: %v\n", res.FailedPages)
	}
	fmt.Fprintf(&b, "File: %s\n\n", res.Filename)
	b.WriteString(res.Data)
	return mcp.NewToolResultText(b.String())
}
