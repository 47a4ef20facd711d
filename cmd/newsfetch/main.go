package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/briefwire/briefwire/internal/models"
	"github.com/briefwire/briefwire/internal/pipeline"
	"github.com/briefwire/briefwire/internal/report"
	"github.com/briefwire/briefwire/internal/sources"
	"github.com/briefwire/briefwire/internal/summary"
)

var rootCmd = &cobra.Command{
	Use:   "newsfetch",
	Short: "Fetch headlines once and print, save, or report them",
	Long: `newsfetch pulls the latest headlines from a news API endpoint, runs them
through the normalization pipeline, and prints the result. Records can also
be saved as a JSON snapshot reusable as offline fallback data, or rendered
as a markdown report.`,
	RunE:          run,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	viper.SetEnvPrefix("BRIEFWIRE")
	viper.AutomaticEnv()

	rootCmd.Flags().String("url", "https://newsapi.org/v2/top-headlines?country=us", "Headlines endpoint to query")
	rootCmd.Flags().String("api-key", "", "API key, sent as a bearer token")
	rootCmd.Flags().Int("limit", 20, "Maximum number of headlines to keep")
	rootCmd.Flags().String("category", "", "Only keep headlines in this category")
	rootCmd.Flags().String("save", "", "Write fetched records to this JSON snapshot")
	rootCmd.Flags().Bool("append", false, "Merge into an existing snapshot instead of overwriting")
	rootCmd.Flags().String("report", "", "Write a markdown report to this path")
	rootCmd.Flags().Duration("timeout", 30*time.Second, "HTTP timeout")

	viper.BindPFlag("url", rootCmd.Flags().Lookup("url"))
	viper.BindPFlag("api-key", rootCmd.Flags().Lookup("api-key"))
	viper.BindPFlag("limit", rootCmd.Flags().Lookup("limit"))
	viper.BindPFlag("category", rootCmd.Flags().Lookup("category"))
	viper.BindPFlag("save", rootCmd.Flags().Lookup("save"))
	viper.BindPFlag("append", rootCmd.Flags().Lookup("append"))
	viper.BindPFlag("report", rootCmd.Flags().Lookup("report"))
	viper.BindPFlag("timeout", rootCmd.Flags().Lookup("timeout"))
	viper.BindEnv("api-key", "NEWS_API_KEY")
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), viper.GetDuration("timeout"))
	defer cancel()

	data, err := fetch(ctx, viper.GetString("url"), viper.GetString("api-key"))
	if err != nil {
		return err
	}

	raws, err := sources.DecodePayload(data)
	if err != nil {
		return fmt.Errorf("unexpected response shape: %w", err)
	}

	articles := pipeline.SortByDate(pipeline.Dedupe(pipeline.NormalizeAll(raws)), models.SortNewest)
	articles = pipeline.FilterByCategory(articles, viper.GetString("category"))
	if limit := viper.GetInt("limit"); limit > 0 && len(articles) > limit {
		articles = articles[:limit]
	}

	printHeadlines(articles)

	if save := viper.GetString("save"); save != "" {
		if err := report.SaveJSON(save, raws, viper.GetBool("append")); err != nil {
			return err
		}
		fmt.Printf("Saved %d records to %s\n", len(raws), save)
	}
	if path := viper.GetString("report"); path != "" {
		if err := report.WriteMarkdown(path, articles, time.Now()); err != nil {
			return err
		}
		fmt.Printf("Report written to %s\n", path)
	}
	return nil
}

// fetch tries bearer auth first and falls back to the apiKey query parameter;
// hosted newsapi deployments accept only one or the other.
func fetch(ctx context.Context, endpoint, apiKey string) ([]byte, error) {
	data, status, err := get(ctx, endpoint, apiKey, false)
	if err != nil {
		return nil, err
	}

	if (status == http.StatusUnauthorized || status == http.StatusForbidden) && apiKey != "" {
		data, status, err = get(ctx, endpoint, apiKey, true)
		if err != nil {
			return nil, err
		}
	}

	switch status {
	case http.StatusOK:
		return data, nil
	case http.StatusTooManyRequests:
		return nil, &models.StatusError{Code: status, Message: "rate limit exceeded"}
	case http.StatusPaymentRequired:
		return nil, &models.StatusError{Code: status, Message: "plan upgrade required"}
	default:
		return nil, fmt.Errorf("headlines endpoint returned status %d", status)
	}
}

func get(ctx context.Context, endpoint, apiKey string, keyInQuery bool) ([]byte, int, error) {
	if keyInQuery && apiKey != "" {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint += sep + "apiKey=" + url.QueryEscape(apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, 0, err
	}
	if !keyInQuery && apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return data, resp.StatusCode, nil
}

func printHeadlines(articles []models.Article) {
	if len(articles) == 0 {
		fmt.Println("No headlines found")
		return
	}

	fmt.Printf("Found %d headlines:\n\n", len(articles))
	for i, article := range articles {
		fmt.Printf("%d. %s\n", i+1, article.Title)
		if source := article.Source.DisplayName(); source != "" {
			fmt.Printf("   Source: %s | Category: %s\n", source, article.Category)
		} else {
			fmt.Printf("   Category: %s\n", article.Category)
		}
		if article.PublishedAt != "" {
			fmt.Printf("   Published: %s\n", article.PublishedAt)
		}
		if snippet := summary.Snippet(article.Summary, 160); snippet != "" {
			fmt.Printf("   %s\n", snippet)
		}
		fmt.Println()
	}
}
