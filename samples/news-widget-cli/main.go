package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	nw "github.com/meinside/news-widget-go"
)

const (
	noDek = "<<< no dek >>>"
)

var (
	settingsFilepath string
	redisURL         string
	dbFilepath       string
	layout           string
	newTab           bool
	verbose          bool

	query = nw.DefaultFeedQuery()
)

var rootCmd = &cobra.Command{
	Use:           "news-widget-cli",
	Short:         "Fetch news feeds, rewrite their deks, and print them",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var itemsCmd = &cobra.Command{
	Use:   "items",
	Short: "Print enriched items of a news feed",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()

		items := client.Items(cmd.Context(), query)
		for _, item := range items {
			dek := item.Dek
			if dek == "" {
				dek = noDek
			}

			fmt.Printf(`
>>> Title: %[1]s
>>> Source: %[2]s (%[3]s)
>>> Link: %[4]s

%[5]s

----
`,
				item.Title,
				item.SourceLabel,
				item.TimeAgo,
				item.Link,
				dek,
			)
		}

		log.Printf(">>> fetched %d item(s) from: %s", len(items), client.FeedURL(query))

		return nil
	},
}

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Print an HTML widget of a news feed",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()

		fmt.Println(client.Render(cmd.Context(), query, nw.RenderOptions{
			Layout:       nw.ParseLayout(layout),
			OpenInNewTab: newTab,
		}))

		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&settingsFilepath, "config", "c", "", "settings file (.json or .yaml)")
	flags.StringVar(&redisURL, "redis", "", "redis url for caching (eg. redis://localhost:6379/0)")
	flags.StringVar(&dbFilepath, "db", "", "sqlite db filepath for caching")
	flags.BoolVarP(&verbose, "verbose", "v", false, "print verbose messages")

	flags.StringVarP(&query.SearchTerms, "query", "q", query.SearchTerms, "search terms")
	flags.StringVar(&query.Language, "hl", query.Language, "language")
	flags.StringVar(&query.Region, "gl", query.Region, "region")
	flags.StringVar(&query.Edition, "ceid", query.Edition, "edition")
	flags.IntVarP(&query.ItemLimit, "limit", "n", query.ItemLimit, "number of items")
	flags.Float64Var(&query.CacheTTLHours, "ttl-hours", query.CacheTTLHours, "hours to cache items")

	renderCmd.Flags().StringVarP(&layout, "layout", "l", string(nw.LayoutCompact), "layout (compact, list, or cards)")
	renderCmd.Flags().BoolVar(&newTab, "new-tab", true, "open links in new tabs")

	rootCmd.AddCommand(itemsCmd, renderCmd)
}

// create a client with flags
func newClient() (client *nw.Client, err error) {
	settings := nw.DefaultSettings()
	if settingsFilepath != "" {
		if settings, err = nw.LoadSettings(settingsFilepath); err != nil {
			return nil, err
		}
	} else if key := os.Getenv(nw.EnvAPIKey); key != "" {
		settings.APIKey = key
		settings.AIEnabled = true
	}

	switch {
	case redisURL != "":
		client, err = nw.NewClientWithRedis(settings, redisURL)
	case dbFilepath != "":
		client, err = nw.NewClientWithDB(settings, dbFilepath)
	default:
		client, err = nw.NewClient(settings)
	}
	if err != nil {
		return nil, err
	}
	client.SetVerbose(verbose)

	return client, nil
}

func main() {
	// NEWS_WIDGET_API_KEY can be given in .env
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("# failed to load .env: %s", err)
	}

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Printf("# %s", err)
		os.Exit(1)
	}
}
