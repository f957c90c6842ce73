package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	nw "github.com/meinside/news-widget-go"
)

const (
	settingsFilepath = "./config.json"
	dbFilepath       = "./test.db"

	httpPort       = 10101
	rssTitle       = "Testing news widget server"
	rssLink        = "https://github.com/meinside/news-widget-go"
	rssDescription = "Testing my news widget server..."

	cleanupInterval = 1 * time.Hour

	// verbose         = false
	verbose = true
)

func main() {
	settings, err := nw.LoadSettings(settingsFilepath)
	if err != nil {
		log.Printf("# failed to load settings, using defaults: %s", err)
		settings = nw.DefaultSettings()
	}

	client, err := nw.NewClientWithDB(settings, dbFilepath)
	if err != nil {
		log.Printf("# failed to create a client: %s", err)
		return
	}
	defer func() { _ = client.Close() }()
	client.SetVerbose(verbose)

	registry := prometheus.NewRegistry()
	if metrics, err := nw.NewMetrics(registry); err == nil {
		client.SetMetrics(metrics)
	} else {
		log.Printf("# failed to register metrics: %s", err)
	}

	// delete expired caches periodically
	go func() {
		for {
			client.DeleteExpiredCache()
			time.Sleep(cleanupInterval)
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	// html fragment of a widget
	e.GET("/widget", func(c echo.Context) error {
		q := queryFrom(c)
		opts := nw.RenderOptions{
			Layout:       nw.ParseLayout(c.QueryParam("layout")),
			OpenInNewTab: c.QueryParam("new_tab") != "false",
		}

		c.Response().Header().Set("Cache-Control", "max-age=60")
		return c.HTML(http.StatusOK, client.Render(c.Request().Context(), q, opts))
	})

	// items of a widget as json
	e.GET("/items", func(c echo.Context) error {
		return c.JSON(http.StatusOK, client.Items(c.Request().Context(), queryFrom(c)))
	})

	// items of a widget as rss
	e.GET("/rss", func(c echo.Context) error {
		items := client.Items(c.Request().Context(), queryFrom(c))

		bytes, err := client.PublishXML(rssTitle, rssLink, rssDescription, items)
		if err != nil {
			log.Printf("# failed to serve RSS feeds: %s", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to generate rss")
		}

		c.Response().Header().Set("Cache-Control", "max-age=60")
		return c.Blob(http.StatusOK, nw.PublishContentType, bytes)
	})

	// metrics
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	// listen and serve
	if err := e.Start(fmt.Sprintf(":%d", httpPort)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("# failed to start server: %s", err)
	}

	_ = e.Shutdown(context.Background())
}

// build a feed query from query parameters
func queryFrom(c echo.Context) nw.FeedQuery {
	q := nw.DefaultFeedQuery()

	if terms := c.QueryParam("q"); terms != "" {
		q.SearchTerms = terms
	}
	if hl := c.QueryParam("hl"); hl != "" {
		q.Language = hl
	}
	if gl := c.QueryParam("gl"); gl != "" {
		q.Region = gl
	}
	if ceid := c.QueryParam("ceid"); ceid != "" {
		q.Edition = ceid
	}
	if limit, err := strconv.Atoi(c.QueryParam("limit")); err == nil {
		q.ItemLimit = limit
	}
	if hours, err := strconv.ParseFloat(c.QueryParam("ttl_hours"), 64); err == nil {
		q.CacheTTLHours = hours
	}

	return q.Normalized()
}
