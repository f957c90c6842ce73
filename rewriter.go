package nw

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
)

const (
	dekSystemInstruction = `You are a newsroom editor. Rewrite the given article summary into a concise, neutral "dek" using the inverted pyramid style: start with the most important facts (who/what/where/when/why/how), then add a key detail if space allows. Write 1–2 short sentences (35–55 words total). No hype, no first person, no emojis. Keep publisher names out of the dek.`

	dekPromptFormat = `Title: %[1]s
Source: %[2]s
Original summary:
%[3]s

Task: Rewrite as a concise inverted-pyramid dek (1–2 sentences).`

	dekCacheKeyPrefix = "nw:dek:"
	dekCacheTTL       = 24 * time.Hour

	minMaxTokens = 64

	maxDekLength    = 600 // in bytes
	maxDekWordCount = 60
)

// RewriteStatus is the out-of-band status of a dek rewrite.
//
// The rewritten text is the same for `RewriteDisabled` and `RewriteFailed`
// (the original description), so this status is the only way to tell them apart.
type RewriteStatus string

// RewriteStatus constants
const (
	RewriteDisabled  RewriteStatus = "disabled"
	RewriteCached    RewriteStatus = "cached"
	RewriteRewritten RewriteStatus = "rewritten"
	RewriteFailed    RewriteStatus = "failed"
)

// completer generates a completion for given system instruction and prompt.
type completer interface {
	complete(ctx context.Context, systemInstruction, prompt string) (string, error)
}

// DekRewriter rewrites raw descriptions of feed items into short neutral deks.
type DekRewriter struct {
	settings  Settings
	store     Store
	completer completer
	limiter   *rate.Limiter
	metrics   *Metrics

	verbose bool
}

// NewDekRewriter returns a new dek rewriter with given settings and store.
//
// If `store` is nil, a memory store is used.
func NewDekRewriter(settings Settings, store Store) (*DekRewriter, error) {
	return newDekRewriter(settings, store, nil)
}

// return a new dek rewriter which sends requests with given http client
func newDekRewriter(settings Settings, store Store, httpClient *http.Client) (*DekRewriter, error) {
	settings = settings.withDefaults()

	if store == nil {
		store = NewMemStore(defaultMemStoreSize)
	}
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: time.Duration(settings.TimeoutSeconds) * time.Second,
		}
	}

	var comp completer
	switch settings.Provider {
	case ProviderOpenAI:
		comp = newOpenAICompleter(settings, httpClient)
	case ProviderGemini:
		comp = newGeminiCompleter(settings)
	default:
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownProvider, settings.Provider)
	}

	return &DekRewriter{
		settings:  settings,
		store:     store,
		completer: comp,
		limiter:   rate.NewLimiter(rate.Inf, 1),
	}, nil
}

// SetInterval sets the minimum interval between completion requests.
func (r *DekRewriter) SetInterval(interval time.Duration) {
	if interval <= 0 {
		r.limiter.SetLimit(rate.Inf)
	} else {
		r.limiter.SetLimit(rate.Every(interval))
	}
}

// SetMetrics sets the metrics of the rewriter.
func (r *DekRewriter) SetMetrics(m *Metrics) {
	r.metrics = m
}

// SetVerbose sets the rewriter's verbose mode.
func (r *DekRewriter) SetVerbose(v bool) {
	r.verbose = v
}

// Fingerprint returns the cache fingerprint of a dek.
func Fingerprint(link, title, rawDesc, model string) string {
	sum := md5.Sum([]byte(strings.Join([]string{link, title, rawDesc, model}, "|")))
	return hex.EncodeToString(sum[:])
}

// Rewrite rewrites given raw description into a dek.
//
// It never fails: when rewriting is disabled or fails for any reason,
// `rawDesc` is returned as it is.
func (r *DekRewriter) Rewrite(ctx context.Context, link, title, source, rawDesc string) string {
	dek, _ := r.RewriteWithStatus(ctx, link, title, source, rawDesc)
	return dek
}

// RewriteWithStatus rewrites given raw description into a dek, and returns the status of it.
func (r *DekRewriter) RewriteWithStatus(ctx context.Context, link, title, source, rawDesc string) (dek string, status RewriteStatus) {
	ctx, span := tracer.Start(ctx, "nw.RewriteDek")
	defer func() {
		span.SetAttributes(attribute.String("nw.rewrite_status", string(status)))
		span.End()

		r.metrics.recordRewrite(status)
	}()

	if !r.settings.RewriteConfigured() {
		return rawDesc, RewriteDisabled
	}

	key := dekCacheKeyPrefix + Fingerprint(link, title, rawDesc, r.settings.Model)
	if cached, exists := r.store.Get(ctx, key); exists {
		v(r.verbose, "using cached dek for: '%s' (%s)", title, link)

		return string(cached), RewriteCached
	}

	generated, err := r.generate(ctx, title, source, rawDesc)
	if err != nil {
		v(r.verbose, "failed to rewrite dek of '%s' (%s): %s", title, link, redactText(errorString(err), []string{r.settings.APIKey}))

		span.RecordError(err)

		return rawDesc, RewriteFailed
	}

	dek = finalizeDek(generated)
	if dek == "" {
		v(r.verbose, "rewritten dek of '%s' (%s) was empty after stripping", title, link)

		return rawDesc, RewriteFailed
	}

	r.store.Set(ctx, key, []byte(dek), dekCacheTTL)

	return dek, RewriteRewritten
}

// generate a dek with the completer
func (r *DekRewriter) generate(ctx context.Context, title, source, rawDesc string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("failed to wait for rate limiter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.settings.TimeoutSeconds)*time.Second)
	defer cancel()

	v(r.verbose, "rewriting dek of: '%s' with model: %s", title, r.settings.Model)

	return r.completer.complete(ctx, dekSystemInstruction, fmt.Sprintf(dekPromptFormat, title, source, rawDesc))
}

// strip markups from generated text, and trim it if it is too long
func finalizeDek(generated string) string {
	dek := markdownToText(generated)
	if len(dek) > maxDekLength {
		dek = trimWords(dek, maxDekWordCount, ellipsis)
	}
	return dek
}
