package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/germesdev/arachni/internal/cluster"
)

const KindResourceExploration = "resource_exploration"

// ResourceExplorationPayload is the wire payload for a ResourceExplorationJob.
type ResourceExplorationPayload struct {
	Resource string `json:"resource"`
	Depth    int    `json:"depth"`
	MaxDepth int    `json:"max_depth"`
}

// ResourceExplorationJob loads a resource, reports its page back to the
// caller's callback, then fans out a ResourceExplorationJob for every
// same-origin link it has not already seen, sharing its own job id so the
// whole crawl accounts against one pending counter. Link discovery is
// gated by the cluster's skip registry so two workers that stumble onto
// the same link concurrently only queue it once.
type ResourceExplorationJob struct {
	id       string
	resource string
	depth    int
	maxDepth int
}

// NewResourceExplorationJob builds a root exploration job under a fresh id.
func NewResourceExplorationJob(id, resource string, maxDepth int) *ResourceExplorationJob {
	return &ResourceExplorationJob{id: id, resource: resource, maxDepth: maxDepth}
}

func (j *ResourceExplorationJob) ID() string       { return j.id }
func (j *ResourceExplorationJob) Kind() string      { return KindResourceExploration }
func (j *ResourceExplorationJob) NeverEnding() bool { return false }

func (j *ResourceExplorationJob) Forward(payload any) cluster.Job {
	resource, _ := payload.(string)
	return &ResourceExplorationJob{id: j.id, resource: resource, depth: j.depth + 1, maxDepth: j.maxDepth}
}

func (j *ResourceExplorationJob) Payload() (json.RawMessage, error) {
	return json.Marshal(ResourceExplorationPayload{Resource: j.resource, Depth: j.depth, MaxDepth: j.maxDepth})
}

func (j *ResourceExplorationJob) Execute(ctx context.Context, browser cluster.Browser, sup *cluster.Supervisor) error {
	if err := browser.Load(ctx, j.resource); err != nil {
		return fmt.Errorf("load %s: %w", j.resource, err)
	}
	page, err := browser.ToPage(ctx)
	if err != nil {
		return fmt.Errorf("snapshot %s: %w", j.resource, err)
	}

	sup.PushToSitemap(page.URL())
	logPageAuditTrail(sup, j.id, page)
	sup.HandleResult(cluster.Result{Job: j, Payload: page})

	if j.depth >= j.maxDepth {
		return nil
	}

	links, err := discoverLinks(page)
	if err != nil {
		return fmt.Errorf("discover links on %s: %w", j.resource, err)
	}

	for _, link := range links {
		if sup.Skip(j.id, link) {
			continue
		}
		sup.AddSkip(j.id, link)

		child := j.Forward(link)
		if err := sup.Queue(child, nil); err != nil {
			sup.AddSkip(j.id, link) // keep it marked seen even if the queue push failed
		}
	}

	return nil
}

// logPageAuditTrail renders page as markdown and records it as a human-
// readable audit-trail entry. Rendering failures are logged and otherwise
// ignored: a missing audit line must never fail the job.
func logPageAuditTrail(sup *cluster.Supervisor, jobID string, page cluster.Page) {
	digest, err := page.Markdown()
	if err != nil {
		sup.Logger().Warn().
			Str("job_id", jobID).
			Str("url", page.URL()).
			Str("error", err.Error()).
			Msg("failed to render audit trail markdown")
		return
	}
	sup.Logger().Info().
		Str("job_id", jobID).
		Str("url", page.URL()).
		Str("markdown", digest).
		Msg("page audit trail")
}

// discoverLinks extracts same-origin anchor hrefs from page's HTML.
func discoverLinks(page cluster.Page) ([]string, error) {
	html, err := page.HTML()
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(page.URL())
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		resolved, err := base.Parse(href)
		if err != nil {
			return
		}
		if resolved.Scheme != base.Scheme || resolved.Host != base.Host {
			return
		}
		resolved.Fragment = ""
		links = append(links, resolved.String())
	})
	return links, nil
}

// DecodeResourceExplorationJob reconstructs a ResourceExplorationJob from a
// queue item, registered under KindResourceExploration.
func DecodeResourceExplorationJob(id string, neverEnding bool, payload json.RawMessage) (cluster.Job, error) {
	var p ResourceExplorationPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", KindResourceExploration, err)
	}
	maxDepth := p.MaxDepth
	if maxDepth == 0 {
		maxDepth = defaultMaxDepth
	}
	return &ResourceExplorationJob{id: id, resource: p.Resource, depth: p.Depth, maxDepth: maxDepth}, nil
}

const defaultMaxDepth = 5
