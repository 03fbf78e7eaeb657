// Package jobs holds concrete Job implementations that exercise the
// cluster against real resources: loading pages, firing DOM events,
// following links, and reporting what they find back to a caller-supplied
// callback. None of these types are required by the core cluster package;
// they exist to give SPEC_FULL's illustrative job bodies a home and to
// demonstrate how a Job implementation is expected to behave.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/germesdev/arachni/internal/cluster"
)

const KindBrowserProvider = "browser_provider"

// BrowserProviderPayload is the wire payload for a BrowserProviderJob.
type BrowserProviderPayload struct {
	Resource string `json:"resource"`
}

// BrowserProviderJob loads a single resource and reports the resulting
// page back to its callback. It supports NeverEnding reuse (the same job id
// and callback serving many submissions), but jobs.WithBrowser queues it
// single-shot.
type BrowserProviderJob struct {
	id          string
	neverEnding bool
	resource    string
}

// NewBrowserProviderJob builds a root BrowserProviderJob under a fresh id.
func NewBrowserProviderJob(id, resource string, neverEnding bool) *BrowserProviderJob {
	return &BrowserProviderJob{id: id, neverEnding: neverEnding, resource: resource}
}

func (j *BrowserProviderJob) ID() string        { return j.id }
func (j *BrowserProviderJob) Kind() string       { return KindBrowserProvider }
func (j *BrowserProviderJob) NeverEnding() bool  { return j.neverEnding }

func (j *BrowserProviderJob) Forward(payload any) cluster.Job {
	resource, _ := payload.(string)
	return &BrowserProviderJob{id: j.id, neverEnding: j.neverEnding, resource: resource}
}

func (j *BrowserProviderJob) Payload() (json.RawMessage, error) {
	return json.Marshal(BrowserProviderPayload{Resource: j.resource})
}

func (j *BrowserProviderJob) Execute(ctx context.Context, browser cluster.Browser, sup *cluster.Supervisor) error {
	if err := browser.Load(ctx, j.resource); err != nil {
		return fmt.Errorf("load %s: %w", j.resource, err)
	}
	page, err := browser.ToPage(ctx)
	if err != nil {
		return fmt.Errorf("snapshot %s: %w", j.resource, err)
	}

	sup.PushToSitemap(page.URL())
	sup.HandleResult(cluster.Result{Job: j, Payload: page})
	return nil
}

// DecodeBrowserProviderJob reconstructs a BrowserProviderJob from a queue
// item, registered under KindBrowserProvider.
func DecodeBrowserProviderJob(id string, neverEnding bool, payload json.RawMessage) (cluster.Job, error) {
	var p BrowserProviderPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", KindBrowserProvider, err)
	}
	return &BrowserProviderJob{id: id, neverEnding: neverEnding, resource: p.Resource}, nil
}
