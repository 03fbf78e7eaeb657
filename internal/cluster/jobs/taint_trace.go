package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/germesdev/arachni/internal/cluster"
)

const KindTaintTrace = "taint_trace"

// TaintTracePayload is the wire payload for a TaintTraceJob.
type TaintTracePayload struct {
	Resource string `json:"resource"`
	Element  string `json:"element"`
	Event    string `json:"event"`
	Marker   string `json:"marker"`
}

// TaintTraceJob loads a resource, injects a taint marker into one element
// via a single DOM event, and reports the resulting page back to its
// callback. Unlike ResourceExplorationJob it never fans out: it is the
// cluster's simplest single-result job body, used where a caller just
// needs one probe followed up on.
type TaintTraceJob struct {
	id       string
	resource string
	element  string
	event    string
	marker   string
}

// NewTaintTraceJob builds a root TaintTraceJob under a fresh id.
func NewTaintTraceJob(id, resource, element, event, marker string) *TaintTraceJob {
	return &TaintTraceJob{id: id, resource: resource, element: element, event: event, marker: marker}
}

func (j *TaintTraceJob) ID() string       { return j.id }
func (j *TaintTraceJob) Kind() string      { return KindTaintTrace }
func (j *TaintTraceJob) NeverEnding() bool { return false }

func (j *TaintTraceJob) Forward(payload any) cluster.Job {
	marker, _ := payload.(string)
	return &TaintTraceJob{id: j.id, resource: j.resource, element: j.element, event: j.event, marker: marker}
}

func (j *TaintTraceJob) Payload() (json.RawMessage, error) {
	return json.Marshal(TaintTracePayload{
		Resource: j.resource,
		Element:  j.element,
		Event:    j.event,
		Marker:   j.marker,
	})
}

func (j *TaintTraceJob) Execute(ctx context.Context, browser cluster.Browser, sup *cluster.Supervisor) error {
	if err := browser.Load(ctx, j.resource); err != nil {
		return fmt.Errorf("load %s: %w", j.resource, err)
	}
	if err := browser.FireEvent(ctx, j.element, j.event, j.marker); err != nil {
		return fmt.Errorf("fire %s on %s: %w", j.event, j.element, err)
	}
	page, err := browser.ToPage(ctx)
	if err != nil {
		return fmt.Errorf("snapshot %s: %w", j.resource, err)
	}

	logPageAuditTrail(sup, j.id, page)
	sup.HandleResult(cluster.Result{Job: j, Payload: page})
	return nil
}

// DecodeTaintTraceJob reconstructs a TaintTraceJob from a queue item,
// registered under KindTaintTrace.
func DecodeTaintTraceJob(id string, neverEnding bool, payload json.RawMessage) (cluster.Job, error) {
	var p TaintTracePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", KindTaintTrace, err)
	}
	return &TaintTraceJob{id: id, resource: p.Resource, element: p.Element, event: p.Event, marker: p.Marker}, nil
}
