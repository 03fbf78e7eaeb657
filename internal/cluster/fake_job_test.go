package cluster_test

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/germesdev/arachni/internal/cluster"
)

const fakeJobKind = "fake"

// fakeJobPayload is the wire payload for a fakeJob.
type fakeJobPayload struct {
	Resource  string   `json:"resource"`
	Children  []string `json:"children"`
	FailOnRun bool     `json:"fail_on_run"`
	Panic     bool     `json:"panic"`
}

// fakeJob is a controllable cluster.Job used across the test suite: it
// optionally fans out one sub-job per entry in Children (sharing its own
// id), optionally fails or panics during Execute, and, unless it panics or
// its Load fails, reports a Result carrying its own Resource string.
type fakeJob struct {
	id          string
	neverEnding bool
	payload     fakeJobPayload
}

func newFakeJob(id, resource string, children ...string) *fakeJob {
	return &fakeJob{id: id, payload: fakeJobPayload{Resource: resource, Children: children}}
}

func newNeverEndingFakeJob(id, resource string) *fakeJob {
	return &fakeJob{id: id, neverEnding: true, payload: fakeJobPayload{Resource: resource}}
}

func (j *fakeJob) ID() string       { return j.id }
func (j *fakeJob) Kind() string      { return fakeJobKind }
func (j *fakeJob) NeverEnding() bool { return j.neverEnding }

func (j *fakeJob) Forward(payload any) cluster.Job {
	resource, _ := payload.(string)
	return &fakeJob{id: j.id, neverEnding: j.neverEnding, payload: fakeJobPayload{Resource: resource}}
}

func (j *fakeJob) Payload() (json.RawMessage, error) {
	return json.Marshal(j.payload)
}

func (j *fakeJob) Execute(ctx context.Context, browser cluster.Browser, sup *cluster.Supervisor) error {
	if j.payload.Panic {
		panic("fakeJob: intentional panic")
	}
	if err := browser.Load(ctx, j.payload.Resource); err != nil {
		return err
	}

	for _, child := range j.payload.Children {
		if sup.Skip(j.id, child) {
			continue
		}
		sup.AddSkip(j.id, child)
		if err := sup.Queue(&fakeJob{id: j.id, payload: fakeJobPayload{Resource: child}}, nil); err != nil {
			return fmt.Errorf("queue child %s: %w", child, err)
		}
	}

	sup.HandleResult(cluster.Result{Job: j, Payload: j.payload.Resource})

	if j.payload.FailOnRun {
		return fmt.Errorf("fakeJob: intentional failure for %s", j.payload.Resource)
	}
	return nil
}

func decodeFakeJob(id string, neverEnding bool, payload json.RawMessage) (cluster.Job, error) {
	var p fakeJobPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, err
	}
	return &fakeJob{id: id, neverEnding: neverEnding, payload: p}, nil
}
