package jobs

import "github.com/germesdev/arachni/internal/cluster"

// Register wires every job kind in this package into sup's decoder table.
// Call once, before any job of these kinds is queued.
func Register(sup *cluster.Supervisor) {
	sup.RegisterKind(KindBrowserProvider, DecodeBrowserProviderJob)
	sup.RegisterKind(KindResourceExploration, DecodeResourceExplorationJob)
	sup.RegisterKind(KindTaintTrace, DecodeTaintTraceJob)
}
