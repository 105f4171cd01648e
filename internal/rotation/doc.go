// Package rotation provides upstream proxy rotation for outbound
// HTTP traffic.
//
// This package implements a fixed pool of proxy descriptors with
// round-robin selection, per-proxy failure accounting, a minimum
// inter-use interval, and a pool-wide reset fallback that guarantees
// a proxy is always returned once at least one is configured.
//
// # Selection
//
// A Manager hands out one proxy per outbound request:
//
//	mgr, err := rotation.NewManager(descriptors)
//	sel, err := mgr.Select()
//	// issue the request through sel.URI, then:
//	mgr.Report(sel, success)
//
// Callers that cannot carry the Selection handle across the request
// boundary may report by the URI string instead, via ReportFailure
// and ReportSuccess.
//
// # Health model
//
// A pool entry is unhealthy once its failure count reaches the
// descriptor's failure threshold, and cooling down for the configured
// interval after each use. When every entry is rejected in one
// selection pass, all failure counters are reset and entry zero is
// returned unconditionally, trading strict health tracking for
// liveness.
package rotation
