// Package archiver provides HTTP clients for the EPICS Archiver Appliance.
//
// # Overview
//
// The appliance exposes two HTTP surfaces and this package mirrors them with
// two clients:
//
//   - DataClient: time-series retrieval (/retrieval/data/getData.json and
//     /retrieval/data/getDataAtTime)
//   - MgmtClient: PV listing, inspection, and archiving lifecycle
//     (/mgmt/bpl/*)
//
// Both are thin request/response wrappers; the archiver itself owns storage,
// retrieval planning, and PV management. Every operation is one synchronous
// round trip, takes a context, and propagates failures to the caller without
// retrying.
//
// # Clients
//
//	client, err := archiver.NewDataClient(archiver.DataOptions{
//		Options: archiver.Options{URL: "http://archiver.example.org:17668"},
//	})
//	series, err := client.GetData(ctx, "TST:gaussianNoise", archiver.Query{})
//
// A zero Query retrieves the recent window (one hour by default) ending now.
// Multi-PV retrieval returns partial results: GetDataSet maps every PV that
// succeeded and joins the per-PV failures into the returned error.
//
// # Error Taxonomy
//
// Failures are typed and addressable with errors.As:
//
//   - *InvalidPVError: the server rejected the PV name (404, or an empty
//     dataset for a PV it does not archive)
//   - *RetrievalError: transport failure, non-2xx status, or a body that
//     does not decode during data retrieval
//   - *ManagementError: the server (or the admin_disabled configuration
//     flag) refused a management operation, reported per PV
//
// # Concurrency
//
// Clients are safe for concurrent use; the base URL is fixed at
// construction. GetDataSet fans out over a small bounded worker pool, and a
// failure on one PV never disturbs the others.
package archiver
