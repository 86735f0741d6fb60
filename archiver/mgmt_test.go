package archiver_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/archman/goarchappl/archiver"
	"github.com/archman/goarchappl/internal/archtest"
)

func newMgmtClient(t *testing.T, url string, disabled bool) *archiver.MgmtClient {
	t.Helper()
	client, err := archiver.NewMgmtClient(archiver.MgmtOptions{
		Options:  archiver.Options{URL: url, Timeout: 2 * time.Second},
		Disabled: disabled,
	})
	if err != nil {
		t.Fatalf("NewMgmtClient returned error: %v", err)
	}
	return client
}

func TestGetAllPVs_PatternFiltersSubset(t *testing.T) {
	t.Parallel()
	server := archtest.New(fixture())
	t.Cleanup(server.Close)
	client := newMgmtClient(t, server.URL, false)

	all, err := client.GetAllPVs(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("GetAllPVs returned error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len(all) = %d, want 3", len(all))
	}

	tst, err := client.GetAllPVs(context.Background(), "TST:*", 0)
	if err != nil {
		t.Fatalf("GetAllPVs returned error: %v", err)
	}
	if len(tst) != 2 {
		t.Fatalf("len(tst) = %d, want 2", len(tst))
	}
	allSet := make(map[string]bool, len(all))
	for _, pv := range all {
		allSet[pv] = true
	}
	for _, pv := range tst {
		if pv[:4] != "TST:" {
			t.Fatalf("filtered result %q does not match the pattern", pv)
		}
		if !allSet[pv] {
			t.Fatalf("filtered result %q is not a subset of the unfiltered result", pv)
		}
	}
}

func TestGetAllPVs_LimitCapsResult(t *testing.T) {
	t.Parallel()
	server := archtest.New(fixture())
	t.Cleanup(server.Close)
	client := newMgmtClient(t, server.URL, false)

	pvs, err := client.GetAllPVs(context.Background(), "", 1)
	if err != nil {
		t.Fatalf("GetAllPVs returned error: %v", err)
	}
	if len(pvs) != 1 {
		t.Fatalf("len(pvs) = %d, want 1", len(pvs))
	}
}

func TestGetPVStatus_MergesPerPatternAnswers(t *testing.T) {
	t.Parallel()
	server := archtest.New(fixture())
	t.Cleanup(server.Close)
	client := newMgmtClient(t, server.URL, false)

	statuses, err := client.GetPVStatus(context.Background(), "TST:*", "CAV:amplitude")
	if err != nil {
		t.Fatalf("GetPVStatus returned error: %v", err)
	}
	if len(statuses) != 3 {
		t.Fatalf("len(statuses) = %d, want 3", len(statuses))
	}
	status, ok := statuses["TST:constant"]
	if !ok {
		t.Fatalf("statuses missing TST:constant")
	}
	if status.Status != "Being archived" {
		t.Fatalf("Status = %q, want Being archived", status.Status)
	}
}

func TestGetPVTypeInfo_UnknownPVIsInvalidPVError(t *testing.T) {
	t.Parallel()
	server := archtest.New(fixture())
	t.Cleanup(server.Close)
	client := newMgmtClient(t, server.URL, false)

	_, err := client.GetPVTypeInfo(context.Background(), "NOPE:doesNotExist")
	var invalid *archiver.InvalidPVError
	if !errors.As(err, &invalid) {
		t.Fatalf("GetPVTypeInfo error = %T (%v), want *InvalidPVError", err, err)
	}
	if invalid.PV != "NOPE:doesNotExist" {
		t.Fatalf("InvalidPVError.PV = %q, want the requested name", invalid.PV)
	}
}

func TestGetPVTypeInfo_ReportsArchivingParameters(t *testing.T) {
	t.Parallel()
	server := archtest.New(fixture())
	t.Cleanup(server.Close)
	client := newMgmtClient(t, server.URL, false)

	info, err := client.GetPVTypeInfo(context.Background(), "TST:constant")
	if err != nil {
		t.Fatalf("GetPVTypeInfo returned error: %v", err)
	}
	if info.PVName != "TST:constant" {
		t.Fatalf("PVName = %q, want TST:constant", info.PVName)
	}
	if info.SamplingMethod != "MONITOR" {
		t.Fatalf("SamplingMethod = %q, want MONITOR", info.SamplingMethod)
	}
	if len(info.DataStores) != 2 {
		t.Fatalf("len(DataStores) = %d, want 2", len(info.DataStores))
	}
}

func TestPauseAndResume_TogglePVState(t *testing.T) {
	t.Parallel()
	server := archtest.New(fixture())
	t.Cleanup(server.Close)
	client := newMgmtClient(t, server.URL, false)

	ctx := context.Background()
	if err := client.PausePV(ctx, "TST:constant"); err != nil {
		t.Fatalf("PausePV returned error: %v", err)
	}
	if !server.Paused("TST:constant") {
		t.Fatalf("server does not consider the PV paused")
	}

	statuses, err := client.GetPVStatus(ctx, "TST:constant")
	if err != nil {
		t.Fatalf("GetPVStatus returned error: %v", err)
	}
	if statuses["TST:constant"].Status != "Paused" {
		t.Fatalf("Status = %q, want Paused", statuses["TST:constant"].Status)
	}

	if err := client.ResumePV(ctx, "TST:constant"); err != nil {
		t.Fatalf("ResumePV returned error: %v", err)
	}
	if server.Paused("TST:constant") {
		t.Fatalf("server still considers the PV paused")
	}
}

func TestPausePV_UnknownPVIsManagementError(t *testing.T) {
	t.Parallel()
	server := archtest.New(fixture())
	t.Cleanup(server.Close)
	client := newMgmtClient(t, server.URL, false)

	err := client.PausePV(context.Background(), "NOPE:doesNotExist")
	var mgmt *archiver.ManagementError
	if !errors.As(err, &mgmt) {
		t.Fatalf("PausePV error = %T (%v), want *ManagementError", err, err)
	}
	if mgmt.PV != "NOPE:doesNotExist" {
		t.Fatalf("ManagementError.PV = %q, want the requested name", mgmt.PV)
	}
	if mgmt.Op != "pauseArchivingPV" {
		t.Fatalf("ManagementError.Op = %q, want pauseArchivingPV", mgmt.Op)
	}
}

func TestArchivePV_SubmitsRequest(t *testing.T) {
	t.Parallel()
	server := archtest.New(fixture())
	t.Cleanup(server.Close)
	client := newMgmtClient(t, server.URL, false)

	ctx := context.Background()
	err := client.ArchivePV(ctx, "NEW:device:reading", archiver.ArchiveParams{
		SamplingPeriod: 0.5,
		SamplingMethod: "monitor",
	})
	if err != nil {
		t.Fatalf("ArchivePV returned error: %v", err)
	}

	pvs, err := client.GetAllPVs(ctx, "NEW:*", 0)
	if err != nil {
		t.Fatalf("GetAllPVs returned error: %v", err)
	}
	if len(pvs) != 1 || pvs[0] != "NEW:device:reading" {
		t.Fatalf("pvs = %v, want the submitted PV", pvs)
	}
}

func TestDeletePV_RequiresPause(t *testing.T) {
	t.Parallel()
	server := archtest.New(fixture())
	t.Cleanup(server.Close)
	client := newMgmtClient(t, server.URL, false)

	ctx := context.Background()
	err := client.DeletePV(ctx, "TST:constant")
	var mgmt *archiver.ManagementError
	if !errors.As(err, &mgmt) {
		t.Fatalf("DeletePV error = %T (%v), want *ManagementError for an unpaused PV", err, err)
	}

	if err := client.PausePV(ctx, "TST:constant"); err != nil {
		t.Fatalf("PausePV returned error: %v", err)
	}
	if err := client.DeletePV(ctx, "TST:constant"); err != nil {
		t.Fatalf("DeletePV returned error: %v", err)
	}

	pvs, err := client.GetAllPVs(ctx, "TST:*", 0)
	if err != nil {
		t.Fatalf("GetAllPVs returned error: %v", err)
	}
	for _, pv := range pvs {
		if pv == "TST:constant" {
			t.Fatalf("deleted PV still listed")
		}
	}
}

func TestLifecycle_DisabledFailsBeforeNetworkIO(t *testing.T) {
	t.Parallel()
	// No server behind this address; a disabled client must fail locally.
	client := newMgmtClient(t, "http://127.0.0.1:1", true)

	err := client.PausePV(context.Background(), "TST:constant")
	var mgmt *archiver.ManagementError
	if !errors.As(err, &mgmt) {
		t.Fatalf("PausePV error = %T (%v), want *ManagementError", err, err)
	}
	if mgmt.Detail == "" {
		t.Fatalf("ManagementError.Detail empty, want a disabled notice")
	}
}

func TestGetApplianceInfo(t *testing.T) {
	t.Parallel()
	server := archtest.New(fixture())
	t.Cleanup(server.Close)
	client := newMgmtClient(t, server.URL, false)

	info, err := client.GetApplianceInfo(context.Background())
	if err != nil {
		t.Fatalf("GetApplianceInfo returned error: %v", err)
	}
	if info.Identity != "appliance0" {
		t.Fatalf("Identity = %q, want appliance0", info.Identity)
	}
}

func TestGetStoresForPV(t *testing.T) {
	t.Parallel()
	server := archtest.New(fixture())
	t.Cleanup(server.Close)
	client := newMgmtClient(t, server.URL, false)

	stores, err := client.GetStoresForPV(context.Background(), "TST:constant")
	if err != nil {
		t.Fatalf("GetStoresForPV returned error: %v", err)
	}
	if len(stores) != 3 {
		t.Fatalf("len(stores) = %d, want 3", len(stores))
	}
}
