package archiver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const mgmtPath = "/mgmt/bpl"

// MgmtClient drives the appliance's management (BPL) API: PV listing,
// inspection, and archiving lifecycle.
type MgmtClient struct {
	caller
	disabled bool
}

// MgmtOptions configure a MgmtClient.
type MgmtOptions struct {
	Options
	// Disabled makes every mutating lifecycle call fail locally with a
	// *ManagementError before any network I/O. Site configurations use it to
	// keep read-only deployments from touching the archiver.
	Disabled bool
}

// NewMgmtClient builds a management client for the given appliance.
func NewMgmtClient(opts MgmtOptions) (*MgmtClient, error) {
	c, err := newCaller(opts.Options)
	if err != nil {
		return nil, err
	}
	return &MgmtClient{caller: c, disabled: opts.Disabled}, nil
}

// GetAllPVs lists the PVs archived by the cluster. A non-empty pattern
// filters with the server's glob matching; limit caps the result when
// positive and is omitted otherwise (server-side unlimited).
func (c *MgmtClient) GetAllPVs(ctx context.Context, pattern string, limit int) ([]string, error) {
	values := url.Values{}
	if pattern != "" {
		values.Set("pv", pattern)
	}
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	} else {
		values.Set("limit", "-1")
	}

	var pvs []string
	if err := c.get(ctx, "getAllPVs", values, &pvs); err != nil {
		return nil, err
	}
	return pvs, nil
}

// GetApplianceInfo reports identity and endpoint URLs of the appliance.
func (c *MgmtClient) GetApplianceInfo(ctx context.Context) (*ApplianceInfo, error) {
	var info ApplianceInfo
	if err := c.get(ctx, "getApplianceInfo", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// GetPVStatus reports archiving status per PV. Each argument may be a PV
// name or a glob pattern; one request is issued per argument and the answers
// are merged into a map keyed by PV name.
func (c *MgmtClient) GetPVStatus(ctx context.Context, pvs ...string) (map[string]PVStatus, error) {
	merged := make(map[string]PVStatus)
	for _, pv := range pvs {
		values := url.Values{}
		values.Set("pv", pv)
		var batch []PVStatus
		if err := c.get(ctx, "getPVStatus", values, &batch); err != nil {
			return nil, err
		}
		for _, status := range batch {
			merged[status.PVName] = status
		}
	}
	return merged, nil
}

// GetPVTypeInfo reports the archiving parameters of one PV. An unknown PV
// fails with *InvalidPVError.
func (c *MgmtClient) GetPVTypeInfo(ctx context.Context, pv string) (*PVTypeInfo, error) {
	values := url.Values{}
	values.Set("pv", pv)
	var info PVTypeInfo
	if err := c.getJSON(ctx, relMgmt("getPVTypeInfo", values), &info); err != nil {
		return nil, mapMgmtErr(pv, "getPVTypeInfo", err)
	}
	return &info, nil
}

// GetPVDetails reports the per-source detail rows for one PV.
func (c *MgmtClient) GetPVDetails(ctx context.Context, pv string) ([]PVDetail, error) {
	values := url.Values{}
	values.Set("pv", pv)
	var details []PVDetail
	if err := c.getJSON(ctx, relMgmt("getPVDetails", values), &details); err != nil {
		return nil, mapMgmtErr(pv, "getPVDetails", err)
	}
	return details, nil
}

// GetStoresForPV names the data stores holding data for one PV.
func (c *MgmtClient) GetStoresForPV(ctx context.Context, pv string) ([]string, error) {
	values := url.Values{}
	values.Set("pv", pv)
	var stores []string
	if err := c.getJSON(ctx, relMgmt("getStoresForPV", values), &stores); err != nil {
		return nil, mapMgmtErr(pv, "getStoresForPV", err)
	}
	return stores, nil
}

// ArchiveParams tune an archive or update request. Zero fields are omitted
// and the server applies its policy defaults.
type ArchiveParams struct {
	// SamplingPeriod in seconds.
	SamplingPeriod float64
	// SamplingMethod is SCAN or MONITOR.
	SamplingMethod string
	// ControllingPV enables conditional archiving when set.
	ControllingPV string
	// Policy overrides the server's policy selection.
	Policy string
	// Appliance pins sampling and storage to one appliance of the cluster.
	Appliance string
}

func (p ArchiveParams) values(pv string) url.Values {
	values := url.Values{}
	values.Set("pv", pv)
	if p.SamplingPeriod > 0 {
		values.Set("samplingperiod", strconv.FormatFloat(p.SamplingPeriod, 'f', -1, 64))
	}
	if p.SamplingMethod != "" {
		values.Set("samplingmethod", strings.ToUpper(p.SamplingMethod))
	}
	if p.ControllingPV != "" {
		values.Set("controllingPV", p.ControllingPV)
	}
	if p.Policy != "" {
		values.Set("policy", p.Policy)
	}
	if p.Appliance != "" {
		values.Set("appliance", p.Appliance)
	}
	return values
}

// ArchivePV submits a PV for archiving.
func (c *MgmtClient) ArchivePV(ctx context.Context, pv string, params ArchiveParams) error {
	return c.lifecycle(ctx, pv, "archivePV", params.values(pv))
}

// PausePV pauses archiving for a PV.
func (c *MgmtClient) PausePV(ctx context.Context, pv string) error {
	return c.lifecycle(ctx, pv, "pauseArchivingPV", pvValues(pv))
}

// ResumePV resumes archiving for a paused PV.
func (c *MgmtClient) ResumePV(ctx context.Context, pv string) error {
	return c.lifecycle(ctx, pv, "resumeArchivingPV", pvValues(pv))
}

// AbortPV aborts a pending archive request for a PV.
func (c *MgmtClient) AbortPV(ctx context.Context, pv string) error {
	return c.lifecycle(ctx, pv, "abortArchivingPV", pvValues(pv))
}

// DeletePV removes a PV from the archiver. The server refuses to delete a PV
// that is still being archived; pause it first.
func (c *MgmtClient) DeletePV(ctx context.Context, pv string) error {
	return c.lifecycle(ctx, pv, "deletePV", pvValues(pv))
}

// UpdatePV changes the archival parameters of an archived PV.
func (c *MgmtClient) UpdatePV(ctx context.Context, pv string, params ArchiveParams) error {
	return c.lifecycle(ctx, pv, "changeArchivalParameters", params.values(pv))
}

func (c *MgmtClient) lifecycle(ctx context.Context, pv, op string, values url.Values) error {
	if c.disabled {
		return &ManagementError{PV: pv, Op: op, Detail: "management disabled by configuration"}
	}
	var raw json.RawMessage
	if err := c.getJSON(ctx, relMgmt(op, values), &raw); err != nil {
		return mapMgmtErr(pv, op, err)
	}
	return checkOpResult(pv, op, raw)
}

// checkOpResult inspects a lifecycle status payload. The appliance answers
// either a single object or an array of them; a validation message or a
// missing status field signals per-PV rejection.
func checkOpResult(pv, op string, raw json.RawMessage) error {
	var results []opResult
	if err := json.Unmarshal(raw, &results); err != nil {
		var single opResult
		if err := json.Unmarshal(raw, &single); err != nil {
			return &ManagementError{PV: pv, Op: op, Err: fmt.Errorf("decode response: %w", err)}
		}
		results = []opResult{single}
	}
	if len(results) == 0 {
		return &ManagementError{PV: pv, Op: op, Detail: "empty response"}
	}
	for _, r := range results {
		if r.Validation != "" {
			return &ManagementError{PV: pv, Op: op, Detail: r.Validation}
		}
		if r.Status == "" {
			return &ManagementError{PV: pv, Op: op, Detail: "server reported no status"}
		}
	}
	return nil
}

func (c *MgmtClient) get(ctx context.Context, op string, values url.Values, dest any) error {
	if err := c.getJSON(ctx, relMgmt(op, values), dest); err != nil {
		return mapMgmtErr("", op, err)
	}
	return nil
}

func relMgmt(op string, values url.Values) *url.URL {
	rel := &url.URL{Path: mgmtPath + "/" + op}
	if values != nil {
		rel.RawQuery = values.Encode()
	}
	return rel
}

func pvValues(pv string) url.Values {
	values := url.Values{}
	values.Set("pv", pv)
	return values
}

func mapMgmtErr(pv, op string, err error) error {
	var status *statusError
	if errors.As(err, &status) && status.status == 404 && pv != "" {
		return &InvalidPVError{PV: pv}
	}
	return &ManagementError{PV: pv, Op: op, Err: err}
}

func (c *MgmtClient) String() string {
	return fmt.Sprintf("mgmt client for %s%s", c.URL(), mgmtPath)
}
