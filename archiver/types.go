package archiver

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Meta carries the metadata object attached to a data retrieval response.
type Meta struct {
	Name string `json:"name"`
	EGU  string `json:"EGU"`
	PREC string `json:"PREC"`
}

// Sample is a single archived point. Val keeps the raw JSON value because the
// appliance archives scalars, strings, and waveforms alike; Float converts
// scalar samples on demand.
type Sample struct {
	Time     time.Time
	Val      json.RawMessage
	Status   int
	Severity int
}

// Float converts a scalar sample value.
func (s Sample) Float() (float64, error) {
	var v float64
	if err := json.Unmarshal(s.Val, &v); err != nil {
		return 0, err
	}
	return v, nil
}

// ValString renders the sample value the way it appeared on the wire, with
// string quoting stripped.
func (s Sample) ValString() string {
	text := strings.TrimSpace(string(s.Val))
	if unquoted, err := strconv.Unquote(text); err == nil {
		return unquoted
	}
	return text
}

// TimeSeries is the ordered set of samples returned for one PV. Sample order
// follows the server, which delivers non-decreasing timestamps.
type TimeSeries struct {
	PV      string
	Meta    Meta
	Samples []Sample
}

// samplePayload mirrors one row of the getData response body.
type samplePayload struct {
	Secs     int64           `json:"secs"`
	Nanos    int64           `json:"nanos"`
	Val      json.RawMessage `json:"val"`
	Status   int             `json:"status"`
	Severity int             `json:"severity"`
}

func (p samplePayload) sample() Sample {
	return Sample{
		Time:     time.Unix(p.Secs, p.Nanos).UTC(),
		Val:      p.Val,
		Status:   p.Status,
		Severity: p.Severity,
	}
}

// seriesPayload mirrors one element of the getData response array.
type seriesPayload struct {
	Meta Meta            `json:"meta"`
	Data []samplePayload `json:"data"`
}

// PVStatus mirrors one element of the getPVStatus response. The appliance
// serializes most fields as strings.
type PVStatus struct {
	PVName                     string `json:"pvName"`
	Status                     string `json:"status"`
	Appliance                  string `json:"appliance"`
	ConnectionState            string `json:"connectionState"`
	LastEvent                  string `json:"lastEvent"`
	SamplingPeriod             string `json:"samplingPeriod"`
	IsMonitored                string `json:"isMonitored"`
	ConnectionFirstEstablished string `json:"connectionFirstEstablished"`
	ConnectionLastRestablished string `json:"connectionLastRestablished"`
	PVNameOnly                 string `json:"pvNameOnly"`
}

// PVTypeInfo mirrors the getPVTypeInfo response; it carries the archiving
// parameters for a PV.
type PVTypeInfo struct {
	PVName            string   `json:"pvName"`
	HostName          string   `json:"hostName"`
	ApplianceIdentity string   `json:"applianceIdentity"`
	DBRType           string   `json:"DBRType"`
	Paused            string   `json:"paused"`
	ScalarType        string   `json:"scalar"`
	ElementCount      string   `json:"elementCount"`
	SamplingMethod    string   `json:"samplingMethod"`
	SamplingPeriod    string   `json:"samplingPeriod"`
	CreationTime      string   `json:"creationTime"`
	ModificationTime  string   `json:"modificationTime"`
	DataStores        []string `json:"dataStores"`
}

// PVDetail is one (source, name, value) row of the getPVDetails response.
type PVDetail struct {
	Source string `json:"source"`
	Name   string `json:"name"`
	Value  string `json:"value"`
}

// ApplianceInfo mirrors the getApplianceInfo response.
type ApplianceInfo struct {
	Identity         string `json:"identity"`
	MgmtURL          string `json:"mgmtURL"`
	EngineURL        string `json:"engineURL"`
	ETLURL           string `json:"etlURL"`
	RetrievalURL     string `json:"retrievalURL"`
	DataRetrievalURL string `json:"dataRetrievalURL"`
	ClusterInetPort  string `json:"clusterInetPort"`
}

// opResult mirrors the status payloads returned by lifecycle endpoints. The
// appliance answers either a single object or an array of them; a non-empty
// validation field signals rejection.
type opResult struct {
	PVName     string `json:"pvName"`
	Status     string `json:"status"`
	Validation string `json:"validation"`
	Desc       string `json:"desc"`
}
