package archiver

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"
)

const (
	dataPath       = "/retrieval/data/getData.json"
	dataAtTimePath = "/retrieval/data/getDataAtTime"

	// defaultWindow is the recent window used when a query carries no time
	// range at all.
	defaultWindow = time.Hour

	// fetchWorkers bounds concurrent per-PV fetches in GetDataSet.
	fetchWorkers = 4
)

// DataClient retrieves archived time-series data over the appliance's
// retrieval API.
type DataClient struct {
	caller
	window time.Duration
}

// DataOptions configure a DataClient.
type DataOptions struct {
	Options
	// Window is the recent retrieval window applied when a Query has neither
	// From nor To. Zero uses one hour.
	Window time.Duration
}

// NewDataClient builds a data retrieval client for the given appliance.
func NewDataClient(opts DataOptions) (*DataClient, error) {
	c, err := newCaller(opts.Options)
	if err != nil {
		return nil, err
	}
	window := opts.Window
	if window <= 0 {
		window = defaultWindow
	}
	return &DataClient{caller: c, window: window}, nil
}

// Query selects the time range of a retrieval. The zero value means "the
// recent window ending now".
type Query struct {
	From time.Time
	To   time.Time
	// LastN keeps only the most recent n samples when positive.
	LastN int
}

// window fills the missing ends of the range the way the appliance CLI does:
// no range at all means the recent window ending now, an open end means now,
// an open start means one window before the end.
func (q Query) window(d time.Duration) (time.Time, time.Time) {
	from, to := q.From, q.To
	if to.IsZero() {
		to = time.Now()
	}
	if from.IsZero() {
		from = to.Add(-d)
	}
	return from, to
}

// GetData retrieves the samples archived for one PV within the query range.
// An unknown PV fails with *InvalidPVError; transport failures, non-2xx
// statuses and malformed bodies fail with *RetrievalError.
func (c *DataClient) GetData(ctx context.Context, pv string, q Query) (*TimeSeries, error) {
	if pv == "" {
		return nil, &InvalidPVError{PV: pv}
	}
	from, to := q.window(c.window)

	values := url.Values{}
	values.Set("pv", pv)
	values.Set("from", FormatTime(from))
	values.Set("to", FormatTime(to))
	rel := &url.URL{Path: dataPath, RawQuery: values.Encode()}

	var payload []seriesPayload
	if err := c.getJSON(ctx, rel, &payload); err != nil {
		return nil, mapRetrievalErr(pv, rel.Path, err)
	}
	if len(payload) == 0 || len(payload[0].Data) == 0 {
		// The appliance answers an empty array for PVs it does not archive.
		return nil, &InvalidPVError{PV: pv}
	}

	rows := payload[0].Data
	if q.LastN > 0 && q.LastN < len(rows) {
		rows = rows[len(rows)-q.LastN:]
	}
	series := &TimeSeries{
		PV:      pv,
		Meta:    payload[0].Meta,
		Samples: make([]Sample, 0, len(rows)),
	}
	for _, row := range rows {
		series.Samples = append(series.Samples, row.sample())
	}
	return series, nil
}

// GetDataSet retrieves several PVs with bounded concurrency. Per-PV fetches
// are independent: the returned map holds every PV that succeeded, and the
// returned error joins the per-PV failures (nil when all succeeded). Callers
// get partial results rather than an aborted batch.
func (c *DataClient) GetDataSet(ctx context.Context, pvs []string, q Query) (map[string]*TimeSeries, error) {
	results := make(map[string]*TimeSeries, len(pvs))
	failures := make(map[string]error)

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, fetchWorkers)
	)
	for _, pv := range pvs {
		wg.Add(1)
		go func(pv string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			series, err := c.GetData(ctx, pv, q)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures[pv] = err
				return
			}
			results[pv] = series
		}(pv)
	}
	wg.Wait()

	if len(failures) == 0 {
		return results, nil
	}
	// Stable error ordering regardless of fetch completion order.
	keys := make([]string, 0, len(failures))
	for pv := range failures {
		keys = append(keys, pv)
	}
	sort.Strings(keys)
	errs := make([]error, 0, len(keys))
	for _, pv := range keys {
		errs = append(errs, failures[pv])
	}
	return results, errors.Join(errs...)
}

// GetDataAt retrieves the archived value of each PV at a single instant,
// using the appliance's getDataAtTime endpoint. PVs the server has no answer
// for are absent from the result.
func (c *DataClient) GetDataAt(ctx context.Context, pvs []string, at time.Time) (map[string]Sample, error) {
	values := url.Values{}
	values.Set("at", FormatTime(at))
	rel := &url.URL{Path: dataAtTimePath, RawQuery: values.Encode()}

	payload := make(map[string]samplePayload)
	if err := c.postJSON(ctx, rel, pvs, &payload); err != nil {
		return nil, mapRetrievalErr("", rel.Path, err)
	}
	result := make(map[string]Sample, len(payload))
	for pv, row := range payload {
		result[pv] = row.sample()
	}
	return result, nil
}

// Span reports the time range covered by a series.
func (s *TimeSeries) Span() (time.Time, time.Time) {
	if len(s.Samples) == 0 {
		return time.Time{}, time.Time{}
	}
	return s.Samples[0].Time, s.Samples[len(s.Samples)-1].Time
}

func (c *DataClient) String() string {
	return fmt.Sprintf("data client for %s", c.URL())
}

func mapRetrievalErr(pv, path string, err error) error {
	var status *statusError
	if errors.As(err, &status) {
		if status.status == 404 && pv != "" {
			return &InvalidPVError{PV: pv}
		}
		return &RetrievalError{URL: path, Status: status.status, Err: err}
	}
	return &RetrievalError{URL: path, Err: err}
}
