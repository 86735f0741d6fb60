// Package archtest runs an in-process fake Archiver Appliance for tests. It
// serves the retrieval and management endpoints the clients exercise, backed
// by a seeded PV fixture map.
package archtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

// Point is one seeded sample for a fixture PV.
type Point struct {
	Secs     int64   `json:"secs"`
	Nanos    int64   `json:"nanos"`
	Val      float64 `json:"val"`
	Status   int     `json:"status"`
	Severity int     `json:"severity"`
}

// Server is a fake appliance bound to an httptest listener.
type Server struct {
	*httptest.Server

	mu     sync.Mutex
	pvs    map[string][]Point
	paused map[string]bool
}

// New starts a fake appliance seeded with the given PV data. Callers own the
// shutdown via Close.
func New(pvs map[string][]Point) *Server {
	s := &Server{
		pvs:    pvs,
		paused: make(map[string]bool),
	}

	r := chi.NewRouter()
	r.Get("/retrieval/data/getData.json", s.getData)
	r.Post("/retrieval/data/getDataAtTime", s.getDataAtTime)
	r.Route("/mgmt/bpl", func(r chi.Router) {
		r.Get("/getAllPVs", s.getAllPVs)
		r.Get("/getApplianceInfo", s.getApplianceInfo)
		r.Get("/getPVStatus", s.getPVStatus)
		r.Get("/getPVTypeInfo", s.getPVTypeInfo)
		r.Get("/getPVDetails", s.getPVDetails)
		r.Get("/getStoresForPV", s.getStoresForPV)
		r.Get("/archivePV", s.archivePV)
		r.Get("/pauseArchivingPV", s.pausePV)
		r.Get("/resumeArchivingPV", s.resumePV)
		r.Get("/abortArchivingPV", s.abortPV)
		r.Get("/deletePV", s.deletePV)
		r.Get("/changeArchivalParameters", s.archivePV)
	})

	s.Server = httptest.NewServer(r)
	return s
}

// Paused reports whether the fake considers a PV paused.
func (s *Server) Paused(pv string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused[pv]
}

func (s *Server) getData(w http.ResponseWriter, r *http.Request) {
	pv := r.URL.Query().Get("pv")
	s.mu.Lock()
	points, ok := s.pvs[pv]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}

	from, okFrom := parseWireTime(r.URL.Query().Get("from"))
	to, okTo := parseWireTime(r.URL.Query().Get("to"))

	selected := make([]Point, 0, len(points))
	for _, p := range points {
		t := time.Unix(p.Secs, p.Nanos)
		if okFrom && t.Before(from) {
			continue
		}
		if okTo && t.After(to) {
			continue
		}
		selected = append(selected, p)
	}

	writeJSON(w, []map[string]any{{
		"meta": map[string]any{"name": pv, "EGU": "mm", "PREC": "3"},
		"data": selected,
	}})
}

func (s *Server) getDataAtTime(w http.ResponseWriter, r *http.Request) {
	var pvs []string
	if err := json.NewDecoder(r.Body).Decode(&pvs); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	at, okAt := parseWireTime(r.URL.Query().Get("at"))

	s.mu.Lock()
	defer s.mu.Unlock()
	result := make(map[string]Point)
	for _, pv := range pvs {
		points, ok := s.pvs[pv]
		if !ok || len(points) == 0 {
			continue
		}
		var latest Point
		found := false
		for _, p := range points {
			t := time.Unix(p.Secs, p.Nanos)
			if okAt && t.After(at) {
				break
			}
			latest, found = p, true
		}
		if found {
			result[pv] = latest
		}
	}
	writeJSON(w, result)
}

func (s *Server) getAllPVs(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("pv")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	s.mu.Lock()
	names := make([]string, 0, len(s.pvs))
	for pv := range s.pvs {
		if pattern != "" {
			if ok, _ := path.Match(pattern, pv); !ok {
				continue
			}
		}
		names = append(names, pv)
	}
	s.mu.Unlock()

	sort.Strings(names)
	if limit > 0 && limit < len(names) {
		names = names[:limit]
	}
	writeJSON(w, names)
}

func (s *Server) getApplianceInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"identity":         "appliance0",
		"mgmtURL":          s.URL + "/mgmt/bpl",
		"dataRetrievalURL": s.URL + "/retrieval",
	})
}

func (s *Server) getPVStatus(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("pv")

	s.mu.Lock()
	defer s.mu.Unlock()
	statuses := make([]map[string]string, 0)
	for pv := range s.pvs {
		if pattern != "" {
			if ok, _ := path.Match(pattern, pv); !ok {
				continue
			}
		}
		state := "Being archived"
		if s.paused[pv] {
			state = "Paused"
		}
		statuses = append(statuses, map[string]string{
			"pvName":          pv,
			"status":          state,
			"appliance":       "appliance0",
			"connectionState": "true",
			"isMonitored":     "true",
			"samplingPeriod":  "1.0",
		})
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i]["pvName"] < statuses[j]["pvName"] })
	writeJSON(w, statuses)
}

func (s *Server) getPVTypeInfo(w http.ResponseWriter, r *http.Request) {
	pv := r.URL.Query().Get("pv")
	s.mu.Lock()
	_, ok := s.pvs[pv]
	paused := s.paused[pv]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, map[string]any{
		"pvName":            pv,
		"hostName":          "ioc0.example.org",
		"applianceIdentity": "appliance0",
		"DBRType":           "DBR_SCALAR_DOUBLE",
		"paused":            strconv.FormatBool(paused),
		"samplingMethod":    "MONITOR",
		"samplingPeriod":    "1.0",
		"dataStores":        []string{"pb://localhost?name=STS", "pb://localhost?name=LTS"},
	})
}

func (s *Server) getPVDetails(w http.ResponseWriter, r *http.Request) {
	pv := r.URL.Query().Get("pv")
	s.mu.Lock()
	_, ok := s.pvs[pv]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, []map[string]string{
		{"source": "mgmt", "name": "pvName", "value": pv},
		{"source": "engine", "name": "Is this PV currently connected?", "value": "yes"},
	})
}

func (s *Server) getStoresForPV(w http.ResponseWriter, r *http.Request) {
	pv := r.URL.Query().Get("pv")
	s.mu.Lock()
	_, ok := s.pvs[pv]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, []string{"STS", "MTS", "LTS"})
}

func (s *Server) archivePV(w http.ResponseWriter, r *http.Request) {
	pv := r.URL.Query().Get("pv")
	s.mu.Lock()
	if _, ok := s.pvs[pv]; !ok {
		s.pvs[pv] = nil
	}
	s.mu.Unlock()
	writeJSON(w, []map[string]string{{"pvName": pv, "status": "Archive request submitted"}})
}

func (s *Server) pausePV(w http.ResponseWriter, r *http.Request) {
	s.setPaused(w, r, true)
}

func (s *Server) resumePV(w http.ResponseWriter, r *http.Request) {
	s.setPaused(w, r, false)
}

func (s *Server) setPaused(w http.ResponseWriter, r *http.Request, paused bool) {
	pv := r.URL.Query().Get("pv")
	s.mu.Lock()
	_, ok := s.pvs[pv]
	if ok {
		s.paused[pv] = paused
	}
	s.mu.Unlock()
	if !ok {
		writeJSON(w, map[string]string{"validation": "Unable to find PV " + pv})
		return
	}
	writeJSON(w, map[string]string{"pvName": pv, "status": "ok"})
}

func (s *Server) abortPV(w http.ResponseWriter, r *http.Request) {
	pv := r.URL.Query().Get("pv")
	writeJSON(w, map[string]string{"pvName": pv, "status": "ok"})
}

func (s *Server) deletePV(w http.ResponseWriter, r *http.Request) {
	pv := r.URL.Query().Get("pv")
	s.mu.Lock()
	_, ok := s.pvs[pv]
	paused := s.paused[pv]
	if ok && paused {
		delete(s.pvs, pv)
		delete(s.paused, pv)
	}
	s.mu.Unlock()
	switch {
	case !ok:
		writeJSON(w, map[string]string{"validation": "Unable to find PV " + pv})
	case !paused:
		writeJSON(w, map[string]string{"validation": "Cannot delete PV " + pv + " until it is paused"})
	default:
		writeJSON(w, map[string]string{"pvName": pv, "status": "ok"})
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func parseWireTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02T15:04:05.000Z", s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
