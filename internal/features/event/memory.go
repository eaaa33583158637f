package event

import (
	"context"
	"slices"
	"sort"
	"sync"
)

// MemoryStore keeps events in process. Where clauses are not interpreted.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
	// Failures makes RangeEvents and CountEvents fail for a device id.
	Failures map[string]error
}

func NewMemoryStore(records ...Record) *MemoryStore {
	s := &MemoryStore{}
	s.Insert(records...)
	return s
}

func (s *MemoryStore) Insert(records ...Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
	sort.SliceStable(s.records, func(i, j int) bool {
		return s.records[i].Timestamp < s.records[j].Timestamp
	})
}

func (s *MemoryStore) RangeEvents(ctx context.Context, q RangeQuery, h Handler) ([]*Record, error) {
	matched, err := s.selectRecords(q)
	if err != nil {
		return nil, err
	}
	if q.fetchDescending() {
		slices.Reverse(matched)
	}
	if q.Limit >= 0 && int64(len(matched)) > q.Limit {
		matched = matched[:q.Limit]
	}
	return deliver(orderForDelivery(matched, q), h), nil
}

func (s *MemoryStore) CountEvents(ctx context.Context, q RangeQuery) (int64, error) {
	matched, err := s.selectRecords(q)
	if err != nil {
		return 0, err
	}
	return clampCount(int64(len(matched)), q), nil
}

func (s *MemoryStore) selectRecords(q RangeQuery) ([]*Record, error) {
	if err, ok := s.Failures[q.DeviceID]; ok && err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Record
	for i := range s.records {
		r := s.records[i]
		if r.AccountID != q.AccountID {
			continue
		}
		if q.DeviceID != "" && r.DeviceID != q.DeviceID {
			continue
		}
		if q.Filter != nil {
			if v, ok := r.Field(q.Filter.Field); !ok || v != q.Filter.Value {
				continue
			}
		}
		if q.TimeStart > 0 && r.Timestamp < q.TimeStart {
			continue
		}
		if q.TimeEnd > 0 && r.Timestamp > q.TimeEnd {
			continue
		}
		if len(q.StatusCodes) > 0 && !slices.Contains(q.StatusCodes, r.StatusCode) {
			continue
		}
		if q.ValidGPSRequired && !r.IsValidGPS() {
			continue
		}
		// fresh copy per query; pipeline links are per call
		out = append(out, &r)
	}
	return out, nil
}
