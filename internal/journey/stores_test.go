package journey

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ventline/ventline-api/internal/model"
	"github.com/ventline/ventline-api/internal/repository"
)

// memStore is an in-memory stand-in for the MySQL repositories.  A single
// mutex provides the linearizability the real stores get from row locking,
// which lets the concurrency properties be exercised without a database.
type memStore struct {
	mu        sync.Mutex
	journeys  map[string]model.Journey
	links     map[string]model.DeviceLink
	keys      map[string]model.IdentityKey
	tokens    map[string]model.MigrationToken
	stats     map[string]model.DeviceStats
	messages  map[string]model.Message
	responses map[string]model.Response

	failRepoint     bool
	failStatsUpsert bool
}

func newMemStore() *memStore {
	return &memStore{
		journeys:  make(map[string]model.Journey),
		links:     make(map[string]model.DeviceLink),
		keys:      make(map[string]model.IdentityKey),
		tokens:    make(map[string]model.MigrationToken),
		stats:     make(map[string]model.DeviceStats),
		messages:  make(map[string]model.Message),
		responses: make(map[string]model.Response),
	}
}

// --- LinkStore ---

func (s *memStore) GetLink(_ context.Context, deviceHash string) (model.DeviceLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.links[deviceHash]
	if !ok {
		return model.DeviceLink{}, repository.ErrNotFound
	}
	return l, nil
}

func (s *memStore) GetJourney(_ context.Context, id string) (model.Journey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getJourneyLocked(id)
}

func (s *memStore) getJourneyLocked(id string) (model.Journey, error) {
	j, ok := s.journeys[id]
	if !ok {
		return model.Journey{}, repository.ErrNotFound
	}
	// Copy slices so callers cannot mutate stored state.
	j.DeviceIDs = append([]string(nil), j.DeviceIDs...)
	j.DeviceHashes = append([]string(nil), j.DeviceHashes...)
	return j, nil
}

func (s *memStore) EnsureForDevice(_ context.Context, deviceID, deviceHash string) (model.Journey, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if link, ok := s.links[deviceHash]; ok {
		j, err := s.getJourneyLocked(link.JourneyID)
		return j, false, err
	}
	now := time.Now().UTC()
	j := model.Journey{
		ID:                deviceHash,
		PrimaryDeviceID:   deviceID,
		PrimaryDeviceHash: deviceHash,
		DeviceIDs:         []string{deviceID},
		DeviceHashes:      []string{deviceHash},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	s.journeys[j.ID] = j
	s.links[deviceHash] = model.DeviceLink{DeviceHash: deviceHash, DeviceID: deviceID, JourneyID: j.ID, CreatedAt: now}
	return j, true, nil
}

func (s *memStore) AttachDevice(_ context.Context, journeyID, deviceID, deviceHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.journeys[journeyID]
	if !ok {
		return false, repository.ErrNotFound
	}
	if j.HasDeviceHash(deviceHash) {
		return true, nil
	}
	now := time.Now().UTC()
	if old, ok := s.links[deviceHash]; ok && old.JourneyID != journeyID {
		s.pruneDeviceLocked(old.JourneyID, deviceHash)
	}
	s.links[deviceHash] = model.DeviceLink{DeviceHash: deviceHash, DeviceID: deviceID, JourneyID: journeyID, CreatedAt: now}
	j.DeviceIDs = append(j.DeviceIDs, deviceID)
	j.DeviceHashes = append(j.DeviceHashes, deviceHash)
	j.UpdatedAt = now
	s.journeys[journeyID] = j
	return false, nil
}

func (s *memStore) pruneDeviceLocked(journeyID, deviceHash string) {
	j, ok := s.journeys[journeyID]
	if !ok {
		return
	}
	ids := make([]string, 0, len(j.DeviceIDs))
	hashes := make([]string, 0, len(j.DeviceHashes))
	for i, h := range j.DeviceHashes {
		if h == deviceHash {
			continue
		}
		hashes = append(hashes, h)
		if i < len(j.DeviceIDs) {
			ids = append(ids, j.DeviceIDs[i])
		}
	}
	if len(hashes) == 0 {
		delete(s.journeys, journeyID)
		for kh, k := range s.keys {
			if k.JourneyID == journeyID {
				delete(s.keys, kh)
			}
		}
		return
	}
	j.DeviceIDs, j.DeviceHashes = ids, hashes
	s.journeys[journeyID] = j
}

func (s *memStore) DetachDevice(_ context.Context, journeyID, deviceHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.journeys[journeyID]
	if !ok {
		return false, repository.ErrNotFound
	}
	delete(s.links, deviceHash)
	s.pruneDeviceLocked(journeyID, deviceHash)
	if _, stillThere := s.journeys[journeyID]; !stillThere {
		return true, nil
	}
	j = s.journeys[journeyID]
	if j.PrimaryDeviceHash == deviceHash && len(j.DeviceHashes) > 0 {
		j.PrimaryDeviceHash = j.DeviceHashes[0]
		j.PrimaryDeviceID = j.DeviceIDs[0]
		s.journeys[journeyID] = j
	}
	return false, nil
}

func (s *memStore) SetLastKeyPreview(_ context.Context, journeyID, preview string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.journeys[journeyID]
	if !ok {
		return repository.ErrNotFound
	}
	j.LastKeyPreview = preview
	s.journeys[journeyID] = j
	return nil
}

// --- KeyStore ---

func (s *memStore) Insert(_ context.Context, k model.IdentityKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[k.KeyHash] = k
	return nil
}

func (s *memStore) GetByHash(_ context.Context, keyHash string) (model.IdentityKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[keyHash]
	if !ok {
		return model.IdentityKey{}, repository.ErrNotFound
	}
	return k, nil
}

// --- TokenStore ---

type memTokens struct{ s *memStore }

func (m memTokens) Insert(_ context.Context, t model.MigrationToken) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.tokens[t.TokenHash] = t
	return nil
}

func (m memTokens) Redeem(_ context.Context, tokenHash string, now time.Time) (model.MigrationToken, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	t, ok := m.s.tokens[tokenHash]
	if !ok {
		return model.MigrationToken{}, repository.ErrNotFound
	}
	if t.IsUsed() {
		return model.MigrationToken{}, repository.ErrTokenUsed
	}
	if t.IsExpired(now) {
		return model.MigrationToken{}, repository.ErrTokenExpired
	}
	used := now
	t.UsedAt = &used
	m.s.tokens[tokenHash] = t
	return t, nil
}

// --- StatsStore ---

func (s *memStore) Get(_ context.Context, deviceHash string) (model.DeviceStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stats[deviceHash]
	if !ok {
		return model.DeviceStats{}, repository.ErrNotFound
	}
	return st, nil
}

func (s *memStore) GetWithLegacyFallback(_ context.Context, deviceHash, rawDeviceID string) (model.DeviceStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.stats[deviceHash]; ok {
		return st, nil
	}
	for _, st := range s.stats {
		if st.DeviceID != "" && st.DeviceID == rawDeviceID {
			return st, nil
		}
	}
	return model.DeviceStats{}, repository.ErrNotFound
}

func (s *memStore) Upsert(_ context.Context, st model.DeviceStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failStatsUpsert {
		return errors.New("stats upsert failed")
	}
	s.stats[st.DeviceHash] = st
	return nil
}

func (s *memStore) Delete(_ context.Context, deviceHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stats, deviceHash)
	return nil
}

// --- ContentStore ---

func (s *memStore) MessageIDsByOwnerHash(_ context.Context, deviceHash string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, m := range s.messages {
		if m.DeviceHash == deviceHash {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *memStore) MessageIDsByLegacyID(_ context.Context, rawDeviceID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, m := range s.messages {
		if m.DeviceID != "" && m.DeviceID == rawDeviceID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *memStore) RepointMessage(_ context.Context, id, newOwnerHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failRepoint {
		return errors.New("repoint failed")
	}
	m, ok := s.messages[id]
	if !ok {
		return repository.ErrNotFound
	}
	m.DeviceHash = newOwnerHash
	s.messages[id] = m
	return nil
}

func (s *memStore) ResponseIDsByOwnerHash(_ context.Context, deviceHash string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, r := range s.responses {
		if r.DeviceHash == deviceHash {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *memStore) ResponseIDsByLegacyID(_ context.Context, rawDeviceID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, r := range s.responses {
		if r.DeviceID != "" && r.DeviceID == rawDeviceID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *memStore) RepointResponse(_ context.Context, id, newOwnerHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failRepoint {
		return errors.New("repoint failed")
	}
	r, ok := s.responses[id]
	if !ok {
		return repository.ErrNotFound
	}
	r.DeviceHash = newOwnerHash
	s.responses[id] = r
	return nil
}

func (s *memStore) CountByOwner(_ context.Context, deviceHash, rawDeviceID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.messages {
		if m.DeviceHash == deviceHash || (m.DeviceID != "" && m.DeviceID == rawDeviceID) {
			n++
		}
	}
	for _, r := range s.responses {
		if r.DeviceHash == deviceHash || (r.DeviceID != "" && r.DeviceID == rawDeviceID) {
			n++
		}
	}
	return n, nil
}
