// Package filestore is the single-node repository.Store used when no database
// is configured or reachable. State lives in memory and is flushed to a JSON
// file after every mutation.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"carbonmarket-backend/internal/domain"
	"carbonmarket-backend/internal/repository"
)

type snapshot struct {
	NextID        map[string]uint                 `json:"nextId"`
	Projects      map[uint]domain.Project         `json:"projects"`
	Documents     map[uint]domain.Document        `json:"documents"`
	Verifications map[uint]domain.Verification    `json:"verifications"`
	Credits       map[uint]domain.CarbonCredit    `json:"credits"`
	Listings      map[uint]domain.Listing         `json:"listings"`
	Trades        map[uint]domain.Trade           `json:"trades"`
	Positions     map[uint]domain.LendingPosition `json:"positions"`
	Activities    map[uint]domain.Activity        `json:"activities"`
}

func emptySnapshot() *snapshot {
	return &snapshot{
		NextID:        map[string]uint{},
		Projects:      map[uint]domain.Project{},
		Documents:     map[uint]domain.Document{},
		Verifications: map[uint]domain.Verification{},
		Credits:       map[uint]domain.CarbonCredit{},
		Listings:      map[uint]domain.Listing{},
		Trades:        map[uint]domain.Trade{},
		Positions:     map[uint]domain.LendingPosition{},
		Activities:    map[uint]domain.Activity{},
	}
}

// Store implements repository.Store over a JSON file. An empty path keeps
// everything in memory.
type Store struct {
	path string
	mu   sync.RWMutex
	data *snapshot
	now  func() time.Time
}

var _ repository.Store = (*Store)(nil)

// Open loads path if it exists and returns a ready store.
func Open(path string) (*Store, error) {
	s := &Store{path: path, data: emptySnapshot(), now: time.Now}
	if path == "" {
		return s, nil
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("filestore: read %s: %w", path, err)
	}
	if len(raw) == 0 {
		return s, nil
	}
	loaded := emptySnapshot()
	if err := json.Unmarshal(raw, loaded); err != nil {
		return nil, fmt.Errorf("filestore: decode %s: %w", path, err)
	}
	s.data = loaded
	s.data.fill()
	return s, nil
}

// fill replaces nil maps left by an older file.
func (d *snapshot) fill() {
	e := emptySnapshot()
	if d.NextID == nil {
		d.NextID = e.NextID
	}
	if d.Projects == nil {
		d.Projects = e.Projects
	}
	if d.Documents == nil {
		d.Documents = e.Documents
	}
	if d.Verifications == nil {
		d.Verifications = e.Verifications
	}
	if d.Credits == nil {
		d.Credits = e.Credits
	}
	if d.Listings == nil {
		d.Listings = e.Listings
	}
	if d.Trades == nil {
		d.Trades = e.Trades
	}
	if d.Positions == nil {
		d.Positions = e.Positions
	}
	if d.Activities == nil {
		d.Activities = e.Activities
	}
}

func (s *Store) Name() string { return "filestore" }

// Ping checks that the backing directory is still writable.
func (s *Store) Ping(ctx context.Context) error {
	if s.path == "" {
		return nil
	}
	dir := filepath.Dir(s.path)
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("filestore: %s is not a directory", dir)
	}
	return nil
}

// flush must be called with mu held for writing.
func (s *Store) flush() error {
	if s.path == "" {
		return nil
	}
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("filestore: encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("filestore: mkdir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("filestore: write: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("filestore: rename: %w", err)
	}
	return nil
}

func (s *Store) nextID(table string) uint {
	s.data.NextID[table]++
	return s.data.NextID[table]
}

// insert stores row under a freshly allocated id and flushes. A failed flush
// removes the row and hands the id back, leaving no trace of the write.
// Callers hold mu for writing.
func insert[T any](s *Store, m map[uint]T, table string, id uint, row T) error {
	m[id] = row
	if err := s.flush(); err != nil {
		delete(m, id)
		s.data.NextID[table]--
		return err
	}
	return nil
}

// replace overwrites the row at id and flushes, restoring prev on failure.
// Callers hold mu for writing.
func replace[T any](s *Store, m map[uint]T, id uint, prev, row T) error {
	m[id] = row
	if err := s.flush(); err != nil {
		m[id] = prev
		return err
	}
	return nil
}

// list filters m, orders by id and applies the page.
func list[T any](m map[uint]T, keep func(T) bool, desc bool, pg *repository.Page) []T {
	ids := make([]uint, 0, len(m))
	for id, v := range m {
		if keep == nil || keep(v) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		if desc {
			return ids[i] > ids[j]
		}
		return ids[i] < ids[j]
	})
	if pg != nil {
		p := pg.Normalize()
		if p.Offset >= len(ids) {
			ids = nil
		} else {
			ids = ids[p.Offset:]
			if len(ids) > p.Limit {
				ids = ids[:p.Limit]
			}
		}
	}
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id])
	}
	return out
}

// Projects

func (s *Store) CreateProject(ctx context.Context, p *domain.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := *p
	row.ID = s.nextID("projects")
	row.CreatedAt = s.now()
	row.UpdatedAt = row.CreatedAt
	if err := insert(s, s.data.Projects, "projects", row.ID, row); err != nil {
		return err
	}
	*p = row
	return nil
}

func (s *Store) GetProject(ctx context.Context, id uint) (*domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.data.Projects[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (s *Store) ListProjects(ctx context.Context, f repository.ProjectFilter) ([]domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return list(s.data.Projects, func(p domain.Project) bool {
		return (f.OwnerAddress == "" || p.OwnerAddress == f.OwnerAddress) &&
			(f.Status == "" || p.Status == f.Status)
	}, true, &f.Page), nil
}

func (s *Store) UpdateProject(ctx context.Context, p *domain.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.data.Projects[p.ID]
	if !ok {
		return repository.ErrNotFound
	}
	row := *p
	row.UpdatedAt = s.now()
	if err := replace(s, s.data.Projects, p.ID, prev, row); err != nil {
		return err
	}
	p.UpdatedAt = row.UpdatedAt
	return nil
}

func (s *Store) CreateDocument(ctx context.Context, d *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := *d
	row.ID = s.nextID("documents")
	row.CreatedAt = s.now()
	if err := insert(s, s.data.Documents, "documents", row.ID, row); err != nil {
		return err
	}
	*d = row
	return nil
}

func (s *Store) ListDocuments(ctx context.Context, projectID uint) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return list(s.data.Documents, func(d domain.Document) bool { return d.ProjectID == projectID }, false, nil), nil
}

func (s *Store) CreateVerification(ctx context.Context, v *domain.Verification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := *v
	row.ID = s.nextID("verifications")
	row.CreatedAt = s.now()
	if err := insert(s, s.data.Verifications, "verifications", row.ID, row); err != nil {
		return err
	}
	*v = row
	return nil
}

func (s *Store) ListVerifications(ctx context.Context, projectID uint) ([]domain.Verification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return list(s.data.Verifications, func(v domain.Verification) bool { return v.ProjectID == projectID }, true, nil), nil
}

// Credits

func (s *Store) CreateCredit(ctx context.Context, c *domain.CarbonCredit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := *c
	row.ID = s.nextID("credits")
	row.CreatedAt = s.now()
	row.UpdatedAt = row.CreatedAt
	if err := insert(s, s.data.Credits, "credits", row.ID, row); err != nil {
		return err
	}
	*c = row
	return nil
}

func (s *Store) GetCredit(ctx context.Context, id uint) (*domain.CarbonCredit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.data.Credits[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (s *Store) ListCredits(ctx context.Context, f repository.CreditFilter) ([]domain.CarbonCredit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return list(s.data.Credits, func(c domain.CarbonCredit) bool {
		return (f.OwnerAddress == "" || c.OwnerAddress == f.OwnerAddress) &&
			(f.ProjectID == 0 || c.ProjectID == f.ProjectID)
	}, true, &f.Page), nil
}

func (s *Store) UpdateCredit(ctx context.Context, c *domain.CarbonCredit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.data.Credits[c.ID]
	if !ok {
		return repository.ErrNotFound
	}
	row := *c
	row.UpdatedAt = s.now()
	if err := replace(s, s.data.Credits, c.ID, prev, row); err != nil {
		return err
	}
	c.UpdatedAt = row.UpdatedAt
	return nil
}

// Listings

func (s *Store) CreateListing(ctx context.Context, l *domain.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := *l
	row.ID = s.nextID("listings")
	row.CreatedAt = s.now()
	row.UpdatedAt = row.CreatedAt
	if err := insert(s, s.data.Listings, "listings", row.ID, row); err != nil {
		return err
	}
	*l = row
	return nil
}

func (s *Store) GetListing(ctx context.Context, id uint) (*domain.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.data.Listings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &l, nil
}

func (s *Store) ListListings(ctx context.Context, f repository.ListingFilter) ([]domain.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return list(s.data.Listings, func(l domain.Listing) bool {
		return (f.Status == "" || l.Status == f.Status) &&
			(f.SellerAddress == "" || l.SellerAddress == f.SellerAddress) &&
			(f.CreditID == 0 || l.CreditID == f.CreditID)
	}, true, &f.Page), nil
}

func (s *Store) UpdateListing(ctx context.Context, l *domain.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.data.Listings[l.ID]
	if !ok {
		return repository.ErrNotFound
	}
	row := *l
	row.UpdatedAt = s.now()
	if err := replace(s, s.data.Listings, l.ID, prev, row); err != nil {
		return err
	}
	l.UpdatedAt = row.UpdatedAt
	return nil
}

func (s *Store) CreateTrade(ctx context.Context, t *domain.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := *t
	row.ID = s.nextID("trades")
	row.CreatedAt = s.now()
	if err := insert(s, s.data.Trades, "trades", row.ID, row); err != nil {
		return err
	}
	*t = row
	return nil
}

func (s *Store) ListTrades(ctx context.Context, listingID uint) ([]domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return list(s.data.Trades, func(t domain.Trade) bool { return t.ListingID == listingID }, false, nil), nil
}

// Lending positions

func (s *Store) CreatePosition(ctx context.Context, p *domain.LendingPosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.data.Positions {
		if existing.PositionHash == p.PositionHash {
			return fmt.Errorf("filestore: duplicate position hash %s", p.PositionHash)
		}
	}
	row := *p
	row.ID = s.nextID("positions")
	row.CreatedAt = s.now()
	row.UpdatedAt = row.CreatedAt
	if err := insert(s, s.data.Positions, "positions", row.ID, row); err != nil {
		return err
	}
	*p = row
	return nil
}

func (s *Store) GetPosition(ctx context.Context, id uint) (*domain.LendingPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.data.Positions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (s *Store) ListPositions(ctx context.Context, f repository.PositionFilter) ([]domain.LendingPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return list(s.data.Positions, func(p domain.LendingPosition) bool {
		return (f.UserAddress == "" || p.UserAddress == f.UserAddress) &&
			(f.Status == "" || p.Status == f.Status)
	}, true, &f.Page), nil
}

func (s *Store) UpdatePosition(ctx context.Context, p *domain.LendingPosition, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.data.Positions[p.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return repository.ErrConflict
	}
	next := *p
	next.Version = expectedVersion + 1
	next.UpdatedAt = s.now()
	next.CreatedAt = stored.CreatedAt
	next.PositionHash = stored.PositionHash
	if err := replace(s, s.data.Positions, p.ID, stored, next); err != nil {
		return err
	}
	p.Version = next.Version
	p.UpdatedAt = next.UpdatedAt
	return nil
}

// Activities

func (s *Store) CreateActivity(ctx context.Context, a *domain.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := *a
	row.ID = s.nextID("activities")
	row.CreatedAt = s.now()
	if err := insert(s, s.data.Activities, "activities", row.ID, row); err != nil {
		return err
	}
	*a = row
	return nil
}

func (s *Store) ListActivities(ctx context.Context, f repository.ActivityFilter) ([]domain.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return list(s.data.Activities, func(a domain.Activity) bool {
		return (f.UserAddress == "" || a.UserAddress == f.UserAddress) &&
			(f.ActionType == "" || a.ActionType == f.ActionType)
	}, true, &f.Page), nil
}
