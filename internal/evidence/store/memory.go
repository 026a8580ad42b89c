package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"vouch/internal/evidence/models"
	id "vouch/pkg/domain"
	"vouch/pkg/platform/sentinel"
	"vouch/pkg/platform/tx"
)

type fileKey struct {
	tenant id.TenantID
	file   id.EvidenceFileID
}

// InMemoryFileStore keeps evidence files keyed by (tenant, id).
type InMemoryFileStore struct {
	mu    sync.RWMutex
	files map[fileKey]*models.EvidenceFile
}

func NewInMemoryFileStore() *InMemoryFileStore {
	return &InMemoryFileStore{files: make(map[fileKey]*models.EvidenceFile)}
}

func (s *InMemoryFileStore) Save(ctx context.Context, file *models.EvidenceFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := fileKey{file.TenantID, file.ID}
	if _, exists := s.files[key]; exists {
		return fmt.Errorf("evidence file %s: %w", file.ID, sentinel.ErrAlreadyUsed)
	}
	copied := *file
	s.files[key] = &copied
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.files, key)
	})
	return nil
}

func (s *InMemoryFileStore) FindByID(_ context.Context, tenantID id.TenantID, fileID id.EvidenceFileID) (*models.EvidenceFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[fileKey{tenantID, fileID}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *f
	return &copied, nil
}

// MarkConverted moves a CONVERT_PENDING file to READY with viewKey.
func (s *InMemoryFileStore) MarkConverted(ctx context.Context, tenantID id.TenantID, fileID id.EvidenceFileID, viewKey string) (*models.EvidenceFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[fileKey{tenantID, fileID}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if !f.Status.CanTransitionTo(models.FileStatusReady) {
		return nil, sentinel.ErrInvalidState
	}
	f.Status = models.FileStatusReady
	f.ViewKey = viewKey
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		f.Status = models.FileStatusConvertPending
		f.ViewKey = ""
	})
	copied := *f
	return &copied, nil
}

func (s *InMemoryFileStore) get(key fileKey) (models.EvidenceFile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[key]
	if !ok {
		return models.EvidenceFile{}, false
	}
	return *f, true
}

type linkKey struct {
	tenant  id.TenantID
	request id.RequestID
	file    id.EvidenceFileID
}

// InMemoryLinkStore keeps request-evidence links. It reads file fields from
// the file store it was built with to answer joined queries.
type InMemoryLinkStore struct {
	mu     sync.RWMutex
	links  []models.Link
	unique map[linkKey]struct{}
	files  *InMemoryFileStore
}

func NewInMemoryLinkStore(files *InMemoryFileStore) *InMemoryLinkStore {
	return &InMemoryLinkStore{
		unique: make(map[linkKey]struct{}),
		files:  files,
	}
}

// Create inserts the link unless the (tenant, request, file) triple exists.
func (s *InMemoryLinkStore) Create(ctx context.Context, link *models.Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := linkKey{link.TenantID, link.RequestID, link.EvidenceFileID}
	if _, exists := s.unique[key]; exists {
		return sentinel.ErrAlreadyUsed
	}
	s.unique[key] = struct{}{}
	s.links = append(s.links, *link)
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.unique, key)
		s.links = slices.DeleteFunc(s.links, func(l models.Link) bool { return l.ID == link.ID })
	})
	return nil
}

func (s *InMemoryLinkStore) ListByRequest(_ context.Context, tenantID id.TenantID, requestID id.RequestID) ([]models.LinkedEvidence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.LinkedEvidence{}
	for _, l := range s.links {
		if l.TenantID != tenantID || l.RequestID != requestID {
			continue
		}
		f, ok := s.files.get(fileKey{tenantID, l.EvidenceFileID})
		if !ok {
			continue
		}
		out = append(out, models.LinkedEvidence{
			EvidenceFileID: f.ID,
			OriginalName:   f.OriginalName,
			MimeType:       f.MimeType,
			SizeBytes:      f.SizeBytes,
			Status:         f.Status,
			LinkedAt:       l.CreatedAt,
			LinkedBy:       l.LinkedBy,
		})
	}
	slices.SortStableFunc(out, func(a, b models.LinkedEvidence) int {
		return a.LinkedAt.Compare(b.LinkedAt)
	})
	return out, nil
}

// LatestLinkedAt returns the newest link time for the request, optionally
// counting only links to READY files.
func (s *InMemoryLinkStore) LatestLinkedAt(_ context.Context, tenantID id.TenantID, requestID id.RequestID, readyOnly bool) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest time.Time
	found := false
	for _, l := range s.links {
		if l.TenantID != tenantID || l.RequestID != requestID {
			continue
		}
		if readyOnly {
			f, ok := s.files.get(fileKey{tenantID, l.EvidenceFileID})
			if !ok || !f.IsReady() {
				continue
			}
		}
		if !found || l.CreatedAt.After(latest) {
			latest = l.CreatedAt
			found = true
		}
	}
	return latest, found, nil
}
