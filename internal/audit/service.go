// Package audit serves the audit timeline recorded by ledger postings.
package audit

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/docstore"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
	maxExportRows   = 5000
)

// Source runs collection queries; docstore.Store satisfies it.
type Source interface {
	Query(ctx context.Context, scope docstore.Scope, q docstore.Query) ([]docstore.Snapshot, error)
}

// Service mengoordinasikan pengambilan data audit.
type Service struct {
	source Source
}

// NewService membuat service audit timeline baru.
func NewService(source Source) *Service {
	return &Service{source: source}
}

// Timeline returns one page of audit records, newest first.
func (s *Service) Timeline(ctx context.Context, scope docstore.Scope, filters TimelineFilters) (Result, error) {
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	rows, err := s.load(ctx, scope, filters)
	if err != nil {
		return Result{}, err
	}
	offset := (page - 1) * pageSize
	if offset > len(rows) {
		offset = len(rows)
	}
	end := offset + pageSize
	hasNext := end < len(rows)
	if !hasNext {
		end = len(rows)
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: rows[offset:end], Paging: paging}, nil
}

// Export returns every matching record up to the export cap.
func (s *Service) Export(ctx context.Context, scope docstore.Scope, filters TimelineFilters) ([]shared.AuditLog, error) {
	rows, err := s.load(ctx, scope, filters)
	if err != nil {
		return nil, err
	}
	if len(rows) > maxExportRows {
		rows = rows[:maxExportRows]
	}
	return rows, nil
}

func (s *Service) load(ctx context.Context, scope docstore.Scope, filters TimelineFilters) ([]shared.AuditLog, error) {
	if s.source == nil {
		return nil, errors.New("audit: source not configured")
	}
	q := docstore.Query{Collection: shared.AuditCollection}
	for _, f := range [][2]string{
		{"actorId", filters.Actor},
		{"entity", filters.Entity},
		{"entityId", filters.EntityID},
		{"action", filters.Action},
	} {
		if value := strings.TrimSpace(f[1]); value != "" {
			q.Filters = append(q.Filters, docstore.Where(f[0], docstore.OpEq, value))
		}
	}

	snaps, err := s.source.Query(ctx, scope, q)
	if err != nil {
		return nil, err
	}
	out := make([]shared.AuditLog, 0, len(snaps))
	for _, snap := range snaps {
		var log shared.AuditLog
		if err := snap.DataTo(&log); err != nil {
			return nil, err
		}
		if !filters.From.IsZero() && log.At.Before(filters.From) {
			continue
		}
		if !filters.To.IsZero() && log.At.After(filters.To) {
			continue
		}
		out = append(out, log)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.After(out[j].At) })
	return out, nil
}
