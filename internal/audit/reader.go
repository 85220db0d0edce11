package audit

import (
	"context"
	"fmt"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// UserSummary is the denormalized identity attached to each returned entry.
type UserSummary struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UnknownUser marks an actor or target whose record no longer resolves.
var UnknownUser = UserSummary{Name: "unknown"}

// UserDirectory resolves user ids to display names for a page of entries.
type UserDirectory interface {
	Summaries(ctx context.Context, ids []string) (map[string]UserSummary, error)
}

// EntryView is an entry with its actor and target resolved at read time.
type EntryView struct {
	Entry
	Actor  UserSummary `json:"actor"`
	Target UserSummary `json:"target"`
}

// Pagination describes the window a page was cut from.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
	TotalCount int `json:"totalCount"`
}

// Page is one window of the audit trail, most recent first.
type Page struct {
	Logs       []EntryView `json:"logs"`
	Pagination Pagination  `json:"pagination"`
}

// Reader serves the paginated, filterable view of the trail.
type Reader struct {
	store Store
	users UserDirectory
}

// NewReader wires a reader to its entry store and user directory.
func NewReader(store Store, users UserDirectory) *Reader {
	return &Reader{store: store, users: users}
}

// ReadPage returns the requested page. Only the ids appearing on that page
// are resolved to names; ids with no matching record map to UnknownUser.
func (r *Reader) ReadPage(ctx context.Context, page, limit int, action Action) (Page, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	entries, total, err := r.store.List(ctx, Query{
		Offset: (page - 1) * limit,
		Limit:  limit,
		Action: action,
	})
	if err != nil {
		return Page{}, fmt.Errorf("list audit entries: %w", err)
	}

	summaries, err := r.resolve(ctx, entries)
	if err != nil {
		return Page{}, err
	}

	views := make([]EntryView, 0, len(entries))
	for _, e := range entries {
		view := EntryView{Entry: e, Actor: UnknownUser, Target: UnknownUser}
		if s, ok := summaries[e.ActorID]; ok {
			view.Actor = s
		}
		if s, ok := summaries[e.TargetUserID]; ok {
			view.Target = s
		}
		views = append(views, view)
	}

	totalPages := 0
	if total > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return Page{
		Logs: views,
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			TotalPages: totalPages,
			TotalCount: total,
		},
	}, nil
}

func (r *Reader) resolve(ctx context.Context, entries []Entry) (map[string]UserSummary, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	seen := make(map[string]struct{}, len(entries)*2)
	var distinct []string
	for _, e := range entries {
		for _, id := range []string{e.ActorID, e.TargetUserID} {
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			distinct = append(distinct, id)
		}
	}
	summaries, err := r.users.Summaries(ctx, distinct)
	if err != nil {
		return nil, fmt.Errorf("resolve audit identities: %w", err)
	}
	return summaries, nil
}
