package api

import (
	"context"

	"github.com/heitorfr/wahook/internal/wa"
)

// DirectoryOps are the transport's contact and group lookups.
type DirectoryOps interface {
	LookupUser(ctx context.Context, phone string) (*wa.UserInfo, error)
	GroupInfo(ctx context.Context, jid string) (*wa.GroupDetails, error)
	JoinedGroups(ctx context.Context) ([]wa.GroupSummary, error)
}

// Directory answers contact and group queries against the live
// session.
type Directory struct {
	gate Gate
	ops  DirectoryOps
}

// NewDirectory creates the lookup surface.
func NewDirectory(gate Gate, ops DirectoryOps) *Directory {
	return &Directory{gate: gate, ops: ops}
}

// User looks up an account by phone number.
func (d *Directory) User(ctx context.Context, phone string) (*wa.UserInfo, error) {
	if d.gate.ActiveSession() == nil {
		return nil, ErrNotReady
	}
	return d.ops.LookupUser(ctx, phone)
}

// Group fetches full metadata for one group JID.
func (d *Directory) Group(ctx context.Context, jid string) (*wa.GroupDetails, error) {
	if d.gate.ActiveSession() == nil {
		return nil, ErrNotReady
	}
	return d.ops.GroupInfo(ctx, jid)
}

// Groups lists all joined groups.
func (d *Directory) Groups(ctx context.Context) ([]wa.GroupSummary, error) {
	if d.gate.ActiveSession() == nil {
		return nil, ErrNotReady
	}
	return d.ops.JoinedGroups(ctx)
}
