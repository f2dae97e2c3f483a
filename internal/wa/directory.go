package wa

import (
	"context"
	"fmt"

	"go.mau.fi/whatsmeow/types"
)

// UserInfo is the result of an account lookup by phone.
type UserInfo struct {
	Phone      string `json:"phone"`
	JID        string `json:"jid"`
	Exists     bool   `json:"exists"`
	IsBusiness bool   `json:"isBusiness"`
}

// GroupMember is one participant of a group.
type GroupMember struct {
	JID     string  `json:"jid"`
	Phone   *string `json:"phone"`
	IsAdmin bool    `json:"isAdmin"`
}

// GroupDetails is the full metadata of one group.
type GroupDetails struct {
	JID          string        `json:"id"`
	Subject      string        `json:"subject"`
	Owner        string        `json:"owner"`
	Size         int           `json:"size"`
	Participants []GroupMember `json:"participants"`
}

// GroupSummary is a joined group as listed in bulk.
type GroupSummary struct {
	JID     string `json:"jid"`
	Subject string `json:"subject"`
	Size    int    `json:"size"`
	IsAdmin bool   `json:"isAdmin"`
}

// LookupUser checks whether a phone number is registered, including
// the business-account flag.
func (a *Adapter) LookupUser(ctx context.Context, phone string) (*UserInfo, error) {
	jid := types.JID{User: phone, Server: types.DefaultUserServer}
	resp, err := a.cli().IsOnWhatsApp(ctx, []string{jid.String()})
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if len(resp) == 0 || !resp[0].IsIn {
		return &UserInfo{Phone: phone, JID: jid.String()}, nil
	}
	return &UserInfo{
		Phone:      phone,
		JID:        resp[0].JID.String(),
		Exists:     true,
		IsBusiness: resp[0].VerifiedName != nil,
	}, nil
}

// GroupInfo fetches full metadata for one group.
func (a *Adapter) GroupInfo(ctx context.Context, jid string) (*GroupDetails, error) {
	gjid, err := ParseJID(jid)
	if err != nil {
		return nil, err
	}
	info, err := a.cli().GetGroupInfo(ctx, gjid)
	if err != nil {
		return nil, fmt.Errorf("group metadata: %w", err)
	}

	members := make([]GroupMember, 0, len(info.Participants))
	for _, p := range info.Participants {
		var phone *string
		if p.JID.Server == types.DefaultUserServer {
			u := p.JID.User
			phone = &u
		}
		members = append(members, GroupMember{
			JID:     p.JID.String(),
			Phone:   phone,
			IsAdmin: p.IsAdmin || p.IsSuperAdmin,
		})
	}
	return &GroupDetails{
		JID:          info.JID.String(),
		Subject:      info.Name,
		Owner:        info.OwnerJID.String(),
		Size:         len(info.Participants),
		Participants: members,
	}, nil
}

// JoinedGroups lists all groups the account participates in.
func (a *Adapter) JoinedGroups(ctx context.Context) ([]GroupSummary, error) {
	cli := a.cli()
	groups, err := cli.GetJoinedGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("joined groups: %w", err)
	}

	var self types.JID
	if cli.Store.ID != nil {
		self = cli.Store.ID.ToNonAD()
	}

	out := make([]GroupSummary, 0, len(groups))
	for _, g := range groups {
		admin := false
		for _, p := range g.Participants {
			if p.JID.ToNonAD() == self && (p.IsAdmin || p.IsSuperAdmin) {
				admin = true
				break
			}
		}
		out = append(out, GroupSummary{
			JID:     g.JID.String(),
			Subject: g.Name,
			Size:    len(g.Participants),
			IsAdmin: admin,
		})
	}
	return out, nil
}
