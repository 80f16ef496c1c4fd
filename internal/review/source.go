package review

import (
	"context"
	"strconv"

	"github.com/rs/zerolog"

	"accessreview/internal/directory"
	"accessreview/internal/domain"
	"accessreview/internal/gitlab"
)

// AccountType classifies a registered account identifier.
type AccountType string

const (
	AccountProject AccountType = "project"
	AccountGroup   AccountType = "group"
	AccountUnknown AccountType = "unknown"
)

// Membership is one account's discovered principal set. MemberIDs and
// OwnerIDs are populated only by sources exposing explicit membership
// and ownership lists (directory groups); the source-control API
// instead carries a per-member access level.
type Membership struct {
	Principals []domain.Principal
	MemberIDs  map[string]struct{}
	OwnerIDs   map[string]struct{}
}

// Source abstracts one external membership system behind the shared
// review pipeline.
type Source interface {
	Name() string
	// ResolveType classifies an account identifier. Probe failures
	// other than not-found propagate so that auth or connectivity
	// faults are not mistaken for absent accounts.
	ResolveType(ctx context.Context, reg domain.Registration) (AccountType, error)
	// ListMembers fetches the account's principals. Transport failures
	// are logged and yield an empty membership, never an error: one
	// account's outage must not sink the batch.
	ListMembers(ctx context.Context, account string, typ AccountType) (Membership, error)
	// GetPrincipal enriches a discovered principal and returns its
	// manager's uid ("" when unknown). An error means the principal's
	// core profile is unavailable and the principal is skipped.
	GetPrincipal(ctx context.Context, p domain.Principal) (domain.Principal, string, error)
}

// GitLabSource drives the source-control membership API. Manager
// discovery still goes through the directory, keyed by username.
type GitLabSource struct {
	GitLab    *gitlab.Client
	Directory DirectoryAPI
	Log       zerolog.Logger
}

func (s *GitLabSource) Name() string { return domain.SourceGitLab }

func (s *GitLabSource) ResolveType(ctx context.Context, reg domain.Registration) (AccountType, error) {
	if _, err := s.GitLab.GetProject(ctx, reg.AccountName); err == nil {
		return AccountProject, nil
	} else if !gitlab.IsNotFound(err) {
		return AccountUnknown, err
	}
	if _, err := s.GitLab.GetGroup(ctx, reg.AccountName); err == nil {
		return AccountGroup, nil
	} else if !gitlab.IsNotFound(err) {
		return AccountUnknown, err
	}
	return AccountUnknown, nil
}

func (s *GitLabSource) ListMembers(ctx context.Context, account string, typ AccountType) (Membership, error) {
	var members []gitlab.Member
	var err error
	switch typ {
	case AccountProject:
		members, err = s.GitLab.ListProjectMembers(ctx, account)
	case AccountGroup:
		members, err = s.GitLab.ListGroupMembers(ctx, account)
	default:
		return Membership{}, nil
	}
	if err != nil {
		s.Log.Warn().Err(err).Str("account", account).Str("type", string(typ)).Msg("membership fetch failed")
		return Membership{}, nil
	}
	mem := Membership{Principals: make([]domain.Principal, 0, len(members))}
	for _, m := range members {
		mem.Principals = append(mem.Principals, domain.Principal{
			ID:          strconv.FormatInt(m.ID, 10),
			Username:    m.Username,
			DisplayName: m.Name,
			State:       m.State,
			AccessLevel: m.AccessLevel,
		})
	}
	return mem, nil
}

func (s *GitLabSource) GetPrincipal(ctx context.Context, p domain.Principal) (domain.Principal, string, error) {
	// Member rows usually carry the full profile; backfill from the
	// user endpoint when the listing left the name out.
	if p.DisplayName == "" {
		if id, err := strconv.ParseInt(p.ID, 10, 64); err == nil {
			if u, err := s.GitLab.GetUser(ctx, id); err == nil {
				p.DisplayName = u.Name
				if p.Username == "" {
					p.Username = u.Username
				}
			} else {
				s.Log.Debug().Err(err).Str("principal", p.ID).Msg("user profile backfill failed")
			}
		}
	}
	// A directory miss only costs the manager hop.
	if s.Directory == nil {
		return p, "", nil
	}
	prof, err := s.Directory.GetUser(ctx, p.Username)
	if err != nil {
		s.Log.Debug().Err(err).Str("principal", p.Username).Msg("directory profile unavailable for gitlab member")
		return p, "", nil
	}
	if p.DisplayName == "" && prof.CN != "" {
		p.DisplayName = prof.CN
	}
	uid, _ := directory.ParseUID(prof.Manager)
	return p, uid, nil
}

// DirectorySource drives the identity-directory group API. The account
// type is already known from the registration, so no probing happens.
type DirectorySource struct {
	Directory *directory.Client
	Log       zerolog.Logger
}

func (s *DirectorySource) Name() string { return domain.SourceRover }

func (s *DirectorySource) ResolveType(ctx context.Context, reg domain.Registration) (AccountType, error) {
	return AccountGroup, nil
}

func (s *DirectorySource) ListMembers(ctx context.Context, account string, typ AccountType) (Membership, error) {
	g, err := s.Directory.SearchGroup(ctx, account)
	if err != nil {
		s.Log.Warn().Err(err).Str("account", account).Msg("group search failed")
		return Membership{}, nil
	}
	mem := Membership{
		MemberIDs: extractUIDs(g.MemberUIDs),
		OwnerIDs:  extractUIDs(g.OwnerUIDs),
	}
	// Union of members and owners so principals holding both roles are
	// fetched once.
	seen := make(map[string]struct{}, len(mem.MemberIDs)+len(mem.OwnerIDs))
	for uid := range mem.MemberIDs {
		seen[uid] = struct{}{}
	}
	for uid := range mem.OwnerIDs {
		seen[uid] = struct{}{}
	}
	for uid := range seen {
		mem.Principals = append(mem.Principals, domain.Principal{ID: uid, Username: uid})
	}
	return mem, nil
}

func (s *DirectorySource) GetPrincipal(ctx context.Context, p domain.Principal) (domain.Principal, string, error) {
	prof, err := s.Directory.GetUser(ctx, p.ID)
	if err != nil {
		return p, "", err
	}
	if prof.CN != "" {
		p.DisplayName = prof.CN
	} else {
		p.DisplayName = p.ID
	}
	uid, _ := directory.ParseUID(prof.Manager)
	return p, uid, nil
}

// extractUIDs pulls raw identifiers out of DN-like entries, discarding
// anything that does not carry a leading uid attribute.
func extractUIDs(entries []string) map[string]struct{} {
	out := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if uid, ok := directory.ParseUID(e); ok {
			out[uid] = struct{}{}
		}
	}
	return out
}
