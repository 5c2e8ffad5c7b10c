package rbac

import (
	"context"
	"fmt"
	"sort"

	"github.com/platinummonkey/folio/pkg/auth"
)

// MembershipReader lists the groups a user belongs to
type MembershipReader interface {
	GroupIDsForUser(ctx context.Context, userID int64) ([]int64, error)
}

// GrantReader lists the folder and file ids granted to any of the groups
type GrantReader interface {
	ListGrantsForGroups(ctx context.Context, groupIDs []int64) (folderIDs []int64, fileIDs []int64, err error)
}

// Visibility computes read scopes from group memberships and grants
type Visibility struct {
	memberships MembershipReader
	grants      GrantReader
}

// NewVisibility creates a new visibility filter
func NewVisibility(memberships MembershipReader, grants GrantReader) *Visibility {
	return &Visibility{
		memberships: memberships,
		grants:      grants,
	}
}

// ScopeFor returns what user may read. Admin roles are unrestricted; a USER
// sees exactly the folders and files granted to one of their groups.
func (v *Visibility) ScopeFor(ctx context.Context, user *auth.User) (*Scope, error) {
	if user.Role.IsAdmin() {
		return Unrestricted(), nil
	}

	groupIDs, err := v.memberships.GroupIDsForUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load groups for user %d: %w", user.ID, err)
	}
	if len(groupIDs) == 0 {
		return NewScope(nil, nil), nil
	}

	folderIDs, fileIDs, err := v.grants.ListGrantsForGroups(ctx, groupIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load grants for user %d: %w", user.ID, err)
	}
	return NewScope(folderIDs, fileIDs), nil
}

// Scope is a read filter over folders and files
type Scope struct {
	all     bool
	folders map[int64]struct{}
	files   map[int64]struct{}
}

// Unrestricted returns a scope that sees everything
func Unrestricted() *Scope {
	return &Scope{all: true}
}

// NewScope returns a scope limited to the given ids
func NewScope(folderIDs, fileIDs []int64) *Scope {
	s := &Scope{
		folders: make(map[int64]struct{}, len(folderIDs)),
		files:   make(map[int64]struct{}, len(fileIDs)),
	}
	for _, id := range folderIDs {
		s.folders[id] = struct{}{}
	}
	for _, id := range fileIDs {
		s.files[id] = struct{}{}
	}
	return s
}

// All reports whether the scope is unrestricted
func (s *Scope) All() bool {
	return s.all
}

func (s *Scope) CanSeeFolder(id int64) bool {
	if s.all {
		return true
	}
	_, ok := s.folders[id]
	return ok
}

func (s *Scope) CanSeeFile(id int64) bool {
	if s.all {
		return true
	}
	_, ok := s.files[id]
	return ok
}

// FolderIDs returns the visible folder ids in ascending order, or nil for an
// unrestricted scope.
func (s *Scope) FolderIDs() []int64 {
	if s.all {
		return nil
	}
	return sortedKeys(s.folders)
}

// FileIDs returns the visible file ids in ascending order, or nil for an
// unrestricted scope.
func (s *Scope) FileIDs() []int64 {
	if s.all {
		return nil
	}
	return sortedKeys(s.files)
}

func sortedKeys(m map[int64]struct{}) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
