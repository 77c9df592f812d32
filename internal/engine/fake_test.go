package engine

import (
	"context"
	"fmt"

	"github.com/koivu/rolewarden/internal/directory"
)

// fakeDirectory is an in-memory directory + messenger. Mutations update the
// stored snapshots so consecutive runs observe each other's effects.
type fakeDirectory struct {
	server  directory.Server
	roles   map[string]directory.Role
	members map[string]*directory.Member
	order   []string

	grantErrs  map[string]error
	removeErrs map[string]error
	dmErrs     map[string]error
	listErr    error

	grants   []roleCall
	removals []roleCall
	dms      []sentDM
}

type roleCall struct {
	MemberID string
	RoleID   string
	Reason   string
}

type sentDM struct {
	MemberID string
	Text     string
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		server:     directory.Server{ID: "500", Name: "Harbor"},
		roles:      make(map[string]directory.Role),
		members:    make(map[string]*directory.Member),
		grantErrs:  make(map[string]error),
		removeErrs: make(map[string]error),
		dmErrs:     make(map[string]error),
	}
}

func (f *fakeDirectory) addRole(id, name string) {
	f.roles[id] = directory.Role{ID: id, Name: name}
}

func (f *fakeDirectory) addMember(m directory.Member) {
	cp := m
	f.members[m.ID] = &cp
	f.order = append(f.order, m.ID)
}

func (f *fakeDirectory) ResolveServer(_ context.Context, id string) (directory.Server, error) {
	if id != f.server.ID {
		return directory.Server{}, fmt.Errorf("%w: server %s", directory.ErrNotFound, id)
	}
	return f.server, nil
}

func (f *fakeDirectory) ResolveRole(_ context.Context, _, roleID string) (directory.Role, error) {
	r, ok := f.roles[roleID]
	if !ok {
		return directory.Role{}, fmt.Errorf("%w: role %s", directory.ErrNotFound, roleID)
	}
	return r, nil
}

func (f *fakeDirectory) ListMembers(_ context.Context, _ string, visit func(directory.Member) error) error {
	if f.listErr != nil {
		return f.listErr
	}
	for _, id := range f.order {
		if err := visit(*f.members[id]); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeDirectory) FetchMember(_ context.Context, _, memberID string) (directory.Member, error) {
	m, ok := f.members[memberID]
	if !ok {
		return directory.Member{}, fmt.Errorf("%w: member %s", directory.ErrNotFound, memberID)
	}
	return *m, nil
}

func (f *fakeDirectory) GrantRole(_ context.Context, _, memberID, roleID, reason string) error {
	if err := f.grantErrs[memberID]; err != nil {
		return err
	}
	f.grants = append(f.grants, roleCall{MemberID: memberID, RoleID: roleID, Reason: reason})
	if m, ok := f.members[memberID]; ok && !m.HasRole(roleID) {
		m.RoleIDs = append(m.RoleIDs, roleID)
	}
	return nil
}

func (f *fakeDirectory) RemoveRole(_ context.Context, _, memberID, roleID, reason string) error {
	if err := f.removeErrs[memberID]; err != nil {
		return err
	}
	f.removals = append(f.removals, roleCall{MemberID: memberID, RoleID: roleID, Reason: reason})
	if m, ok := f.members[memberID]; ok {
		kept := m.RoleIDs[:0]
		for _, id := range m.RoleIDs {
			if id != roleID {
				kept = append(kept, id)
			}
		}
		m.RoleIDs = kept
	}
	return nil
}

func (f *fakeDirectory) DirectMessage(_ context.Context, memberID, text string) error {
	if err := f.dmErrs[memberID]; err != nil {
		return err
	}
	f.dms = append(f.dms, sentDM{MemberID: memberID, Text: text})
	return nil
}
