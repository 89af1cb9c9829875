package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedUser(t *testing.T, s *Store, name, email, phone string) *User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), name, email, phone, "x")
	require.NoError(t, err)
	return u
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateUser(ctx, "Ada", "ada@example.com", "111", "hash")
	require.NoError(t, err)

	_, err = s.CreateUser(ctx, "Imposter", "ada@example.com", "222", "hash")
	require.ErrorIs(t, err, ErrConflict)

	// No second row was created for the duplicate.
	users, err := s.SearchUsers(ctx, "ada@example.com")
	require.NoError(t, err)
	require.Len(t, users, 1)
}

func TestCreateUserDuplicatePhone(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateUser(ctx, "Ada", "ada@example.com", "111", "hash")
	require.NoError(t, err)

	_, err = s.CreateUser(ctx, "Bob", "bob@example.com", "111", "hash")
	require.ErrorIs(t, err, ErrConflict)
}

func TestUserLookups(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, s, "Ada", "ada@example.com", "111")

	byEmail, err := s.UserByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, byEmail.ID)

	byID, err := s.UserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "Ada", byID.Name)

	_, err = s.UserByEmail(ctx, "nobody@example.com")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSearchUsersCaseInsensitive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedUser(t, s, "Ada Lovelace", "ada@example.com", "555-0101")
	seedUser(t, s, "Bob", "bob@example.com", "555-0102")

	for _, query := range []string{"ADA", "lovelace", "ada@EXAMPLE"} {
		users, err := s.SearchUsers(ctx, query)
		require.NoError(t, err)
		require.Len(t, users, 1, "query %q", query)
		require.Equal(t, "Ada Lovelace", users[0].Name)
	}

	// Phone substring matches both.
	users, err := s.SearchUsers(ctx, "555-01")
	require.NoError(t, err)
	require.Len(t, users, 2)
}

func TestCreateGroupCreatorIsSoleAdmin(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	creator := seedUser(t, s, "Ada", "ada@example.com", "111")
	g, err := s.CreateGroup(ctx, "Eng", creator.ID)
	require.NoError(t, err)
	require.Equal(t, creator.ID, g.CreatedBy)

	admins, err := s.AdminCount(ctx, g.ID)
	require.NoError(t, err)
	require.Equal(t, 1, admins)

	isAdmin, err := s.IsAdmin(ctx, g.ID, creator.ID)
	require.NoError(t, err)
	require.True(t, isAdmin)
}

func TestAddMemberIdempotence(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ada := seedUser(t, s, "Ada", "ada@example.com", "111")
	bob := seedUser(t, s, "Bob", "bob@example.com", "222")
	g, err := s.CreateGroup(ctx, "Eng", ada.ID)
	require.NoError(t, err)

	m, err := s.AddMember(ctx, g.ID, bob.ID)
	require.NoError(t, err)
	require.False(t, m.IsAdmin)

	_, err = s.AddMember(ctx, g.ID, bob.ID)
	require.ErrorIs(t, err, ErrConflict)

	groups, err := s.GroupsForUser(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, groups, 1)
}

func TestSetAdminAndRemoveMember(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ada := seedUser(t, s, "Ada", "ada@example.com", "111")
	bob := seedUser(t, s, "Bob", "bob@example.com", "222")
	g, err := s.CreateGroup(ctx, "Eng", ada.ID)
	require.NoError(t, err)

	require.ErrorIs(t, s.SetAdmin(ctx, g.ID, bob.ID, true), ErrNotFound)

	_, err = s.AddMember(ctx, g.ID, bob.ID)
	require.NoError(t, err)

	require.NoError(t, s.SetAdmin(ctx, g.ID, bob.ID, true))
	isAdmin, err := s.IsAdmin(ctx, g.ID, bob.ID)
	require.NoError(t, err)
	require.True(t, isAdmin)

	require.NoError(t, s.RemoveMember(ctx, g.ID, bob.ID))
	isMember, err := s.IsMember(ctx, g.ID, bob.ID)
	require.NoError(t, err)
	require.False(t, isMember)

	require.ErrorIs(t, s.RemoveMember(ctx, g.ID, bob.ID), ErrNotFound)
}

func TestGroupsForUserRoles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ada := seedUser(t, s, "Ada", "ada@example.com", "111")
	bob := seedUser(t, s, "Bob", "bob@example.com", "222")

	eng, err := s.CreateGroup(ctx, "Eng", ada.ID)
	require.NoError(t, err)
	_, err = s.AddMember(ctx, eng.ID, bob.ID)
	require.NoError(t, err)

	_, err = s.CreateGroup(ctx, "Ops", bob.ID)
	require.NoError(t, err)

	groups, err := s.GroupsForUser(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	byName := map[string]bool{}
	for _, gr := range groups {
		byName[gr.Name] = gr.IsAdmin
	}
	require.False(t, byName["Eng"])
	require.True(t, byName["Ops"])
}

func TestMessagesOrderedWithAuthor(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ada := seedUser(t, s, "Ada", "ada@example.com", "111")
	g, err := s.CreateGroup(ctx, "Eng", ada.ID)
	require.NoError(t, err)

	first, err := s.CreateMessage(ctx, g.ID, ada.ID, "hello", "")
	require.NoError(t, err)
	require.Equal(t, "Ada", first.UserName)
	require.Equal(t, "hello", first.Body)

	second, err := s.CreateMessage(ctx, g.ID, ada.ID, "", "https://files.test/report.pdf")
	require.NoError(t, err)
	require.Equal(t, "https://files.test/report.pdf", second.FileURL)

	messages, err := s.MessagesForGroup(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	require.Equal(t, first.ID, messages[0].ID)
	require.Equal(t, second.ID, messages[1].ID)
	require.True(t, messages[0].ID < messages[1].ID)
}

func TestGroupByIDNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GroupByID(context.Background(), 999)
	require.ErrorIs(t, err, ErrNotFound)
}
