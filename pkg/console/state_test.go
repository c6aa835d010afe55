package console

import (
	"testing"

	"github.com/stretchr/testify/require"

	"userconsole/pkg/users"
)

func fourRecordState() State {
	s := NewState(4)
	s.TotalPages = 2
	s.Records = []users.User{
		{ID: 1, Name: "a"}, {ID: 2, Name: "b"}, {ID: 3, Name: "c"}, {ID: 4, Name: "d"},
	}
	return s
}

func ids(records []users.User) []int64 {
	out := make([]int64, 0, len(records))
	for _, u := range records {
		out = append(out, u.ID)
	}
	return out
}

func TestPageLoaded_DiscardsStaleGeneration(t *testing.T) {
	s := NewState(4)
	s, first := BeginLoad(s)
	s, second := BeginLoad(s)

	next, applied := PageLoaded(s, first, 1, users.Page{Data: []users.User{{ID: 1}}, TotalPages: 1})
	require.False(t, applied)
	require.Empty(t, next.Records)

	next, applied = PageLoaded(s, second, 2, users.Page{Data: []users.User{{ID: 5}}, TotalPages: 2})
	require.True(t, applied)
	require.Equal(t, []int64{5}, ids(next.Records))
	require.Equal(t, 2, next.Page)
	require.Equal(t, 2, next.TotalPages)
}

func TestPageLoaded_NeverExceedsPageSize(t *testing.T) {
	s, gen := BeginLoad(NewState(2))

	next, applied := PageLoaded(s, gen, 1, users.Page{
		Data:       []users.User{{ID: 1}, {ID: 2}, {ID: 3}},
		TotalPages: 2,
	})

	require.True(t, applied)
	require.Len(t, next.Records, 2)
}

func TestPastLastPage(t *testing.T) {
	s := NewState(4)
	s.Page, s.TotalPages = 4, 3
	page, past := PastLastPage(s)
	require.True(t, past)
	require.Equal(t, 3, page)

	s.Page, s.TotalPages = 1, 0
	_, past = PastLastPage(s)
	require.False(t, past)
}

func TestCreateTargetPage(t *testing.T) {
	s := fourRecordState()
	s.TotalPages = 1
	require.Equal(t, 2, CreateTargetPage(s))

	s.Records = s.Records[:3]
	require.Equal(t, 1, CreateTargetPage(s))
}

func TestApplyCreated_IsIdempotent(t *testing.T) {
	s := NewState(4)
	u := users.User{ID: 7, Name: "n", Email: "e"}

	once := ApplyCreated(s, u)
	twice := ApplyCreated(once, u)

	require.Equal(t, []int64{7}, ids(once.Records))
	require.Equal(t, once, twice)
	require.Empty(t, s.Records)
}

func TestApplyUpdated(t *testing.T) {
	s := fourRecordState()

	next := ApplyUpdated(s, users.User{ID: 2, Name: "B", Email: "b@x"})
	require.Equal(t, "B", next.Records[1].Name)
	require.Equal(t, "b", s.Records[1].Name)

	same := ApplyUpdated(s, users.User{ID: 99, Name: "ghost"})
	require.Equal(t, s, same)
}

func TestPatchAndRevert(t *testing.T) {
	s := fourRecordState()

	patched, prev, ok := PatchRecord(s, 3, "C", "c@x")
	require.True(t, ok)
	require.Equal(t, users.User{ID: 3, Name: "c"}, prev)
	require.Equal(t, "C", patched.Records[2].Name)

	reverted := RevertPatch(patched, users.User{ID: 3, Name: "C", Email: "c@x"}, prev)
	require.Equal(t, prev, reverted.Records[2])

	// A newer remote value is not clobbered by the revert.
	remote := ApplyUpdated(patched, users.User{ID: 3, Name: "remote"})
	kept := RevertPatch(remote, users.User{ID: 3, Name: "C", Email: "c@x"}, prev)
	require.Equal(t, "remote", kept.Records[2].Name)
}

func TestRemoveAndReinsert(t *testing.T) {
	s := fourRecordState()

	next, removed, index, ok := RemoveRecord(s, 2)
	require.True(t, ok)
	require.Equal(t, 1, index)
	require.Equal(t, []int64{1, 3, 4}, ids(next.Records))

	restored := ReinsertRecord(next, removed, index)
	require.Equal(t, []int64{1, 2, 3, 4}, ids(restored.Records))
	require.Equal(t, restored, ReinsertRecord(restored, removed, index))
}

func TestApplyDeleted_ExternalDeleteKeepsPage(t *testing.T) {
	s := fourRecordState()

	next, stepped := ApplyDeleted(s, 4)

	require.False(t, stepped)
	require.Equal(t, []int64{1, 2, 3}, ids(next.Records))
	require.Equal(t, 1, next.Page)
}

func TestApplyDeleted_AbsentIDIsNoop(t *testing.T) {
	s := fourRecordState()
	s, _ = ApplyDeleted(s, 4)

	next, stepped := ApplyDeleted(s, 4)

	require.False(t, stepped)
	require.Equal(t, s, next)
}

func TestApplyDeleted_SoleRecordStepsBackOnce(t *testing.T) {
	s := NewState(4)
	s.Page, s.TotalPages = 3, 3
	s.Records = []users.User{{ID: 9}}

	next, stepped := ApplyDeleted(s, 9)

	require.True(t, stepped)
	require.Equal(t, 2, next.Page)
}

func TestApplyDeleted_SoleRecordOnFirstPage(t *testing.T) {
	s := NewState(4)
	s.Records = []users.User{{ID: 9}}

	next, stepped := ApplyDeleted(s, 9)

	require.False(t, stepped)
	require.Equal(t, 1, next.Page)
	require.Empty(t, next.Records)
}

func TestFormReducers(t *testing.T) {
	s := fourRecordState()

	created := OpenCreateForm(s)
	require.Equal(t, Form{Open: true}, created.Form)

	edit, err := OpenEditForm(s, 2)
	require.NoError(t, err)
	require.Equal(t, Form{Open: true, Editing: true, TargetID: 2, Name: "b"}, edit.Form)

	_, err = OpenEditForm(s, 42)
	require.ErrorIs(t, err, ErrRecordNotFound)

	filled := FillForm(edit, "x", "y")
	require.Equal(t, "x", filled.Form.Name)
	require.Equal(t, "y", filled.Form.Email)

	require.Equal(t, Form{}, CloseForm(filled).Form)
}
