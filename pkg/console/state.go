package console

import (
	"errors"

	"userconsole/pkg/users"
)

var (
	ErrRecordNotFound = errors.New("record not on current page")
	ErrFormClosed     = errors.New("form is not open")
	ErrInvalidPage    = errors.New("invalid page")
)

// Form is the edit buffer behind the create/update dialog.
type Form struct {
	Open     bool   `json:"open"`
	Editing  bool   `json:"editing"`
	TargetID int64  `json:"target_id,omitempty"`
	Name     string `json:"name"`
	Email    string `json:"email"`
}

// State is everything the console displays. Reducers below never mutate
// their input; they return an updated copy.
type State struct {
	Records    []users.User `json:"records"`
	Page       int          `json:"page"`
	TotalPages int          `json:"total_pages"`
	PageSize   int          `json:"page_size"`
	Form       Form         `json:"form"`
	Generation uint64       `json:"generation"`
}

func NewState(pageSize int) State {
	return State{
		Records:    []users.User{},
		Page:       1,
		TotalPages: 1,
		PageSize:   pageSize,
	}
}

func (s State) clone() State {
	out := s
	out.Records = append(make([]users.User, 0, len(s.Records)), s.Records...)
	return out
}

func indexOf(records []users.User, id int64) int {
	for i, u := range records {
		if u.ID == id {
			return i
		}
	}
	return -1
}

// BeginLoad reserves a generation for a page fetch. Only the response
// carrying the latest generation may replace the record list.
func BeginLoad(s State) (State, uint64) {
	s = s.clone()
	s.Generation++
	return s, s.Generation
}

// PageLoaded applies a fetched page if gen is still current.
func PageLoaded(s State, gen uint64, pageNumber int, p users.Page) (State, bool) {
	if gen != s.Generation {
		return s, false
	}
	s = s.clone()
	records := p.Data
	if len(records) > s.PageSize {
		records = records[:s.PageSize]
	}
	s.Records = append(make([]users.User, 0, len(records)), records...)
	s.Page = pageNumber
	s.TotalPages = p.TotalPages
	return s, true
}

// PastLastPage reports the page to reload when the current page lies
// beyond the backend's page count.
func PastLastPage(s State) (int, bool) {
	if s.TotalPages >= 1 && s.Page > s.TotalPages {
		return s.TotalPages, true
	}
	return 0, false
}

// CreateTargetPage is the page to show after a successful create: the
// current one, or one past the last page when the current page is full.
func CreateTargetPage(s State) int {
	if len(s.Records)+1 > s.PageSize {
		return s.TotalPages + 1
	}
	return s.Page
}

// ApplyCreated appends u unless a record with the same id is shown.
func ApplyCreated(s State, u users.User) State {
	if indexOf(s.Records, u.ID) >= 0 {
		return s
	}
	s = s.clone()
	s.Records = append(s.Records, u)
	return s
}

// ApplyUpdated replaces the record with u's id in place.
func ApplyUpdated(s State, u users.User) State {
	i := indexOf(s.Records, u.ID)
	if i < 0 {
		return s
	}
	s = s.clone()
	s.Records[i] = u
	return s
}

// PatchRecord sets name and email on record id and returns the prior value.
func PatchRecord(s State, id int64, name, email string) (State, users.User, bool) {
	i := indexOf(s.Records, id)
	if i < 0 {
		return s, users.User{}, false
	}
	prev := s.Records[i]
	s = s.clone()
	s.Records[i].Name = name
	s.Records[i].Email = email
	return s, prev, true
}

// RevertPatch restores prev if the record still holds the patched value.
func RevertPatch(s State, patched, prev users.User) State {
	i := indexOf(s.Records, prev.ID)
	if i < 0 || s.Records[i] != patched {
		return s
	}
	s = s.clone()
	s.Records[i] = prev
	return s
}

// RemoveRecord drops record id, returning it with its former index.
func RemoveRecord(s State, id int64) (State, users.User, int, bool) {
	i := indexOf(s.Records, id)
	if i < 0 {
		return s, users.User{}, -1, false
	}
	removed := s.Records[i]
	s = s.clone()
	s.Records = append(s.Records[:i], s.Records[i+1:]...)
	return s, removed, i, true
}

// ReinsertRecord puts u back at index unless it is already shown.
func ReinsertRecord(s State, u users.User, index int) State {
	if indexOf(s.Records, u.ID) >= 0 {
		return s
	}
	s = s.clone()
	if index < 0 || index > len(s.Records) {
		index = len(s.Records)
	}
	s.Records = append(s.Records, users.User{})
	copy(s.Records[index+1:], s.Records[index:])
	s.Records[index] = u
	return s
}

// StepBackIfEmpty moves to the previous page when the current, non-first
// page has no records left. It never steps more than once.
func StepBackIfEmpty(s State) (State, bool) {
	if len(s.Records) != 0 || s.Page <= 1 {
		return s, false
	}
	s = s.clone()
	s.Page--
	return s, true
}

// ApplyDeleted removes record id and reports whether the page stepped back
// and must be reloaded. Deleting an absent id is a no-op.
func ApplyDeleted(s State, id int64) (State, bool) {
	next, _, _, removed := RemoveRecord(s, id)
	if !removed {
		return s, false
	}
	return StepBackIfEmpty(next)
}

func OpenCreateForm(s State) State {
	s = s.clone()
	s.Form = Form{Open: true}
	return s
}

func OpenEditForm(s State, id int64) (State, error) {
	i := indexOf(s.Records, id)
	if i < 0 {
		return s, ErrRecordNotFound
	}
	u := s.Records[i]
	s = s.clone()
	s.Form = Form{Open: true, Editing: true, TargetID: u.ID, Name: u.Name, Email: u.Email}
	return s, nil
}

// FillForm keeps the submitted values in the buffer so a failed save can
// be shown again.
func FillForm(s State, name, email string) State {
	s = s.clone()
	s.Form.Name = name
	s.Form.Email = email
	return s
}

func CloseForm(s State) State {
	s = s.clone()
	s.Form = Form{}
	return s
}
