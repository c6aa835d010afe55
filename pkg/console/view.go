package console

import (
	"html/template"

	"userconsole/pkg/users"
)

const (
	marginPagesDisplayed = 2
	pageRangeDisplayed   = 3
)

// pageItem is one entry of the pagination bar; Break items render as "...".
type pageItem struct {
	Number int
	Active bool
	Break  bool
}

type consoleView struct {
	Records    []users.User
	Page       int
	TotalPages int
	Pages      []pageItem
	HasPrev    bool
	HasNext    bool
	PrevPage   int
	NextPage   int
	Form       Form
	FormTitle  string
}

func newConsoleView(s State) consoleView {
	v := consoleView{
		Records:    s.Records,
		Page:       s.Page,
		TotalPages: s.TotalPages,
		Pages:      paginate(s.Page, s.TotalPages),
		HasPrev:    s.Page > 1,
		HasNext:    s.Page < s.TotalPages,
		PrevPage:   s.Page - 1,
		NextPage:   s.Page + 1,
		Form:       s.Form,
		FormTitle:  "Create New User",
	}
	if s.Form.Editing {
		v.FormTitle = "Update User"
	}
	return v
}

// paginate lays out page links: the first and last marginPagesDisplayed
// pages, a window of pageRangeDisplayed around current, and single
// breaks for the gaps.
func paginate(current, total int) []pageItem {
	if total <= 0 {
		return nil
	}
	items := make([]pageItem, 0, total)
	if total <= pageRangeDisplayed {
		for n := 1; n <= total; n++ {
			items = append(items, pageItem{Number: n, Active: n == current})
		}
		return items
	}

	selected := current - 1
	left := pageRangeDisplayed / 2
	right := pageRangeDisplayed - left
	if selected > total-right {
		right = total - selected
		left = pageRangeDisplayed - right
	} else if selected < left {
		left = selected
		right = pageRangeDisplayed - left
	}

	for index := 0; index < total; index++ {
		n := index + 1
		switch {
		case n <= marginPagesDisplayed,
			n > total-marginPagesDisplayed,
			index >= selected-left && index <= selected+right:
			items = append(items, pageItem{Number: n, Active: n == current})
		case len(items) > 0 && !items[len(items)-1].Break:
			items = append(items, pageItem{Break: true})
		}
	}
	return items
}

var consoleTemplate = template.Must(template.New("console").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>User Management</title>
</head>
<body>
<div class="App">
  <h1 class="app-title">User Management</h1>
  <div class="user-container">
    <form method="post" action="/form/new"><button type="submit">Create New User</button></form>
    <table>
      <thead><tr><th>ID</th><th>Name</th><th>Email</th><th>Actions</th></tr></thead>
      <tbody>
      {{range .Records}}
        <tr>
          <td>{{.ID}}</td>
          <td>{{.Name}}</td>
          <td>{{.Email}}</td>
          <td>
            <form method="post" action="/form/edit/{{.ID}}" style="display:inline"><button type="submit">Update</button></form>
            <form method="post" action="/users/{{.ID}}/delete" style="display:inline"><button type="submit">Delete</button></form>
          </td>
        </tr>
      {{end}}
      </tbody>
    </table>
    <ul class="pagination">
      {{if .HasPrev}}<li class="previous"><form method="post" action="/page/{{.PrevPage}}"><button type="submit">&laquo;</button></form></li>{{else}}<li class="previous disabled">&laquo;</li>{{end}}
      {{range .Pages}}
        {{if .Break}}<li>...</li>
        {{else if .Active}}<li class="active">{{.Number}}</li>
        {{else}}<li><form method="post" action="/page/{{.Number}}"><button type="submit">{{.Number}}</button></form></li>{{end}}
      {{end}}
      {{if .HasNext}}<li class="next"><form method="post" action="/page/{{.NextPage}}"><button type="submit">&raquo;</button></form></li>{{else}}<li class="next disabled">&raquo;</li>{{end}}
    </ul>
  </div>
  {{if .Form.Open}}
  <div class="modal">
    <h2>{{.FormTitle}}</h2>
    <form method="post" action="/form/save">
      <label for="formName">Name</label>
      <input id="formName" type="text" name="name" placeholder="Enter name" value="{{.Form.Name}}">
      <label for="formEmail">Email</label>
      <input id="formEmail" type="email" name="email" placeholder="Enter email" value="{{.Form.Email}}">
      <button type="submit">Save Changes</button>
    </form>
    <form method="post" action="/form/close"><button type="submit">Close</button></form>
  </div>
  {{end}}
</div>
<script>
(function () {
  var scheme = location.protocol === "https:" ? "wss://" : "ws://";
  function connect() {
    var ws = new WebSocket(scheme + location.host + "/ws/console");
    ws.onmessage = function (e) {
      var frame = JSON.parse(e.data);
      if (frame.event_type === "state") { location.reload(); }
    };
    ws.onclose = function () { setTimeout(connect, 2000); };
  }
  connect();
})();
</script>
</body>
</html>
`))
