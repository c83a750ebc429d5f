package testutil

import (
	"testing"

	"github.com/roach88/requerio/internal/dom"
)

// ListPage is a container with two tracked children and a form.
const ListPage = `<!DOCTYPE html>
<html>
<head><title>fixture</title></head>
<body>
<div id="main" class="main" data-user-id="42">
  <ul id="parent">
    <li class="child" id="first">one</li>
    <li class="child active" id="second">two</li>
  </ul>
  <p class="note" style="color: red;">note</p>
</div>
<form id="form">
  <input id="name" name="name" value="Ada">
  <textarea id="bio">hello</textarea>
  <select id="lang">
    <option value="go">Go</option>
    <option value="js" selected>JS</option>
  </select>
</form>
</body>
</html>`

// NewDocument parses markup into a live tree, failing the test on error.
func NewDocument(tb testing.TB, markup string, opts ...dom.Option) *dom.Document {
	tb.Helper()
	doc, err := dom.ParseString(markup, opts...)
	if err != nil {
		tb.Fatalf("parse fixture: %v", err)
	}
	return doc
}
