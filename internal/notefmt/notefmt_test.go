package notefmt

import (
	"strings"
	"testing"
	"time"

	"github.com/starford/othala/internal/models"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	created := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	updated := created.Add(42 * time.Minute)
	n := &models.Note{
		ID:        "abc-123",
		Title:     "Weekly plan",
		Markdown:  "# Plan\nShip the thing.",
		Category:  "Work",
		Tags:      []string{"plan", "q1"},
		CreatedAt: created,
		UpdatedAt: updated,
	}

	got := Decode(n.ID, Encode(n))

	if got.ID != n.ID {
		t.Errorf("id = %q", got.ID)
	}
	if got.Title != n.Title {
		t.Errorf("title = %q, want %q", got.Title, n.Title)
	}
	if got.Category != n.Category {
		t.Errorf("category = %q", got.Category)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "plan" || got.Tags[1] != "q1" {
		t.Errorf("tags = %v", got.Tags)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("createdAt = %v, want %v", got.CreatedAt, created)
	}
	if !got.UpdatedAt.Equal(updated) {
		t.Errorf("updatedAt = %v, want %v", got.UpdatedAt, updated)
	}
	if got.Markdown != n.Markdown {
		t.Errorf("markdown = %q, want %q", got.Markdown, n.Markdown)
	}
}

func TestEncodeDecode_RoundTripTwice(t *testing.T) {
	n := &models.Note{
		ID:        "x",
		Title:     "T",
		Markdown:  "body",
		Category:  "C",
		Tags:      []string{},
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
	}
	first := Encode(n)
	second := Encode(Decode(n.ID, first))
	if string(first) != string(second) {
		t.Errorf("re-encoding differs:\n%q\n%q", first, second)
	}
}

func TestDecode_BodyWhitespaceTrimmed(t *testing.T) {
	n := &models.Note{
		ID: "x", Title: "T", Category: "C", Tags: []string{},
		Markdown:  "hello",
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	data := Encode(n)
	got := Decode("x", append(data, []byte("\n\n\n")...))
	if got.Markdown != "hello" {
		t.Errorf("markdown = %q, want %q", got.Markdown, "hello")
	}
}

func TestDecode_NoHeaderFallback(t *testing.T) {
	got := Decode("id-1", []byte("just some text\nwith lines\n"))
	if got.Title != models.DefaultTitle {
		t.Errorf("title = %q, want %q", got.Title, models.DefaultTitle)
	}
	if got.Category != models.DefaultCategory {
		t.Errorf("category = %q", got.Category)
	}
	if got.Markdown != "just some text\nwith lines" {
		t.Errorf("markdown = %q", got.Markdown)
	}
	if len(got.Tags) != 0 {
		t.Errorf("tags = %v, want empty", got.Tags)
	}
}

func TestDecode_UnterminatedHeaderFallback(t *testing.T) {
	got := Decode("id-2", []byte("---\ntitle: Broken\nno closing delimiter"))
	if got.Title != models.DefaultTitle {
		t.Errorf("title = %q, want default", got.Title)
	}
}

func TestDecode_CorruptFieldsDegradeIndividually(t *testing.T) {
	data := "---\ntitle: Kept\ntags: not-json\ncreatedAt: garbage\n---\n\nbody\n"
	got := Decode("id-3", []byte(data))
	if got.Title != "Kept" {
		t.Errorf("title = %q, want Kept", got.Title)
	}
	if len(got.Tags) != 0 {
		t.Errorf("tags = %v, want empty on corrupt JSON", got.Tags)
	}
	if got.Markdown != "body" {
		t.Errorf("markdown = %q", got.Markdown)
	}
}

func TestDecode_ContentRenderedFromMarkdown(t *testing.T) {
	n := &models.Note{
		ID: "x", Title: "T", Category: "C", Tags: []string{},
		Markdown:  "# Hi",
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	got := Decode("x", Encode(n))
	if !strings.Contains(got.Content, "<h1>Hi</h1>") {
		t.Errorf("content = %q, want rendered heading", got.Content)
	}
}

func TestRender_Blocks(t *testing.T) {
	md := "# Title\n\nSome **bold** and *em* and `code`.\n\n- one\n- two\n"
	html := Render(md)
	for _, want := range []string{
		"<h1>Title</h1>",
		"<strong>bold</strong>",
		"<em>em</em>",
		"<code>code</code>",
		"<ul>", "<li>one</li>", "<li>two</li>", "</ul>",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered output missing %q:\n%s", want, html)
		}
	}
}

func TestRender_CodeFenceEscapes(t *testing.T) {
	html := Render("```\n<script>\n```")
	if !strings.Contains(html, "&lt;script&gt;") {
		t.Errorf("code fence not escaped: %s", html)
	}
}

func TestRender_Link(t *testing.T) {
	html := Render("see [docs](https://example.com)")
	if !strings.Contains(html, `<a href="https://example.com">docs</a>`) {
		t.Errorf("link not rendered: %s", html)
	}
}
