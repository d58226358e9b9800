package inliner

import (
	"reflect"
	"strings"
	"testing"
)

const domain = "https://cdn.example.com"

func TestFindMatchesTerminators(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    []string
	}{
		{
			"double quote (JSON string)",
			`{"src":"https://cdn.example.com/a.png","alt":"x"}`,
			[]string{"https://cdn.example.com/a.png"},
		},
		{
			"closing paren (markdown)",
			`![pic](https://cdn.example.com/b.jpg) and text`,
			[]string{"https://cdn.example.com/b.jpg"},
		},
		{
			"single quote",
			`url('https://cdn.example.com/bg.webp')`,
			[]string{"https://cdn.example.com/bg.webp"},
		},
		{
			"backslash (escaped JSON inside JSON)",
			`"{\"src\":\"https://cdn.example.com/c.gif\\\"}"`,
			[]string{"https://cdn.example.com/c.gif"},
		},
		{
			"html-encoded quote",
			`src=&quot;https://cdn.example.com/d.png&quot; more`,
			[]string{"https://cdn.example.com/d.png"},
		},
		{
			"comma before next URL",
			`https://cdn.example.com/a.jpg,https://cdn.example.com/b.jpg"`,
			[]string{"https://cdn.example.com/a.jpg", "https://cdn.example.com/b.jpg"},
		},
		{
			"space with trailing comma stripped",
			`https://cdn.example.com/a.jpg, then text`,
			[]string{"https://cdn.example.com/a.jpg"},
		},
		{
			"srcset with descriptors",
			`"srcset":"https://cdn.example.com/a.jpg 1x, https://cdn.example.com/b.jpg 2x"`,
			[]string{"https://cdn.example.com/a.jpg", "https://cdn.example.com/b.jpg"},
		},
		{
			"angle bracket",
			`bare https://cdn.example.com/e.png<br>`,
			[]string{"https://cdn.example.com/e.png"},
		},
		{
			"end of string",
			`see https://cdn.example.com/last.png`,
			[]string{"https://cdn.example.com/last.png"},
		},
		{
			"no match",
			`{"src":"https://other.example.com/a.png"}`,
			nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := FindMatches(tc.content, domain)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("FindMatches(%q) = %v, want %v", tc.content, got, tc.want)
			}
		})
	}
}

func TestFindMatchesCaseInsensitive(t *testing.T) {
	content := `{"src":"HTTPS://CDN.Example.COM/Shout.PNG"}`
	got := FindMatches(content, domain)
	if len(got) != 1 || got[0] != "HTTPS://CDN.Example.COM/Shout.PNG" {
		t.Errorf("expected original-case match, got %v", got)
	}
}

func TestFindMatchesQueryString(t *testing.T) {
	content := `{"feature_image":"https://cdn.example.com/img.png?width=600&fit=crop"}`
	got := FindMatches(content, domain)
	if len(got) != 1 || got[0] != "https://cdn.example.com/img.png?width=600&fit=crop" {
		t.Errorf("query string must survive: %v", got)
	}
}

func TestDedupe(t *testing.T) {
	in := []string{"a", "b", "a", "c", "b"}
	want := []string{"a", "b", "c"}
	if got := Dedupe(in); !reflect.DeepEqual(got, want) {
		t.Errorf("Dedupe(%v) = %v, want %v", in, got, want)
	}
}

func TestRewriteFaithfulness(t *testing.T) {
	src := "https://cdn.example.com/a.png"
	content := `{"feature":"` + src + `","body":"text ` + src + ` tail"}`

	got := Rewrite(content, src, "/content/images/2025/08/a.png")

	if strings.Contains(got, src) {
		t.Error("all occurrences must be replaced")
	}
	want := `{"feature":"__GHOST_URL__/content/images/2025/08/a.png","body":"text __GHOST_URL__/content/images/2025/08/a.png tail"}`
	if got != want {
		t.Errorf("rewrite changed unrelated bytes:\n got %s\nwant %s", got, want)
	}
}

func TestRewriteNoMatchIsIdentity(t *testing.T) {
	content := `{"body":"nothing to see"}`
	if got := Rewrite(content, "https://cdn.example.com/a.png", "/x"); got != content {
		t.Errorf("expected identity, got %s", got)
	}
}

func TestFindHTMLMatches(t *testing.T) {
	html := `<figure>
  <img src="https://cdn.example.com/hero.jpg"
       srcset="https://cdn.example.com/hero-600.jpg 600w, https://cdn.example.com/hero-1200.jpg 1200w">
  <a href="https://cdn.example.com/download.pdf">doc</a>
  <video poster="https://cdn.example.com/poster.png"></video>
  <img src="https://other.example.com/skip.png">
</figure>`

	got := Dedupe(FindHTMLMatches(html, domain))
	want := []string{
		"https://cdn.example.com/hero.jpg",
		"https://cdn.example.com/hero-600.jpg",
		"https://cdn.example.com/hero-1200.jpg",
		"https://cdn.example.com/download.pdf",
		"https://cdn.example.com/poster.png",
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d matches, got %v", len(want), got)
	}
	for _, w := range want {
		found := false
		for _, g := range got {
			if g == w {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("missing match %s in %v", w, got)
		}
	}
}
