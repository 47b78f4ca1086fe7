package msg

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscape(t *testing.T) {
	assert.Equal(t, "plain", Escape("plain"))
	assert.Equal(t, `a&amp;b&quot;&lt;c&gt;`, Escape(`a&b"<c>`))
	assert.Equal(t, `&amp;&amp;`, Escape(`&&`))
	for _, s := range []string{"", "x", `<at id="1"/>`, "&amp;", `"'<>&`} {
		assert.Equal(t, s, Unescape(Escape(s)))
	}
}

func TestParse(t *testing.T) {
	testcase := []struct {
		input    string
		expected []Element
	}{
		{
			input:    `hello <at id="1"/>`,
			expected: []Element{NewText("hello "), NewAt("1")},
		},
		{
			input:    `<b>bold</b> text`,
			expected: []Element{NewNode("bold", nil, NewText("bold")), NewText(" text")},
		},
		{
			input:    `<img src="https://example.com/a.png"/>`,
			expected: []Element{NewImage("https://example.com/a.png")},
		},
		{
			input:    `<img src="a.png">hello`,
			expected: []Element{NewImage("a.png"), NewText("hello")},
		},
		{
			input:    `a<br>b`,
			expected: []Element{NewText("a"), NewNode("br", nil), NewText("b")},
		},
		{
			input:    `<b>unclosed`,
			expected: []Element{NewNode("bold", nil, NewText("unclosed"))},
		},
		{
			input:    `x</b>y`,
			expected: []Element{NewText("x"), NewText("y")},
		},
		{
			input:    `a<!-- comment -->b`,
			expected: []Element{NewText("a"), NewText("b")},
		},
		{
			input:    `<b><i>x</b>y`,
			expected: []Element{NewNode("bold", nil, NewNode("idiomatic", nil, NewText("x"))), NewText("y")},
		},
		{
			input:    `1 &lt; 2 &amp;&amp; &quot;q&quot;`,
			expected: []Element{NewText(`1 < 2 && "q"`)},
		},
		{
			input:    `<p>line</p><del>gone</del><u>u</u><s>s</s>`,
			expected: []Element{
				NewNode("paragraph", nil, NewText("line")),
				NewNode("delete", nil, NewText("gone")),
				NewNode("underline", nil, NewText("u")),
				NewNode("strikethrough", nil, NewText("s")),
			},
		},
	}
	for _, tc := range testcase {
		got, err := Parse(tc.input)
		require.NoError(t, err, tc.input)
		assert.Equal(t, tc.expected, got, tc.input)
	}
}

func TestParseEmpty(t *testing.T) {
	got, err := Parse("")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestParseTypedElements(t *testing.T) {
	elements, err := Parse(`<quote id="42"/><a href="https://example.com">site</a><sharp id="c" name="general"/><at type="all"/>`)
	require.NoError(t, err)
	require.Len(t, elements, 4)

	quote, ok := elements[0].(*Quote)
	require.True(t, ok)
	assert.Equal(t, "42", quote.ID())

	href, ok := elements[1].(*Href)
	require.True(t, ok)
	assert.Equal(t, "https://example.com", href.URL())
	assert.Equal(t, "href", href.Tag())
	assert.Equal(t, []Element{NewText("site")}, href.Children())

	sharp, ok := elements[2].(*Sharp)
	require.True(t, ok)
	assert.Equal(t, "c", sharp.ID())
	assert.Equal(t, "general", sharp.Name())

	at, ok := elements[3].(*At)
	require.True(t, ok)
	assert.True(t, at.All())
}

type keyboard struct{ Node }

func TestRegister(t *testing.T) {
	Register("kbd", func(tag string, attrs Attrs, children []Element) Element {
		return &keyboard{Node{Type: tag, Attrs: attrs, Elements: children}}
	})
	elements, err := Parse(`<kbd key="ctrl"/>`)
	require.NoError(t, err)
	require.Len(t, elements, 1)
	kbd, ok := elements[0].(*keyboard)
	require.True(t, ok)
	assert.Equal(t, "ctrl", kbd.Attrs.String("key"))
}

func TestSerialize(t *testing.T) {
	testcase := []struct {
		input    []Element
		expected string
	}{
		{[]Element{NewText(`a<b>&"c"`)}, `a&lt;b&gt;&amp;&quot;c&quot;`},
		{[]Element{NewAt("1")}, `<at id="1"/>`},
		{[]Element{NewNode("bold", nil, NewText("x"))}, `<b>x</b>`},
		{[]Element{NewImage("u")}, `<img src="u"/>`},
		{[]Element{NewHref("https://a?b=1&c=2", NewText("t"))}, `<a href="https://a?b=1&amp;c=2">t</a>`},
		{[]Element{NewNode("custom", nil)}, `<custom/>`},
		{
			[]Element{NewNode("x", Attrs{
				{Key: "on", Value: true},
				{Key: "off", Value: false},
				{Key: "none", Value: nil},
				{Key: "n", Value: 3},
				{Key: "f", Value: 1.5},
				{Key: "s", Value: `"q"`},
			})},
			`<x on n="3" f="1.5" s="&quot;q&quot;"/>`,
		},
	}
	for _, tc := range testcase {
		got, err := Serialize(tc.input)
		require.NoError(t, err)
		assert.Equal(t, tc.expected, got)
	}
}

func TestSerializeUnsupportedAttr(t *testing.T) {
	_, err := Serialize([]Element{NewNode("x", Attrs{{Key: "list", Value: []int{1}}})})
	require.Error(t, err)
	var attrErr *UnsupportedAttrError
	require.ErrorAs(t, err, &attrErr)
	assert.Equal(t, "list", attrErr.Key)
	assert.Equal(t, "x", attrErr.Tag)

	_, err = Encode(NewNode("outer", nil, NewNode("inner", Attrs{{Key: "m", Value: map[string]string{}}})))
	assert.Error(t, err)
}

func TestRoundTrip(t *testing.T) {
	elements := []Element{
		NewText(`1 < 2 & "q"`),
		NewAt("10086"),
		NewHref("https://example.com/?a=1&b=2", NewText("link")),
		NewNode("bold", nil, NewNode("idiomatic", nil, NewText("nested"))),
		NewQuote("msg-1"),
		NewText("\n  spaces kept  "),
		NewFile("file:///tmp/a b.txt"),
	}
	s, err := Serialize(elements)
	require.NoError(t, err)
	parsed, err := Parse(s)
	require.NoError(t, err)
	assert.Equal(t, elements, parsed)
}

func TestPlainText(t *testing.T) {
	at := NewAt("1")
	at.Attrs.Set("name", "bob")
	elements := []Element{
		NewText("hi "),
		at,
		NewNode("bold", nil, NewText("!")),
		NewImage("u"),
	}
	assert.Equal(t, "hi @bob![image]", PlainText(elements))
}

func TestAttrs(t *testing.T) {
	var attrs Attrs
	attrs.Set("a", "1")
	attrs.Set("b", 2)
	attrs.Set("a", "3")
	assert.Equal(t, Attrs{{Key: "a", Value: "3"}, {Key: "b", Value: 2}}, attrs)
	assert.Equal(t, "3", attrs.String("a"))
	assert.Equal(t, "", attrs.String("b"))
	_, ok := attrs.Get("c")
	assert.False(t, ok)
}

const bench = `<quote id="1"/>hello <at id="10086" name="bob"/>, see <a href="https://example.com">here</a> <b>now</b>`

func BenchmarkParse(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = Parse(bench)
	}
	b.SetBytes(int64(len(bench)))
}

func BenchmarkEscape(b *testing.B) {
	s := strings.Repeat(`<&">`, 64)
	for i := 0; i < b.N; i++ {
		Escape(s)
	}
}
