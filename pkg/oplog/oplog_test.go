package oplog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposeInsertIntoDocument(t *testing.T) {
	doc := New().Insert("Hello world", nil)

	t.Run("insert in the middle", func(t *testing.T) {
		delta := New().Retain(5, nil).Insert(",", nil)
		got := doc.Compose(delta)
		assert.Equal(t, "Hello, world", got.PlainText())
	})

	t.Run("insert at the start", func(t *testing.T) {
		delta := New().Insert(">", nil)
		got := doc.Compose(delta)
		assert.Equal(t, ">Hello world", got.PlainText())
	})

	t.Run("insert at the end", func(t *testing.T) {
		delta := New().Retain(11, nil).Insert("!", nil)
		got := doc.Compose(delta)
		assert.Equal(t, "Hello world!", got.PlainText())
	})
}

func TestComposeDelete(t *testing.T) {
	doc := New().Insert("Hello world", nil)

	t.Run("delete in the middle", func(t *testing.T) {
		delta := New().Retain(5, nil).Delete(6)
		got := doc.Compose(delta)
		assert.Equal(t, "Hello", got.PlainText())
	})

	t.Run("delete cancels pending insert", func(t *testing.T) {
		delta := New().Delete(11)
		got := doc.Compose(delta)
		assert.Empty(t, got.Ops)
	})

	t.Run("base deletes pass through", func(t *testing.T) {
		base := New().Retain(2, nil).Delete(3)
		delta := New().Insert("x", nil)
		got := base.Compose(delta)
		require.Len(t, got.Ops, 3)
		assert.Equal(t, "x", got.Ops[0].Insert)
		assert.Equal(t, 2, got.Ops[1].Retain)
		assert.Equal(t, 3, got.Ops[2].Delete)
	})
}

func TestComposeIsOrderPreserving(t *testing.T) {
	// Two inserts at position zero: the later delta lands in front. Replaying
	// the same sequence on any client must give the same document.
	doc := Delta{}
	a := New().Insert("world", nil)
	b := New().Insert("hello ", nil)

	got := doc.Compose(a).Compose(b)
	assert.Equal(t, "hello world", got.PlainText())

	reordered := doc.Compose(b).Compose(a)
	assert.NotEqual(t, got.PlainText(), reordered.PlainText())
}

func TestComposeAttributes(t *testing.T) {
	t.Run("retain reformats existing text", func(t *testing.T) {
		doc := New().Insert("abc", nil)
		delta := New().Retain(3, map[string]any{"bold": true})
		got := doc.Compose(delta)
		require.Len(t, got.Ops, 1)
		assert.Equal(t, map[string]any{"bold": true}, got.Ops[0].Attributes)
	})

	t.Run("nil attribute clears formatting on insert results", func(t *testing.T) {
		doc := New().Insert("abc", map[string]any{"bold": true})
		delta := New().Retain(3, map[string]any{"bold": nil})
		got := doc.Compose(delta)
		require.Len(t, got.Ops, 1)
		assert.Nil(t, got.Ops[0].Attributes)
	})

	t.Run("adjacent same-format inserts merge", func(t *testing.T) {
		doc := New().Insert("ab", nil)
		delta := New().Retain(2, nil).Insert("cd", nil)
		got := doc.Compose(delta)
		require.Len(t, got.Ops, 1)
		assert.Equal(t, "abcd", got.Ops[0].Insert)
	})
}

func TestComposeEmbeds(t *testing.T) {
	embed := map[string]any{"image": "banner.png"}
	doc := New().Insert("ab", nil).InsertEmbed(embed, nil)

	assert.Equal(t, 3, doc.Length())

	delta := New().Retain(2, nil).Delete(1)
	got := doc.Compose(delta)
	assert.Equal(t, "ab", got.PlainText())
	require.Len(t, got.Ops, 1)
}

func TestComposeMultibyteText(t *testing.T) {
	doc := New().Insert("héllo", nil)
	delta := New().Retain(2, nil).Delete(1)
	got := doc.Compose(delta)
	assert.Equal(t, "hélo", got.PlainText())
}

func TestUnmarshal(t *testing.T) {
	t.Run("canonical ops document", func(t *testing.T) {
		d, err := Unmarshal([]byte(`{"ops":[{"insert":"hi"},{"insert":"\n","attributes":{"header":1}}]}`))
		require.NoError(t, err)
		require.Len(t, d.Ops, 2)
		assert.Equal(t, "hi", d.Ops[0].Insert)
	})

	t.Run("bare op array", func(t *testing.T) {
		d, err := Unmarshal([]byte(`[{"insert":"hi"}]`))
		require.NoError(t, err)
		require.Len(t, d.Ops, 1)
	})

	t.Run("non op-log input errors", func(t *testing.T) {
		_, err := Unmarshal([]byte(`"just a string"`))
		assert.Error(t, err)
	})
}

func TestMarshalRoundTrip(t *testing.T) {
	doc := New().Insert("hi", map[string]any{"bold": true}).Delete(2).Retain(1, nil)
	data, err := doc.Marshal()
	require.NoError(t, err)

	got, err := Unmarshal(data)
	require.NoError(t, err)
	require.Len(t, got.Ops, 3)
	assert.Equal(t, 2, got.Ops[1].Delete)
	assert.Equal(t, 1, got.Ops[2].Retain)
}

func TestFromPlainText(t *testing.T) {
	assert.Empty(t, FromPlainText("").Ops)
	d := FromPlainText("raw text")
	require.Len(t, d.Ops, 1)
	assert.Equal(t, "raw text", d.Ops[0].Insert)
}
