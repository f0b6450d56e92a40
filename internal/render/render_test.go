package render

import (
	"bytes"
	"image/png"
	"strings"
	"testing"
	"time"

	"storyteller-bot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newCover(t *testing.T) *CoverRenderer {
	t.Helper()
	r, err := NewCoverRenderer()
	require.NoError(t, err)
	return r
}

func TestCoverRenderer_ProducesDeterministicPNG(t *testing.T) {
	r := newCover(t)

	a, err := r.RenderCover("The Owl and the Very Long Title That Needs Wrapping", "owl", models.PaletteCool)
	require.NoError(t, err)
	b, err := r.RenderCover("The Owl and the Very Long Title That Needs Wrapping", "owl", models.PaletteCool)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	img, err := png.Decode(bytes.NewReader(a))
	require.NoError(t, err)
	assert.Equal(t, coverWidth, img.Bounds().Dx())
	assert.Equal(t, coverHeight, img.Bounds().Dy())

	other, err := r.RenderCover("The Owl and the Very Long Title That Needs Wrapping", "owl", models.PaletteWarm)
	require.NoError(t, err)
	assert.NotEqual(t, a, other)
}

func TestCoverRenderer_EmptyTitleAndUnknownPalette(t *testing.T) {
	r := newCover(t)
	data, err := r.RenderCover("  ", "", "neon")
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(data))
	assert.NoError(t, err)
}

func TestWrap(t *testing.T) {
	r := newCover(t)
	lines := wrap(r.titleFace, "one two three four five six seven eight nine ten", 300)
	require.Greater(t, len(lines), 1)
	assert.Equal(t, "one two three four five six seven eight nine ten", strings.Join(lines, " "))
}

func testDocument() Document {
	return Document{
		Title:     "The Owl and the Lantern",
		Text:      "The owl wanted to light the path.\n\nBut the wind was strong.\n\nFinally the friends held the lantern together.",
		Moral:     "Light is better shared.",
		Questions: []string{"Why?", "Who?", "Where?", "When?"},
		CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestPDFRenderer_TitlePageWithoutCover(t *testing.T) {
	r := NewPDFRenderer("", true, time.UTC, zap.NewNop())
	out, err := r.Render(testDocument())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.Equal(t, 2, bytes.Count(out, []byte("/Type /Page\n")))
}

func TestPDFRenderer_CoverImagePage(t *testing.T) {
	cover, err := newCover(t).RenderCover("The Owl and the Lantern", "owl", models.PalettePastel)
	require.NoError(t, err)

	r := NewPDFRenderer("", false, time.UTC, zap.NewNop())
	plain, err := r.Render(testDocument())
	require.NoError(t, err)

	doc := testDocument()
	doc.Cover = cover
	withCover, err := r.Render(doc)
	require.NoError(t, err)
	assert.Greater(t, len(withCover), len(plain))
	assert.Contains(t, string(withCover), "/Subtype /Image")
}

func TestPDFRenderer_BrokenCoverFallsBackToTitlePage(t *testing.T) {
	r := NewPDFRenderer("/nonexistent/fonts", true, time.UTC, zap.NewNop())
	doc := testDocument()
	doc.Cover = append([]byte("\x89PNG\r\n\x1a\n"), []byte("garbage")...)
	doc.Title = "Ёжик и фонарик" // не-cp1252 символы при core-шрифте не ломают рендер

	out, err := r.Render(doc)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.NotContains(t, string(out), "/Subtype /Image")
}

func TestImageTypeOf(t *testing.T) {
	assert.Equal(t, "", imageTypeOf(nil))
	assert.Equal(t, "PNG", imageTypeOf([]byte("\x89PNG\r\n\x1a\n0000")))
	assert.Equal(t, "JPG", imageTypeOf([]byte("\xff\xd8\xff\xe0")))
	assert.Equal(t, "", imageTypeOf([]byte("GIF89a")))
}
