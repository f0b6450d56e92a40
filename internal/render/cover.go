package render

import (
	"bytes"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"
	"sync"

	"storyteller-bot/internal/models"
	"storyteller-bot/internal/service"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const (
	coverWidth  = 840
	coverHeight = 1188 // пропорции A4
	coverMargin = 60
)

var _ service.LocalCoverRenderer = (*CoverRenderer)(nil)

type paletteColors struct {
	top, bottom, frame, text, stars color.RGBA
}

var palettes = map[models.Palette]paletteColors{
	models.PalettePastel: {
		top: rgb(246, 231, 242), bottom: rgb(214, 232, 250), frame: rgb(59, 92, 204),
		text: rgb(34, 38, 49), stars: rgb(255, 255, 255),
	},
	models.PaletteBright: {
		top: rgb(255, 209, 102), bottom: rgb(239, 71, 111), frame: rgb(17, 138, 178),
		text: rgb(7, 59, 76), stars: rgb(255, 255, 255),
	},
	models.PaletteWarm: {
		top: rgb(255, 224, 178), bottom: rgb(230, 126, 80), frame: rgb(122, 55, 30),
		text: rgb(60, 30, 15), stars: rgb(255, 246, 214),
	},
	models.PaletteCool: {
		top: rgb(27, 38, 79), bottom: rgb(72, 120, 170), frame: rgb(200, 220, 255),
		text: rgb(245, 248, 255), stars: rgb(255, 250, 205),
	},
}

func rgb(r, g, b uint8) color.RGBA { return color.RGBA{R: r, G: g, B: b, A: 255} }

// CoverRenderer рисует обложку локально: градиент палитры, рамка, звезды и название.
// font.Face не потокобезопасен, поэтому отрисовка идет под мьютексом.
type CoverRenderer struct {
	mu           sync.Mutex
	titleFace    font.Face
	subtitleFace font.Face
}

// NewCoverRenderer загружает встроенные шрифты Go.
func NewCoverRenderer() (*CoverRenderer, error) {
	titleFace, err := newFace(gobold.TTF, 56)
	if err != nil {
		return nil, err
	}
	subtitleFace, err := newFace(goregular.TTF, 32)
	if err != nil {
		return nil, err
	}
	return &CoverRenderer{titleFace: titleFace, subtitleFace: subtitleFace}, nil
}

func newFace(ttf []byte, size float64) (font.Face, error) {
	f, err := opentype.Parse(ttf)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, fmt.Errorf("failed to create font face: %w", err)
	}
	return face, nil
}

// RenderCover возвращает PNG. Результат зависит только от аргументов.
func (r *CoverRenderer) RenderCover(title, hero string, palette models.Palette) ([]byte, error) {
	colors, ok := palettes[palette]
	if !ok {
		colors = palettes[models.PalettePastel]
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = "A Story"
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	img := image.NewRGBA(image.Rect(0, 0, coverWidth, coverHeight))
	gradient(img, colors.top, colors.bottom)
	stars(img, title, colors.stars)
	frame(img, coverMargin/2, 8, colors.frame)

	lines := wrap(r.titleFace, title, coverWidth-2*coverMargin)
	lineHeight := r.titleFace.Metrics().Height.Ceil() + 12
	y := (coverHeight-lineHeight*len(lines))/2 + r.titleFace.Metrics().Ascent.Ceil()
	for _, ln := range lines {
		drawCentered(img, r.titleFace, ln, y, colors.text)
		y += lineHeight
	}
	if hero = strings.TrimSpace(hero); hero != "" {
		drawCentered(img, r.subtitleFace, "starring the "+hero, y+lineHeight/2, colors.text)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode cover: %w", err)
	}
	return buf.Bytes(), nil
}

func gradient(img *image.RGBA, top, bottom color.RGBA) {
	h := img.Bounds().Dy()
	for y := 0; y < h; y++ {
		c := color.RGBA{
			R: lerp(top.R, bottom.R, y, h),
			G: lerp(top.G, bottom.G, y, h),
			B: lerp(top.B, bottom.B, y, h),
			A: 255,
		}
		draw.Draw(img, image.Rect(0, y, img.Bounds().Dx(), y+1), image.NewUniform(c), image.Point{}, draw.Src)
	}
}

func lerp(a, b uint8, i, n int) uint8 {
	return uint8(int(a) + (int(b)-int(a))*i/n)
}

// stars раскладывает точки по псевдослучайной сетке, зависящей от названия.
func stars(img *image.RGBA, seed string, c color.RGBA) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(seed))
	state := h.Sum64()
	next := func(n int) int {
		state ^= state << 13
		state ^= state >> 7
		state ^= state << 17
		return int(state % uint64(n))
	}
	for i := 0; i < 40; i++ {
		x, y, size := next(coverWidth), next(coverHeight), 2+next(4)
		draw.Draw(img, image.Rect(x, y, x+size, y+size), image.NewUniform(c), image.Point{}, draw.Over)
	}
}

func frame(img *image.RGBA, inset, width int, c color.RGBA) {
	b := img.Bounds().Inset(inset)
	u := image.NewUniform(c)
	draw.Draw(img, image.Rect(b.Min.X, b.Min.Y, b.Max.X, b.Min.Y+width), u, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(b.Min.X, b.Max.Y-width, b.Max.X, b.Max.Y), u, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(b.Min.X, b.Min.Y, b.Min.X+width, b.Max.Y), u, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(b.Max.X-width, b.Min.Y, b.Max.X, b.Max.Y), u, image.Point{}, draw.Src)
}

// wrap переносит текст по словам так, чтобы строка помещалась в maxWidth пикселей.
func wrap(face font.Face, text string, maxWidth int) []string {
	var lines []string
	cur := ""
	for _, w := range strings.Fields(text) {
		candidate := strings.TrimSpace(cur + " " + w)
		if cur != "" && font.MeasureString(face, candidate).Ceil() > maxWidth {
			lines = append(lines, cur)
			cur = w
			continue
		}
		cur = candidate
	}
	if cur != "" {
		lines = append(lines, cur)
	}
	return lines
}

func drawCentered(img *image.RGBA, face font.Face, text string, baseline int, c color.RGBA) {
	width := font.MeasureString(face, text).Ceil()
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P((img.Bounds().Dx()-width)/2, baseline),
	}
	d.DrawString(text)
}
