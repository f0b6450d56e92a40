package render

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"go.uber.org/zap"
)

const (
	regularFontFile = "DejaVuSans.ttf"
	boldFontFile    = "DejaVuSans-Bold.ttf"
	unicodeFamily   = "DejaVu"
	coreFamily      = "Helvetica"

	pageWidth  = 210.0
	pageHeight = 297.0
)

// ErrRenderFailed - не удалось собрать PDF.
var ErrRenderFailed = errors.New("pdf rendering failed")

// Document - содержимое PDF: страница обложки (или титульная) и страницы текста.
type Document struct {
	Title     string
	Text      string
	Moral     string
	Questions []string
	Cover     []byte // PNG или JPEG; пусто - титульная страница
	CreatedAt time.Time
}

// PDFRenderer собирает PDF истории. Если в fontDir есть шрифты DejaVu, текст выводится
// в UTF-8, иначе используется Helvetica с перекодировкой в cp1252.
type PDFRenderer struct {
	fontDir          string
	includeQuestions bool
	loc              *time.Location
	logger           *zap.Logger
}

func NewPDFRenderer(fontDir string, includeQuestions bool, loc *time.Location, logger *zap.Logger) *PDFRenderer {
	if loc == nil {
		loc = time.UTC
	}
	r := &PDFRenderer{fontDir: fontDir, includeQuestions: includeQuestions, loc: loc, logger: logger.Named("PDFRenderer")}
	if fontDir != "" && !r.hasUnicodeFonts() {
		r.logger.Warn("DejaVu fonts not found, falling back to Helvetica", zap.String("fontDir", fontDir))
	}
	return r
}

func (r *PDFRenderer) hasUnicodeFonts() bool {
	if r.fontDir == "" {
		return false
	}
	for _, f := range []string{regularFontFile, boldFontFile} {
		if _, err := os.Stat(filepath.Join(r.fontDir, f)); err != nil {
			return false
		}
	}
	return true
}

// pdfWriter прячет разницу между UTF-8 шрифтом и core-шрифтом.
type pdfWriter struct {
	pdf    *fpdf.Fpdf
	family string
	tr     func(string) string
}

func (w *pdfWriter) font(style string, size float64) {
	w.pdf.SetFont(w.family, style, size)
}

func (w *pdfWriter) multi(h float64, text, align string) {
	w.pdf.MultiCell(0, h, w.tr(text), "", align, false)
}

// Render возвращает PDF целиком.
func (r *PDFRenderer) Render(doc Document) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 15)
	pdf.SetTitle(doc.Title, true)
	pdf.SetCreator("storyteller-bot", false)
	created := doc.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	pdf.SetCreationDate(created)

	w := &pdfWriter{pdf: pdf, family: coreFamily, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	if r.hasUnicodeFonts() {
		pdf.AddUTF8Font(unicodeFamily, "", filepath.Join(r.fontDir, regularFontFile))
		pdf.AddUTF8Font(unicodeFamily, "B", filepath.Join(r.fontDir, boldFontFile))
		w.family = unicodeFamily
		w.tr = func(s string) string { return s }
	}

	r.coverPage(w, doc)

	pdf.AddPage()
	w.font("B", 16)
	w.multi(8, doc.Title, "")
	pdf.Ln(1)

	w.font("", 11)
	w.multi(6, "Created by AI • "+created.In(r.loc).Format("02.01.2006"), "")
	pdf.Ln(4)

	w.font("", 12)
	for _, para := range strings.Split(doc.Text, "\n\n") {
		if para = strings.TrimSpace(para); para == "" {
			continue
		}
		w.multi(7, para, "")
		pdf.Ln(2)
	}

	pdf.Ln(2)
	w.font("B", 13)
	w.multi(7, "Moral", "")
	w.font("", 12)
	w.multi(7, doc.Moral, "")

	if r.includeQuestions && len(doc.Questions) > 0 {
		pdf.Ln(4)
		w.font("B", 13)
		w.multi(7, "Questions", "")
		w.font("", 12)
		for i, q := range doc.Questions {
			w.multi(7, fmt.Sprintf("%d) %s", i+1, q), "")
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}
	return buf.Bytes(), nil
}

// coverPage - первая страница: картинка на весь лист или крупное название.
func (r *PDFRenderer) coverPage(w *pdfWriter, doc Document) {
	pdf := w.pdf
	pdf.AddPage()
	if imageType := imageTypeOf(doc.Cover); imageType != "" {
		opts := fpdf.ImageOptions{ImageType: imageType}
		pdf.RegisterImageOptionsReader("cover", opts, bytes.NewReader(doc.Cover))
		if pdf.Ok() {
			pdf.ImageOptions("cover", 0, 0, pageWidth, pageHeight, false, opts, 0, "")
			return
		}
		// битая картинка: сбрасываем ошибку и рисуем титульную страницу
		r.logger.Warn("Cover image rejected by PDF renderer", zap.Error(pdf.Error()))
		pdf.ClearError()
	}
	w.font("B", 26)
	pdf.SetY(40)
	w.multi(12, doc.Title, "C")
}

func imageTypeOf(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	switch http.DetectContentType(data) {
	case "image/png":
		return "PNG"
	case "image/jpeg":
		return "JPG"
	default:
		return ""
	}
}
