package podcastworker

import (
	"strings"

	"github.com/jung-kurt/gofpdf"
)

const (
	pageMarginTop    = 50.0
	pageMarginBottom = 50.0
	pageMarginLeft   = 15.0
	pageMarginRight  = 15.0
	bodyLineHeight   = 16.0
	bodyFontSize     = 11.0
)

// PDFMeta carries the header fields and document metadata for episode
// PDF synthesis.
type PDFMeta struct {
	PodcastName string
	EpisodeName string
	Host        string
	Genre       string
	Duration    string
	ReleaseDate string
	SourceURL   string
	Author      string
}

// SynthesizePDF builds the Letter-sized transcript PDF: header,
// metadata lines, show-notes with clickable link annotations, a
// horizontal rule, and the paginated transcript body. Returns the raw
// PDF bytes.
func SynthesizePDF(meta PDFMeta, notes ShowNotes, transcript string) ([]byte, error) {
	pdf := gofpdf.New("P", "pt", "Letter", "")
	pdf.SetMargins(pageMarginLeft, pageMarginTop, pageMarginRight)
	pdf.SetAutoPageBreak(true, pageMarginBottom)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.MultiCell(0, 22, sanitizeForPDF(meta.PodcastName), "", "L", false)

	pdf.SetFont("Helvetica", "B", 14)
	pdf.MultiCell(0, 18, sanitizeForPDF(meta.EpisodeName), "", "L", false)

	pdf.SetFont("Helvetica", "", 10)
	metaLines := []string{}
	if meta.Host != "" {
		metaLines = append(metaLines, "Host: "+meta.Host)
	}
	if meta.Genre != "" {
		metaLines = append(metaLines, "Genre: "+meta.Genre)
	}
	if meta.Duration != "" {
		metaLines = append(metaLines, "Duration: "+meta.Duration)
	}
	if meta.ReleaseDate != "" {
		metaLines = append(metaLines, "Date: "+meta.ReleaseDate)
	}
	if meta.SourceURL != "" {
		metaLines = append(metaLines, "Source: "+meta.SourceURL)
	}
	for _, line := range metaLines {
		pdf.MultiCell(0, 14, sanitizeForPDF(line), "", "L", false)
	}
	pdf.Ln(6)

	if notes.Summary != "" || len(notes.Links) > 0 {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.MultiCell(0, 16, "Show Notes", "", "L", false)
		pdf.SetFont("Helvetica", "", 10)
		if notes.Summary != "" {
			pdf.MultiCell(0, 14, sanitizeForPDF(notes.Summary), "", "L", false)
		}
		for _, link := range notes.Links {
			label := link.Text
			if label == "" {
				label = link.URL
			}
			pdf.SetTextColor(0, 0, 238)
			x, y := pdf.GetXY()
			text := sanitizeForPDF("• " + label)
			pdf.CellFormat(0, 14, text, "", 1, "L", false, 0, link.URL)
			width := pdf.GetStringWidth(text)
			pdf.LinkString(x, y, width, 14, link.URL)
			pdf.SetTextColor(0, 0, 0)
		}
		if notes.Footer != "" {
			pdf.SetFont("Helvetica", "I", 9)
			pdf.MultiCell(0, 12, sanitizeForPDF(notes.Footer), "", "L", false)
		}
		pdf.Ln(6)
	}

	pageWidth, _ := pdf.GetPageSize()
	pdf.SetDrawColor(180, 180, 180)
	_, y := pdf.GetXY()
	pdf.Line(pageMarginLeft, y, pageWidth-pageMarginRight, y)
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", bodyFontSize)
	body := sanitizeForPDF(transcript)
	for _, paragraph := range strings.Split(body, "\n\n") {
		trimmed := strings.TrimSpace(paragraph)
		if trimmed == "" {
			continue
		}
		pdf.MultiCell(0, bodyLineHeight, trimmed, "", "L", false)
		pdf.Ln(4)
	}

	pdf.SetTitle(meta.EpisodeName, true)
	pdf.SetAuthor(meta.Author, true)
	pdf.SetSubject(meta.SourceURL, true)
	pdf.SetCreator("bookmarkforge", true)
	pdf.SetProducer("bookmarkforge podcast worker", true)

	return outputBytes(pdf)
}

func outputBytes(pdf *gofpdf.Fpdf) ([]byte, error) {
	var buf writerBuffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.data, nil
}

type writerBuffer struct {
	data []byte
}

func (w *writerBuffer) Write(p []byte) (int, error) {
	w.data = append(w.data, p...)
	return len(p), nil
}

var zeroWidthChars = map[rune]bool{
	'​': true, '‌': true, '‍': true, '⁠': true, '﻿': true, '­': true,
}

var smartQuoteReplacements = map[rune]rune{
	'‘': '\'', '’': '\'', '“': '"', '”': '"',
}

// sanitizeForPDF strips characters the PDF's Latin-1 font subset cannot
// encode: zero-width marks, smart quotes and dashes normalized to their
// ASCII equivalents, ellipsis expanded, and any remaining non-Latin-1
// rune dropped outright.
func sanitizeForPDF(s string) string {
	var b strings.Builder
	for _, r := range s {
		if zeroWidthChars[r] {
			continue
		}
		if repl, ok := smartQuoteReplacements[r]; ok {
			b.WriteRune(repl)
			continue
		}
		switch r {
		case '–', '—':
			b.WriteRune('-')
			continue
		case '…':
			b.WriteString("...")
			continue
		}
		if r > 0xFF {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
