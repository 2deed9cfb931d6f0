package quality

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// EmbedMetadata sets Subject (the original source URL, so a rerun can
// recover it even after queue retention expires) and Producer (a short
// capture marker) on the PDF's Info dictionary via pdfcpu, returning the
// re-serialized bytes.
func EmbedMetadata(pdfBytes []byte, subject, producer string) ([]byte, error) {
	ctx, err := api.ReadContext(bytes.NewReader(pdfBytes), model.NewDefaultConfiguration())
	if err != nil {
		return nil, fmt.Errorf("read pdf context: %w", err)
	}

	if ctx.XRefTable.Info == nil {
		ctx.XRefTable.Info = &model.Info{}
	}
	ctx.XRefTable.Info.Subject = subject
	ctx.XRefTable.Info.Producer = producer

	var out bytes.Buffer
	if err := api.WriteContext(ctx, &out); err != nil {
		return nil, fmt.Errorf("write pdf context: %w", err)
	}
	return out.Bytes(), nil
}

// ExtractSubject reads back the Subject field embedded by EmbedMetadata
// — used by rerunWeek/rerunSelected to recover a conversion's source URL
// directly from the PDF when the queue record has already been pruned.
func ExtractSubject(pdfBytes []byte) (string, error) {
	ctx, err := api.ReadContext(bytes.NewReader(pdfBytes), model.NewDefaultConfiguration())
	if err != nil {
		return "", fmt.Errorf("read pdf context: %w", err)
	}
	if ctx.XRefTable.Info == nil {
		return "", nil
	}
	return ctx.XRefTable.Info.Subject, nil
}

// PageCount returns the page count via pdfcpu, or an error if the PDF is
// unparseable.
func PageCount(pdfBytes []byte) (int, error) {
	ctx, err := api.ReadContext(bytes.NewReader(pdfBytes), model.NewDefaultConfiguration())
	if err != nil {
		return 0, fmt.Errorf("read pdf context: %w", err)
	}
	return ctx.PageCount, nil
}

var textShowOperator = regexp.MustCompile(`\(((?:[^()\\]|\\.)*)\)\s*Tj`)
var textArrayOperator = regexp.MustCompile(`\[((?:[^\[\]]|\\.)*)\]\s*TJ`)
var literalRun = regexp.MustCompile(`\(((?:[^()\\]|\\.)*)\)`)

// ExtractText approximates plain text by regex-scanning the PDF's
// content-stream Tj/TJ text-show operators. This is a coarse technique —
// it does not handle every PDF text-rendering path — but is sufficient
// for the content analyzer's char-count/density heuristics, which only
// need an approximate text yield, not a faithful reflow.
func ExtractText(pdfBytes []byte) (string, error) {
	ctx, err := api.ReadContext(bytes.NewReader(pdfBytes), model.NewDefaultConfiguration())
	if err != nil {
		return "", fmt.Errorf("read pdf context: %w", err)
	}

	var sb strings.Builder
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		content, err := api.PageContent(ctx, pageNr)
		if err != nil {
			continue
		}
		extractOperatorText(string(content), &sb)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func extractOperatorText(content string, sb *strings.Builder) {
	for _, m := range textShowOperator.FindAllStringSubmatch(content, -1) {
		sb.WriteString(unescapePDFString(m[1]))
		sb.WriteString(" ")
	}
	for _, m := range textArrayOperator.FindAllStringSubmatch(content, -1) {
		for _, lit := range literalRun.FindAllStringSubmatch(m[1], -1) {
			sb.WriteString(unescapePDFString(lit[1]))
		}
		sb.WriteString(" ")
	}
}

func unescapePDFString(s string) string {
	replacer := strings.NewReplacer(`\(`, "(", `\)`, ")", `\\`, `\`, `\n`, " ", `\r`, " ", `\t`, " ")
	return replacer.Replace(s)
}
