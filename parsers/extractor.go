package parsers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"baliance.com/gooxml/document"
)

var ErrUnsupportedFormat = errors.New("unsupported document format")

// ExtractText returns the plain text of a resume upload. name is only used
// for its extension.
func ExtractText(ctx context.Context, name string, data []byte) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".txt", ".md", "":
		return string(data), nil
	case ".docx":
		return docxText(data)
	case ".pdf":
		return pdfText(ctx, data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

// ExtractFile reads path and extracts its text.
func ExtractFile(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return ExtractText(ctx, path, data)
}

func docxText(data []byte) (string, error) {
	doc, err := document.Read(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open docx: %w", err)
	}
	var b strings.Builder
	for _, p := range doc.Paragraphs() {
		for _, r := range p.Runs() {
			b.WriteString(r.Text())
		}
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// pdfText reads the text operators of each page with pdfcpu. Scanned or
// oddly encoded files that yield nothing fall back to pdftotext, then
// ps2ascii, when those are installed.
func pdfText(ctx context.Context, data []byte) (string, error) {
	text, err := pdfcpuText(data)
	if err == nil && strings.TrimSpace(text) != "" {
		return text, nil
	}
	if err == nil {
		err = errNoPDFText
	}
	errs := []error{fmt.Errorf("pdfcpu: %w", err)}

	tmp, err := os.CreateTemp("", "resume-*.pdf")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	tools := [][]string{
		{"pdftotext", "-layout", tmp.Name(), "-"},
		{"ps2ascii", tmp.Name()},
	}
	for _, args := range tools {
		if _, err := exec.LookPath(args[0]); err != nil {
			errs = append(errs, fmt.Errorf("%s not available", args[0]))
			continue
		}
		out, err := exec.CommandContext(ctx, args[0], args[1:]...).Output()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s failed: %w", args[0], err))
			continue
		}
		if text := string(out); strings.TrimSpace(text) != "" {
			return text, nil
		}
	}
	return "", fmt.Errorf("failed to extract text from pdf: %w", errors.Join(errs...))
}
