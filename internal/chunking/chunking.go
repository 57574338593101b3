// Package chunking splits a file's text into bounded-size, titled sections
// for introspect's map-reduce summarization, grounded on
// original_source/analysis/chunking.py.
package chunking

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Chunk is one titled, line-addressed slice of a file's text.
type Chunk struct {
	ID        string
	Title     string
	Strategy  string
	StartLine int
	EndLine   int
	Text      string
}

const defaultMaxChars = 40000

// ChunkFile splits text according to strategy ("auto", "headings", "code",
// "log", or "fixed"). "auto" resolves by path extension: .md/.rst ->
// headings, .log/.jsonl/.txt -> log, any recognized source extension ->
// code, everything else -> fixed. maxChars must be positive.
func ChunkFile(path, text, strategy string, maxChars int) ([]Chunk, error) {
	if maxChars <= 0 {
		return nil, fmt.Errorf("chunking: max_chars must be positive")
	}
	normalized := normalizeNewlines(text)
	if normalized == "" {
		return nil, nil
	}

	resolved := resolveStrategy(path, strategy)
	var chunks []Chunk
	switch resolved {
	case "headings":
		chunks = chunkByHeadings(path, normalized, maxChars)
	case "code":
		chunks = chunkByCode(path, normalized, maxChars)
	case "log":
		chunks = chunkByLog(path, normalized, maxChars)
	case "fixed":
		chunks = chunkFixed(path, normalized, maxChars)
	default:
		return nil, fmt.Errorf("chunking: unknown strategy %q", strategy)
	}
	for i := range chunks {
		chunks[i].Strategy = resolved
	}
	return chunks, nil
}

func normalizeNewlines(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

var sourceExtensions = map[string]bool{
	".go": true, ".py": true, ".js": true, ".ts": true, ".java": true,
	".c": true, ".h": true, ".cpp": true, ".rs": true, ".rb": true,
}

func resolveStrategy(path, strategy string) string {
	lowered := strings.ToLower(strings.TrimSpace(strategy))
	if lowered != "" && lowered != "auto" {
		return lowered
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".log", ".jsonl", ".txt":
		return "log"
	case ".md", ".rst":
		return "headings"
	}
	if sourceExtensions[strings.ToLower(filepath.Ext(path))] {
		return "code"
	}
	return "fixed"
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func buildChunk(path, title string, startLine, endLine int, text string) Chunk {
	return Chunk{
		ID:        chunkID(path, startLine, endLine, title),
		Title:     title,
		StartLine: startLine,
		EndLine:   endLine,
		Text:      text,
	}
}

func chunkID(path string, startLine, endLine int, title string) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%s:%d:%d:%s", path, startLine, endLine, title)))
	return hex.EncodeToString(sum[:])[:10]
}

// splitOversize recursively breaks a titled section down to fit maxChars,
// labeling the resulting parts "title (part i/n)" when more than one part
// results.
func splitOversize(path, title string, startLine, endLine int, text string, maxChars int) []Chunk {
	if len(text) <= maxChars {
		return []Chunk{buildChunk(path, title, startLine, endLine, text)}
	}

	lines := splitLines(text)
	var parts []Chunk
	var buf strings.Builder
	bufLen := 0
	partStart := startLine

	flush := func(endAt int) {
		if buf.Len() == 0 {
			return
		}
		parts = append(parts, buildChunk(path, title, partStart, endAt, buf.String()))
		buf.Reset()
		bufLen = 0
	}

	lineNo := startLine
	for _, line := range lines {
		lineLen := len(line)
		if lineLen > maxChars {
			flush(lineNo - 1)
			parts = append(parts, splitLongLine(path, title, lineNo, line, maxChars)...)
			partStart = lineNo + 1
			lineNo++
			continue
		}
		if bufLen > 0 && bufLen+lineLen > maxChars {
			flush(lineNo - 1)
			partStart = lineNo
		}
		buf.WriteString(line)
		bufLen += lineLen
		lineNo++
	}
	flush(partStart + countLines(buf.String()) - 1)
	if buf.Len() > 0 {
		// flush above already reset buf; this branch is unreachable in
		// practice but kept defensive against a future refactor.
		parts = append(parts, buildChunk(path, title, partStart, lineNo-1, buf.String()))
	}

	if len(parts) <= 1 {
		return parts
	}
	total := len(parts)
	labeled := make([]Chunk, len(parts))
	for i, p := range parts {
		labeledTitle := fmt.Sprintf("%s (part %d/%d)", title, i+1, total)
		labeled[i] = buildChunk(path, labeledTitle, p.StartLine, p.EndLine, p.Text)
	}
	return labeled
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + boolToInt(!strings.HasSuffix(s, "\n"))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func splitLongLine(path, title string, lineNo int, line string, maxChars int) []Chunk {
	var parts []Chunk
	for start := 0; start < len(line); start += maxChars {
		end := start + maxChars
		if end > len(line) {
			end = len(line)
		}
		parts = append(parts, buildChunk(path, title, lineNo, lineNo, line[start:end]))
	}
	return parts
}

func chunkFixed(path, text string, maxChars int) []Chunk {
	lines := splitLines(text)
	if len(lines) == 0 {
		return nil
	}
	var chunks []Chunk
	var buf strings.Builder
	bufLen := 0
	startLine := 1

	for idx, line := range lines {
		lineNo := idx + 1
		lineLen := len(line)
		if lineLen > maxChars {
			if buf.Len() > 0 {
				chunks = append(chunks, buildChunk(path, "chunk", startLine, lineNo-1, buf.String()))
				buf.Reset()
				bufLen = 0
			}
			chunks = append(chunks, splitLongLine(path, "chunk", lineNo, line, maxChars)...)
			startLine = lineNo + 1
			continue
		}
		if bufLen > 0 && bufLen+lineLen > maxChars {
			chunks = append(chunks, buildChunk(path, "chunk", startLine, lineNo-1, buf.String()))
			buf.Reset()
			bufLen = 0
			startLine = lineNo
		}
		buf.WriteString(line)
		bufLen += lineLen
	}
	if buf.Len() > 0 {
		endLine := startLine + countLines(buf.String()) - 1
		chunks = append(chunks, buildChunk(path, "chunk", startLine, endLine, buf.String()))
	}
	return chunks
}

var (
	mdHeadingRe   = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
	underlineRe   = regexp.MustCompile(`^[=\-]{3,}\s*$`)
)

func chunkByHeadings(path, text string, maxChars int) []Chunk {
	lines := splitLines(text)
	if len(lines) == 0 {
		return nil
	}
	headings := extractHeadings(lines)

	type section struct {
		start, end int
		title      string
	}
	var sections []section
	if len(headings) > 0 {
		first := headings[0].line
		if first > 1 {
			sections = append(sections, section{1, first - 1, "preamble"})
		}
		for i, h := range headings {
			next := len(lines) + 1
			if i+1 < len(headings) {
				next = headings[i+1].line
			}
			sections = append(sections, section{h.line, next - 1, h.title})
		}
	} else {
		sections = append(sections, section{1, len(lines), "document"})
	}

	var chunks []Chunk
	for _, s := range sections {
		if s.end < s.start {
			continue
		}
		sectionText := strings.Join(lines[s.start-1:s.end], "")
		chunks = append(chunks, splitOversize(path, s.title, s.start, s.end, sectionText, maxChars)...)
	}
	return chunks
}

type heading struct {
	line  int
	title string
}

func extractHeadings(lines []string) []heading {
	var out []heading
	idx := 0
	for idx < len(lines) {
		line := strings.TrimRight(lines[idx], "\n")
		if m := mdHeadingRe.FindStringSubmatch(line); m != nil {
			title := strings.TrimSpace(m[2])
			if title == "" {
				title = "heading"
			}
			out = append(out, heading{idx + 1, title})
			idx++
			continue
		}
		if idx+1 < len(lines) {
			underline := strings.TrimRight(lines[idx+1], "\n")
			if underlineRe.MatchString(underline) && strings.TrimSpace(line) != "" {
				out = append(out, heading{idx + 1, strings.TrimSpace(line)})
				idx += 2
				continue
			}
		}
		idx++
	}
	return out
}

// codeDeclRe recognizes top-level declarations across common C-family and
// scripting languages. This replaces the ancestor's python_ast strategy,
// which parsed Python specifically via the ast module; this corpus is
// language-agnostic, so a regex scan over common declaration keywords
// stands in for a real per-language parser.
var codeDeclRe = regexp.MustCompile(`^(func|def|class|type|struct|interface|impl|fn)\s+\S`)

func chunkByCode(path, text string, maxChars int) []Chunk {
	lines := splitLines(text)
	if len(lines) == 0 {
		return nil
	}

	type decl struct {
		line  int
		title string
	}
	var decls []decl
	for i, line := range lines {
		trimmed := strings.TrimRight(line, "\n")
		if codeDeclRe.MatchString(trimmed) {
			decls = append(decls, decl{i + 1, strings.TrimSpace(trimmed)})
		}
	}
	if len(decls) == 0 {
		return splitOversize(path, "module", 1, len(lines), text, maxChars)
	}

	var chunks []Chunk
	firstStart := decls[0].line
	if firstStart > 1 {
		preText := strings.Join(lines[:firstStart-1], "")
		chunks = append(chunks, splitOversize(path, "module", 1, firstStart-1, preText, maxChars)...)
	}
	for i, d := range decls {
		end := len(lines)
		if i+1 < len(decls) {
			end = decls[i+1].line - 1
		}
		if end < d.line {
			continue
		}
		sectionText := strings.Join(lines[d.line-1:end], "")
		chunks = append(chunks, splitOversize(path, d.title, d.line, end, sectionText, maxChars)...)
	}
	return chunks
}

var (
	logLineRe = regexp.MustCompile(`^(?:\d{4}-\d{2}-\d{2}[ T]\d{2}:\d{2}:\d{2}|\d{2}:\d{2}:\d{2}|(?:INFO|WARN|WARNING|ERROR|DEBUG|TRACE|FATAL)\b|[A-Z][a-z]{2}\s+\d{1,2}\s+\d{2}:\d{2}:\d{2})`)
	prefixRe  = regexp.MustCompile(`^[A-Za-z0-9_.-]{2,}:\s`)
)

// chunkByLog groups lines into alternating log/non-log blocks, keeping the
// last 200 lines as a distinct "tail" chunk so a map-reduce summarizer
// always sees the most recent activity as its own unit.
func chunkByLog(path, text string, maxChars int) []Chunk {
	lines := splitLines(text)
	if len(lines) == 0 {
		return nil
	}

	tailCount := 200
	if tailCount > len(lines) {
		tailCount = len(lines)
	}
	tailStart := len(lines) - tailCount + 1
	mainLines := lines[:tailStart-1]

	type block struct {
		start, end int
		isLog      bool
		text       string
	}
	var blocks []block
	if len(mainLines) > 0 {
		var currentKind *bool
		var buf strings.Builder
		bufStart := 1
		for i, line := range mainLines {
			lineNo := i + 1
			kind := classifyLogLine(line)
			resolved := false
			if kind != nil {
				resolved = *kind
			} else if currentKind != nil {
				resolved = *currentKind
			}
			if currentKind == nil {
				currentKind = &resolved
				bufStart = lineNo
			} else if resolved != *currentKind {
				if buf.Len() > 0 {
					blocks = append(blocks, block{bufStart, lineNo - 1, *currentKind, buf.String()})
				}
				buf.Reset()
				bufStart = lineNo
				ck := resolved
				currentKind = &ck
			}
			buf.WriteString(line)
		}
		if buf.Len() > 0 {
			blocks = append(blocks, block{bufStart, len(mainLines), *currentKind, buf.String()})
		}
	}

	var chunks []Chunk
	logIdx, nonLogIdx := 0, 0
	for _, b := range blocks {
		var title string
		if b.isLog {
			logIdx++
			title = fmt.Sprintf("log block %d", logIdx)
		} else {
			nonLogIdx++
			title = fmt.Sprintf("non-log block %d", nonLogIdx)
		}
		chunks = append(chunks, splitOversize(path, title, b.start, b.end, b.text, maxChars)...)
	}

	tailText := strings.Join(lines[tailStart-1:], "")
	if tailText != "" {
		chunks = append(chunks, splitOversize(path, "tail", tailStart, len(lines), tailText, maxChars)...)
	}
	return chunks
}

func classifyLogLine(line string) *bool {
	stripped := strings.TrimSpace(line)
	if stripped == "" {
		return nil
	}
	yes := true
	if strings.HasPrefix(stripped, "{") && strings.HasSuffix(stripped, "}") {
		return &yes
	}
	if logLineRe.MatchString(stripped) {
		return &yes
	}
	if prefixRe.MatchString(stripped) {
		return &yes
	}
	if symbolRatio(stripped) >= 0.35 {
		return &yes
	}
	no := false
	return &no
}

func symbolRatio(text string) float64 {
	const symbolChars = "[]{}()=:+-_/\\|<>.,'\""
	symbols, nonSpace := 0, 0
	for _, ch := range text {
		if ch == ' ' || ch == '\t' {
			continue
		}
		nonSpace++
		if (ch >= '0' && ch <= '9') || strings.ContainsRune(symbolChars, ch) {
			symbols++
		}
	}
	if nonSpace == 0 {
		return 0
	}
	return float64(symbols) / float64(nonSpace)
}
