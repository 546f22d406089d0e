package diffengine

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Op classifies a rendered line.
type Op int

const (
	OpEqual Op = iota
	OpInsert
	OpDelete
)

// Line is one rendered line of a line-mode diff. Text excludes the trailing newline.
type Line struct {
	Op   Op
	Text string
}

// Render produces a line-mode diff of before and after.
func Render(before, after string) []Line {
	if before == after && before == "" {
		return nil
	}

	dmp := diffmatchpatch.New()
	rBefore, rAfter, lineArray := dmp.DiffLinesToRunes(before, after)
	diffs := dmp.DiffMainRunes(rBefore, rAfter, false)
	diffs = dmp.DiffCleanupMerge(diffs)

	var lines []Line
	for _, d := range diffs {
		var op Op
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			op = OpInsert
		case diffmatchpatch.DiffDelete:
			op = OpDelete
		default:
			op = OpEqual
		}
		for _, r := range d.Text {
			idx := int(r)
			if idx < 0 || idx >= len(lineArray) {
				continue
			}
			lines = append(lines, Line{Op: op, Text: strings.TrimSuffix(lineArray[idx], "\n")})
		}
	}
	return lines
}

// Unified renders the diff of before and after with "+", "-" and " " prefixes.
func Unified(before, after string) string {
	var sb strings.Builder
	for _, l := range Render(before, after) {
		switch l.Op {
		case OpInsert:
			sb.WriteByte('+')
		case OpDelete:
			sb.WriteByte('-')
		default:
			sb.WriteByte(' ')
		}
		sb.WriteString(l.Text)
		sb.WriteByte('\n')
	}
	return sb.String()
}
