package contextdoc

import "strings"

// Sections are top-level "## Name" blocks; a section's body runs until
// the next top-level header. Deeper headers (###...) belong to the body.

func sectionHeader(name string) string {
	name = strings.TrimSpace(name)
	if strings.HasPrefix(name, "##") {
		return name
	}
	return "## " + name
}

func isSectionBoundary(line string) bool {
	return strings.HasPrefix(line, "## ")
}

// findSection returns the header line index and the index one past the
// section's last body line, or (-1, -1) when absent.
func findSection(lines []string, header string) (start, end int) {
	start = -1
	for i, line := range lines {
		if strings.TrimSpace(line) == header {
			start = i
			break
		}
	}
	if start < 0 {
		return -1, -1
	}

	end = len(lines)
	for i := start + 1; i < len(lines); i++ {
		if isSectionBoundary(lines[i]) {
			end = i
			break
		}
	}
	return start, end
}

// setSection replaces the body of the named section, creating the
// section at the end of the document when absent. All other lines pass
// through verbatim.
func setSection(doc, name, text string) string {
	header := sectionHeader(name)
	lines := strings.Split(strings.TrimRight(doc, "\n"), "\n")

	start, end := findSection(lines, header)
	if start < 0 {
		return appendSectionBlock(lines, header, text)
	}

	var out []string
	out = append(out, lines[:start+1]...)
	out = append(out, text)
	out = append(out, lines[end:]...)
	return strings.Join(out, "\n")
}

// appendToSection adds text to the end of the named section's body,
// creating the section when absent.
func appendToSection(doc, name, text string) string {
	header := sectionHeader(name)
	lines := strings.Split(strings.TrimRight(doc, "\n"), "\n")

	start, end := findSection(lines, header)
	if start < 0 {
		return appendSectionBlock(lines, header, text)
	}

	// Drop trailing blank lines of the body so the addition sits flush.
	insert := end
	for insert > start+1 && strings.TrimSpace(lines[insert-1]) == "" {
		insert--
	}

	var out []string
	out = append(out, lines[:insert]...)
	out = append(out, text)
	out = append(out, lines[insert:]...)
	return strings.Join(out, "\n")
}

func appendSectionBlock(lines []string, header, text string) string {
	out := lines
	if len(out) > 0 && strings.TrimSpace(out[len(out)-1]) != "" {
		out = append(out, "")
	}
	out = append(out, header, text)
	return strings.Join(out, "\n")
}
