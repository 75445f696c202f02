package extract

import (
	"strings"
	"testing"
)

// benchmarkDescription builds a description of roughly size bytes.
func benchmarkDescription(size int) string {
	sb := strings.Builder{}
	sb.Grow(size)

	paragraphs := []string{
		"Our platform team builds data pipelines in Python and SQL on AWS.",
		"- Maintain Docker images and Kubernetes manifests for internal services",
		"- Improve React dashboards used by the analytics group",
		"Interns pair with mentors and present their work at the end of the summer.",
		"Experience with machine learning frameworks such as PyTorch is a plus.",
	}

	for sb.Len() < size {
		for _, p := range paragraphs {
			sb.WriteString(p)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func BenchmarkFindSkills_Small(b *testing.B) {
	content := benchmarkDescription(1024)
	terms := newTerms(DefaultSkills)

	b.ReportAllocs()
	for b.Loop() {
		findSkills(content, terms)
	}
}

func BenchmarkFindSkills_Large(b *testing.B) {
	content := benchmarkDescription(64 * 1024)
	terms := newTerms(DefaultSkills)

	b.ReportAllocs()
	for b.Loop() {
		findSkills(content, terms)
	}
}

func BenchmarkExtract(b *testing.B) {
	content := benchmarkDescription(8 * 1024)
	e := New(nil, nil)
	_ = e.Load()

	b.ReportAllocs()
	for b.Loop() {
		e.Extract(content)
	}
}
