package extract

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultSkills is the built-in vocabulary.
var DefaultSkills = []string{
	"Python", "Java", "JavaScript", "SQL", "AWS", "Docker", "Kubernetes", "React", "Node.js",
	"C++", "C#", "Git", "Linux", "TensorFlow", "PyTorch", "Machine Learning", "Data Analysis",
	"Communication", "Leadership", "Project Management", "Agile", "Scrum",
}

// Loader produces a skill vocabulary.
type Loader func() ([]string, error)

// Builtin loads DefaultSkills.
func Builtin() Loader {
	return func() ([]string, error) {
		return append([]string(nil), DefaultSkills...), nil
	}
}

// vocabularyFile is the YAML layout read by FileLoader:
//
//	skills:
//	  - Go
//	  - PostgreSQL
type vocabularyFile struct {
	Skills []string `yaml:"skills"`
	// Extend keeps DefaultSkills and adds Skills to them.
	Extend bool `yaml:"extend"`
}

// FileLoader loads the vocabulary from a YAML file.
func FileLoader(path string) Loader {
	return func() ([]string, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("extract: read vocabulary: %w", err)
		}
		var vf vocabularyFile
		if err := yaml.Unmarshal(data, &vf); err != nil {
			return nil, fmt.Errorf("extract: parse vocabulary %s: %w", path, err)
		}
		if len(vf.Skills) == 0 {
			return nil, fmt.Errorf("extract: vocabulary %s lists no skills", path)
		}
		if vf.Extend {
			return append(append([]string(nil), DefaultSkills...), vf.Skills...), nil
		}
		return vf.Skills, nil
	}
}

// term is a vocabulary entry with its lowercase form precomputed.
type term struct {
	name  string
	lower string
}

// newTerms trims words and drops blanks and case-insensitive duplicates,
// keeping the first spelling.
func newTerms(words []string) []term {
	seen := make(map[string]bool, len(words))
	out := make([]term, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		lw := strings.ToLower(w)
		if w == "" || seen[lw] {
			continue
		}
		seen[lw] = true
		out = append(out, term{name: w, lower: lw})
	}
	return out
}
