// Package extract pulls structured fields out of free-text job
// descriptions: a title line, bulleted responsibilities and skills from a
// vocabulary.
//
// An Extractor loads its vocabulary once, on first use, and is read-only
// afterwards, so a single instance can be shared by concurrent pipeline
// runs.
package extract

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/FranksOps/internsift/internal/listing"
)

// Fields is the result of Extract.
type Fields struct {
	Title            *string  `json:"title,omitempty"`
	Responsibilities []string `json:"responsibilities"`
	Skills           []string `json:"skills"`
}

// Extractor extracts Fields from descriptions.
type Extractor struct {
	loader Loader
	logger *slog.Logger

	once   sync.Once
	skills []term
	err    error
}

// New creates an extractor whose vocabulary comes from loader. A nil loader
// uses the built-in skill list. Nothing is loaded until first use.
func New(loader Loader, logger *slog.Logger) *Extractor {
	if loader == nil {
		loader = Builtin()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{loader: loader, logger: logger}
}

// Load loads the vocabulary if that has not happened yet and returns the
// load error, if any. Calling it is optional.
func (e *Extractor) Load() error {
	e.once.Do(func() {
		words, err := e.loader()
		if err != nil {
			e.err = err
			e.logger.Warn("skill vocabulary unavailable, skills will not be extracted", "err", err)
			return
		}
		e.skills = newTerms(words)
		e.logger.Debug("skill vocabulary loaded", "skills", len(e.skills))
	})
	return e.err
}

// Skills returns the loaded vocabulary.
func (e *Extractor) Skills() []string {
	_ = e.Load()
	out := make([]string, len(e.skills))
	for i, s := range e.skills {
		out[i] = s.name
	}
	return out
}

// Extract returns the fields found in text.
func (e *Extractor) Extract(text string) Fields {
	_ = e.Load()

	f := Fields{
		Title:            titleLine(text),
		Responsibilities: responsibilities(text),
		Skills:           findSkills(text, e.skills),
	}
	if f.Responsibilities == nil {
		f.Responsibilities = []string{}
	}
	if f.Skills == nil {
		f.Skills = []string{}
	}
	return f
}

// Enrich returns l with Skills and Responsibilities taken from its
// description. A listing without a description is returned unchanged.
func (e *Extractor) Enrich(l listing.Listing) listing.Listing {
	if l.Description == nil {
		return l
	}
	f := e.Extract(*l.Description)
	if len(f.Skills) > 0 {
		l.Skills = f.Skills
	}
	if len(f.Responsibilities) > 0 {
		l.Responsibilities = f.Responsibilities
	}
	return l
}

// titleLine returns the first line longer than five characters and shorter
// than ten words.
func titleLine(text string) *string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) > 5 && len(strings.Fields(line)) < 10 {
			return &line
		}
	}
	return nil
}
