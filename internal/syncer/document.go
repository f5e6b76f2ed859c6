package syncer

import (
	"slices"
	"strings"

	"github.com/starford/orgsync/internal/checksum"
	"github.com/starford/orgsync/internal/models"
	"github.com/starford/orgsync/internal/org"
)

// DocumentDetail is the raw outline plus its checksum.
type DocumentDetail struct {
	models.DocumentInfo
	Content string `json:"content"`
}

// Document returns the raw text of the outline at path.
func (s *Syncer) Document(path string) (*DocumentDetail, error) {
	info, err := s.store.Stat(path)
	if err != nil {
		return nil, err
	}
	data, err := s.store.Read(path)
	if err != nil {
		return nil, err
	}
	info.Checksum = checksum.Sum(data)
	return &DocumentDetail{DocumentInfo: info, Content: string(data)}, nil
}

// Documents lists every outline under the store root.
func (s *Syncer) Documents() ([]models.DocumentInfo, error) {
	docs, err := s.store.List("")
	if err != nil {
		return nil, err
	}
	slices.SortFunc(docs, func(a, b models.DocumentInfo) int {
		return strings.Compare(a.Path, b.Path)
	})
	return docs, nil
}

// Inspect parses the outline at path and summarizes it. With headings set
// the summary lists every heading.
func (s *Syncer) Inspect(path string, headings bool) (*models.DocumentSummary, error) {
	data, err := s.store.Read(path)
	if err != nil {
		return nil, err
	}
	sum := Summarize(path, string(data), headings)
	return &sum, nil
}

// Summarize builds the structural summary of an outline's text.
func Summarize(path, text string, headings bool) models.DocumentSummary {
	doc := org.Parse(text)
	sum := models.DocumentSummary{
		Path:     path,
		Metadata: doc.Metadata(),
		TopLevel: len(doc.Headings),
	}
	if len(sum.Metadata) == 0 {
		sum.Metadata = nil
	}
	for _, h := range org.Flatten(doc.Headings) {
		sum.TotalHeadings++
		linked := h.IsLinked()
		if linked {
			sum.Linked++
		}
		switch h.State {
		case org.StateTodo:
			sum.Open++
		case org.StateDone:
			sum.Done++
		}
		if !headings {
			continue
		}
		hs := models.HeadingSummary{
			Line:   h.Line,
			Level:  h.Level,
			State:  h.State.Keyword(),
			Title:  h.Title,
			Tags:   h.Tags,
			Linked: linked,
		}
		if n, err := h.Number(); err == nil {
			hs.Number = n
		}
		if h.Properties.Len() > 0 {
			hs.Props = h.Properties.Map()
		}
		sum.Headings = append(sum.Headings, hs)
	}
	return sum
}
