package analysis

import "strings"

const (
	DefaultPrimaryLabel   = "Maker Justification"
	DefaultSecondaryLabel = "Checker Justification"
)

// Request is one row submitted for classification. The core never mutates it.
type Request struct {
	ID            string `json:"id"`
	PrimaryText   string `json:"primaryText"`
	SecondaryText string `json:"secondaryText"`
	Included      bool   `json:"selected"`
}

// Labels name the sections of a combined text.
type Labels struct {
	Primary   string
	Secondary string
}

// DefaultLabels returns the maker/checker section labels.
func DefaultLabels() Labels {
	return Labels{Primary: DefaultPrimaryLabel, Secondary: DefaultSecondaryLabel}
}

// CombinedText builds the text sent to the classifier. When both fields are
// present they are joined as labeled sections, primary first. An empty result
// means the row has no input.
func (r Request) CombinedText(labels Labels) string {
	switch {
	case r.PrimaryText != "" && r.SecondaryText != "":
		if labels.Primary == "" {
			labels.Primary = DefaultPrimaryLabel
		}
		if labels.Secondary == "" {
			labels.Secondary = DefaultSecondaryLabel
		}
		var b strings.Builder
		b.WriteString(labels.Primary)
		b.WriteString(": ")
		b.WriteString(r.PrimaryText)
		b.WriteString("\n\n")
		b.WriteString(labels.Secondary)
		b.WriteString(": ")
		b.WriteString(r.SecondaryText)
		return b.String()
	case r.PrimaryText != "":
		return r.PrimaryText
	default:
		return r.SecondaryText
	}
}

// Selected returns the included requests in input order.
func Selected(reqs []Request) []Request {
	out := make([]Request, 0, len(reqs))
	for _, r := range reqs {
		if r.Included {
			out = append(out, r)
		}
	}
	return out
}
