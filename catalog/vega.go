package catalog

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/poiesic/advisor/core"
)

// searchPayload is the body of a format-group search.
type searchPayload struct {
	SearchText          string   `json:"searchText"`
	Sorting             string   `json:"sorting"`
	SortOrder           string   `json:"sortOrder"`
	SearchType          string   `json:"searchType"`
	UniversalLimiterIDs []string `json:"universalLimiterIds"`
	PageNum             int      `json:"pageNum"`
	PageSize            int      `json:"pageSize"`
	ResourceType        string   `json:"resourceType"`
	LocationIDs         int      `json:"locationIds,omitempty"`
	MaterialTypeIDs     int      `json:"materialTypeIds,omitempty"`
}

func buildSearchPayload(cfg Config, req SearchRequest) searchPayload {
	return searchPayload{
		SearchText:          req.Partition,
		Sorting:             "title",
		SortOrder:           "asc",
		SearchType:          "everything",
		UniversalLimiterIDs: []string{"at_library"},
		PageNum:             req.Page,
		PageSize:            cfg.PageSize,
		ResourceType:        "FormatGroup",
		LocationIDs:         cfg.LocationIDs,
		MaterialTypeIDs:     cfg.MaterialTypeIDs,
	}
}

// flexString decodes a JSON string, number or null into a string.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*s = flexString(n.String())
	return nil
}

type edition struct {
	ID              flexString `json:"id"`
	PublicationDate flexString `json:"publicationDate"`
}

type materialTab struct {
	Name       flexString `json:"name"`
	Type       flexString `json:"type"`
	CallNumber flexString `json:"callNumber"`
	Editions   []edition  `json:"editions"`
}

type formatGroup struct {
	ID              flexString `json:"id"`
	Title           flexString `json:"title"`
	PublicationDate flexString `json:"publicationDate"`
	PrimaryAgent    *struct {
		Label flexString `json:"label"`
	} `json:"primaryAgent"`
	MaterialTabs []materialTab `json:"materialTabs"`
}

// SearchPage is one page of format-group search results.
type SearchPage struct {
	Records      []core.CatalogRecord
	TotalPages   int
	TotalResults int
}

type searchResponse struct {
	Data         []formatGroup `json:"data"`
	TotalPages   *int          `json:"totalPages"`
	TotalResults int           `json:"totalResults"`
}

func (r *searchResponse) page() *SearchPage {
	totalPages := 1
	if r.TotalPages != nil {
		totalPages = *r.TotalPages
	}
	records := make([]core.CatalogRecord, 0, len(r.Data))
	for _, fg := range r.Data {
		records = append(records, fg.record())
	}
	return &SearchPage{
		Records:      records,
		TotalPages:   totalPages,
		TotalResults: r.TotalResults,
	}
}

func (fg *formatGroup) record() core.CatalogRecord {
	rec := core.CatalogRecord{
		ID:              strings.TrimSpace(string(fg.ID)),
		Title:           strings.TrimSpace(string(fg.Title)),
		PublicationDate: string(fg.PublicationDate),
	}
	if fg.PrimaryAgent != nil {
		rec.Author = string(fg.PrimaryAgent.Label)
	}
	for _, tab := range fg.MaterialTabs {
		m := core.Material{
			Name:       string(tab.Name),
			Type:       string(tab.Type),
			CallNumber: string(tab.CallNumber),
		}
		for _, e := range tab.Editions {
			m.Editions = append(m.Editions, core.Edition{
				ID:              string(e.ID),
				PublicationDate: string(e.PublicationDate),
			})
		}
		rec.Materials = append(rec.Materials, m)
	}
	if len(rec.Materials) > 0 {
		rec.ItemType = rec.Materials[0].Name
		rec.Available = true
	}
	return rec
}

// Edition is the metadata of one edition used to enrich a record.
type Edition struct {
	Subjects     string
	Summary      string
	Contributors []string
}

type editionResponse struct {
	Edition map[string]json.RawMessage `json:"edition"`
}

// processEdition joins subj* fields with "; " and note* fields with " ".
// Only string-valued fields count. Keys are visited in sorted order.
func processEdition(fields map[string]json.RawMessage) *Edition {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var subjects, notes []string
	for _, k := range keys {
		isSubject := strings.HasPrefix(k, "subj")
		isNote := strings.HasPrefix(k, "note")
		if !isSubject && !isNote {
			continue
		}
		var v string
		if err := json.Unmarshal(fields[k], &v); err != nil {
			continue
		}
		if isSubject {
			subjects = append(subjects, v)
		} else {
			notes = append(notes, v)
		}
	}

	return &Edition{
		Subjects:     strings.Join(subjects, "; "),
		Summary:      strings.Join(notes, " "),
		Contributors: parseContributors(fields["contributors"]),
	}
}

// parseContributors accepts a list of strings or of objects with a label or
// name.
func parseContributors(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	var out []string
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
			continue
		}
		var obj struct {
			Label flexString `json:"label"`
			Name  flexString `json:"name"`
		}
		if err := json.Unmarshal(item, &obj); err != nil {
			continue
		}
		switch {
		case obj.Label != "":
			out = append(out, string(obj.Label))
		case obj.Name != "":
			out = append(out, string(obj.Name))
		}
	}
	return out
}

// parseRetryAfter reads a Retry-After header given in seconds.
func parseRetryAfter(value string) (int, bool) {
	secs, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || secs < 0 {
		return 0, false
	}
	return secs, true
}
