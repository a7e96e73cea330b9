// Package defaults ships the starter layout for each page type. New stores
// (and the reset operation) seed their drafts from these embedded templates.
package defaults

import (
	"embed"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/lumaworks/slotline/slot"
)

//go:embed templates/*.yaml
var templates embed.FS

// ErrUnknownPageType is returned when no template exists for a page type.
var ErrUnknownPageType = fmt.Errorf("defaults: unknown page type")

// file mirrors the YAML template shape. Slots are a flat list; parent links
// express the hierarchy, same as the stored document.
type file struct {
	PageType  string     `yaml:"page_type"`
	CMSBlocks []string   `yaml:"cms_blocks"`
	Slots     []yamlSlot `yaml:"slots"`
}

type yamlSlot struct {
	ID        string            `yaml:"id"`
	Type      string            `yaml:"type"`
	Component string            `yaml:"component"`
	ParentID  string            `yaml:"parent_id"`
	Col       int               `yaml:"col"`
	Row       int               `yaml:"row"`
	ColSpan   int               `yaml:"col_span"`
	RowSpan   int               `yaml:"row_span"`
	ViewModes []string          `yaml:"view_modes"`
	ClassName string            `yaml:"class_name"`
	Content   string            `yaml:"content"`
	Metadata  map[string]any    `yaml:"metadata"`
	Styles    map[string]string `yaml:"styles"`
}

var (
	once   sync.Once
	parsed map[string]*slot.Document
	pErr   error
)

func load() (map[string]*slot.Document, error) {
	once.Do(func() {
		parsed = make(map[string]*slot.Document)
		entries, err := templates.ReadDir("templates")
		if err != nil {
			pErr = err
			return
		}
		for _, e := range entries {
			raw, err := templates.ReadFile("templates/" + e.Name())
			if err != nil {
				pErr = err
				return
			}
			var f file
			if err := yaml.Unmarshal(raw, &f); err != nil {
				pErr = fmt.Errorf("defaults: parse %s: %w", e.Name(), err)
				return
			}
			doc, err := f.document()
			if err != nil {
				pErr = fmt.Errorf("defaults: %s: %w", e.Name(), err)
				return
			}
			parsed[f.PageType] = doc
		}
	})
	return parsed, pErr
}

func (f *file) document() (*slot.Document, error) {
	doc := slot.NewDocument("", f.PageType)
	doc.CMSBlocks = append(doc.CMSBlocks, f.CMSBlocks...)
	for _, ys := range f.Slots {
		doc.Add(&slot.Slot{
			ID:        ys.ID,
			Type:      slot.Type(ys.Type),
			Component: ys.Component,
			ParentID:  ys.ParentID,
			Position:  slot.Position{Col: ys.Col, Row: ys.Row},
			ColSpan:   ys.ColSpan,
			RowSpan:   ys.RowSpan,
			ViewModes: ys.ViewModes,
			ClassName: ys.ClassName,
			Content:   ys.Content,
			Metadata:  ys.Metadata,
			Styles:    ys.Styles,
		})
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

// Document returns a deep copy of the default layout for pageType, stamped
// with storeID. Callers own the copy.
func Document(storeID, pageType string) (*slot.Document, error) {
	all, err := load()
	if err != nil {
		return nil, err
	}
	doc, ok := all[pageType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPageType, pageType)
	}
	out := doc.Clone()
	out.StoreID = storeID
	return out, nil
}

// PageTypes lists every page type with an embedded template, sorted.
func PageTypes() ([]string, error) {
	all, err := load()
	if err != nil {
		return nil, err
	}
	types := make([]string, 0, len(all))
	for pt := range all {
		types = append(types, pt)
	}
	sort.Strings(types)
	return types, nil
}
