// Package profile maps the layout of a product page to a models.Whisky.
//
// A Profile is declared in YAML: the sitemap filters that pick out product
// pages, the text blocks flattened into label/value tokens, and one Rule per
// output field naming where the text lives and how it is parsed.
package profile

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Field names an output field of models.Whisky.
type Field string

const (
	FieldName       Field = "name"
	FieldPrice      Field = "price"
	FieldReserveMet Field = "reserve_met"
	FieldDistillery Field = "distillery"
	FieldAge        Field = "age"
	FieldVintage    Field = "vintage"
	FieldBottled    Field = "bottled"
	FieldRegion     Field = "region"
	FieldBottler    Field = "bottler"
	FieldCaskType   Field = "cask_type"
	FieldABV        Field = "abv"
	FieldBottleSize Field = "bottle_size"
	FieldCatalogID  Field = "catalog_id"
	FieldScore      Field = "score"
)

// Kind selects the parser applied to a rule's text.
type Kind string

const (
	KindText  Kind = "text"
	KindInt   Kind = "int"
	KindPrice Kind = "price"
	KindDate  Kind = "date"
	KindYear  Kind = "year"
	KindABV   Kind = "abv"
	KindFlag  Kind = "flag"
)

// fieldKinds lists the parsers each field accepts; the first is the default.
var fieldKinds = map[Field][]Kind{
	FieldName:       {KindText},
	FieldPrice:      {KindPrice},
	FieldReserveMet: {KindFlag},
	FieldDistillery: {KindText},
	FieldAge:        {KindInt},
	FieldVintage:    {KindDate, KindYear},
	FieldBottled:    {KindDate, KindYear},
	FieldRegion:     {KindText},
	FieldBottler:    {KindText},
	FieldCaskType:   {KindText},
	FieldABV:        {KindABV},
	FieldBottleSize: {KindText},
	FieldCatalogID:  {KindText},
	FieldScore:      {KindText},
}

// Block is a page region whose text is flattened into tokens for column
// lookups.
type Block struct {
	Selector string `yaml:"selector"`
	Required bool   `yaml:"required"`
}

// Rule describes how one field is extracted.
type Rule struct {
	Field Field `yaml:"field"`

	// Selector reads the first text of the first match. With FullText the
	// whole subtree text is used, whitespace collapsed.
	Selector string `yaml:"selector"`
	FullText bool   `yaml:"full_text"`

	// Block and Column read the token following Column inside a block.
	Block  string `yaml:"block"`
	Column string `yaml:"column"`

	// Split cuts the text on a separator and keeps the Index-th part.
	Split string `yaml:"split"`
	Index int    `yaml:"index"`

	Skip     []string `yaml:"skip"`
	Contains string   `yaml:"contains"`

	Parse Kind   `yaml:"parse"`
	Match string `yaml:"match"`

	Required bool `yaml:"required"`
}

func (r Rule) source() string {
	if r.Selector != "" {
		return r.Selector
	}
	return r.Block + "/" + r.Column
}

// Profile is the extraction profile of one site.
type Profile struct {
	Name          string           `yaml:"name"`
	Domain        string           `yaml:"domain"`
	RootSitemap   string           `yaml:"root_sitemap"`
	SitemapFilter string           `yaml:"sitemap_filter"`
	PageFilter    string           `yaml:"page_filter"`
	RandomDelay   time.Duration    `yaml:"random_delay"`
	Blocks        map[string]Block `yaml:"blocks"`
	Fields        []Rule           `yaml:"fields"`
}

// Validate checks the profile is complete and fills default parsers.
func (p *Profile) Validate() error {
	if p.Name == "" {
		return errors.New("profile name cannot be empty")
	}
	if p.Domain == "" {
		return fmt.Errorf("profile %s: domain cannot be empty", p.Name)
	}
	root, err := url.Parse(p.RootSitemap)
	if err != nil {
		return fmt.Errorf("profile %s: invalid root sitemap: %w", p.Name, err)
	}
	if root.Host == "" {
		return fmt.Errorf("profile %s: root sitemap must include a host", p.Name)
	}
	if host := root.Hostname(); host != p.Domain && !strings.HasSuffix(host, "."+p.Domain) {
		return fmt.Errorf("profile %s: root sitemap host %s is outside domain %s", p.Name, host, p.Domain)
	}
	if p.RandomDelay < 0 {
		return fmt.Errorf("profile %s: random delay cannot be negative", p.Name)
	}
	for name, block := range p.Blocks {
		if block.Selector == "" {
			return fmt.Errorf("profile %s: block %s has no selector", p.Name, name)
		}
	}

	seen := make(map[Field]bool, len(p.Fields))
	for i := range p.Fields {
		rule := &p.Fields[i]
		kinds, ok := fieldKinds[rule.Field]
		if !ok {
			return fmt.Errorf("profile %s: unknown field %q", p.Name, rule.Field)
		}
		if seen[rule.Field] {
			return fmt.Errorf("profile %s: field %s declared twice", p.Name, rule.Field)
		}
		seen[rule.Field] = true

		if rule.Parse == "" {
			rule.Parse = kinds[0]
		}
		if !containsKind(kinds, rule.Parse) {
			return fmt.Errorf("profile %s: field %s cannot be parsed as %s", p.Name, rule.Field, rule.Parse)
		}
		if rule.Parse == KindFlag && rule.Match == "" {
			return fmt.Errorf("profile %s: flag field %s needs a match", p.Name, rule.Field)
		}

		switch {
		case rule.Selector != "" && rule.Block != "":
			return fmt.Errorf("profile %s: field %s has both selector and block", p.Name, rule.Field)
		case rule.Selector != "":
		case rule.Block != "":
			if _, ok := p.Blocks[rule.Block]; !ok {
				return fmt.Errorf("profile %s: field %s references unknown block %s", p.Name, rule.Field, rule.Block)
			}
			if rule.Column == "" {
				return fmt.Errorf("profile %s: field %s needs a column", p.Name, rule.Field)
			}
		default:
			return fmt.Errorf("profile %s: field %s has no selector or block", p.Name, rule.Field)
		}
		if rule.Index < 0 {
			return fmt.Errorf("profile %s: field %s has negative split index", p.Name, rule.Field)
		}
	}

	if !seen[FieldName] {
		return fmt.Errorf("profile %s: name field is mandatory", p.Name)
	}
	for i := range p.Fields {
		if p.Fields[i].Field == FieldName {
			p.Fields[i].Required = true
		}
	}
	return nil
}

func containsKind(kinds []Kind, k Kind) bool {
	for _, kind := range kinds {
		if kind == k {
			return true
		}
	}
	return false
}
