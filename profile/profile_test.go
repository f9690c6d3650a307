package profile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/aluiziolira/go-scrape-whisky/models"
)

func strPtr(s string) *string                    { return &s }
func intPtr(v int) *int                          { return &v }
func floatPtr(v float64) *float64                { return &v }
func boolPtr(v bool) *bool                       { return &v }
func datePtr(d models.WeakDate) *models.WeakDate { return &d }

func loadDoc(t *testing.T, name string) *goquery.Document {
	t.Helper()
	f, err := os.Open(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	defer f.Close()
	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return doc
}

func mustResolve(t *testing.T, name string) *Profile {
	t.Helper()
	reg, err := Builtin()
	if err != nil {
		t.Fatalf("builtin profiles: %v", err)
	}
	p, err := reg.Resolve(name)
	if err != nil {
		t.Fatalf("resolve %s: %v", name, err)
	}
	return p
}

var ignoreScrapedAt = cmpopts.IgnoreFields(models.Whisky{}, "ScrapedAt")

func TestBuiltinProfiles(t *testing.T) {
	reg, err := Builtin()
	if err != nil {
		t.Fatalf("builtin profiles: %v", err)
	}
	want := []string{"whiskyauction", "whiskyauctioneer", "whiskybase"}
	if diff := cmp.Diff(want, reg.Names()); diff != "" {
		t.Fatalf("builtin names mismatch (-want +got):\n%s", diff)
	}

	auctioneer, _ := reg.Resolve("whiskyauctioneer")
	if auctioneer.RandomDelay.Seconds() != 10 {
		t.Fatalf("whiskyauctioneer delay = %v, want 10s", auctioneer.RandomDelay)
	}
	if auctioneer.PageFilter != "lot/" {
		t.Fatalf("whiskyauctioneer page filter = %q", auctioneer.PageFilter)
	}
	if _, err := reg.Resolve("unknown"); err == nil {
		t.Fatalf("expected error for unknown profile")
	}
}

func TestExtractWhiskyAuctioneer(t *testing.T) {
	p := mustResolve(t, "whiskyauctioneer")
	doc := loadDoc(t, "whiskyauctioneer_lot.html")

	got, err := p.Extract(doc, "https://whiskyauctioneer.com/lot/123")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	want := &models.Whisky{
		Site:       "whiskyauctioneer",
		URL:        "https://whiskyauctioneer.com/lot/123",
		Name:       "Macallan 1946 Select Reserve",
		Price:      &models.Price{Value: 21500, Currency: models.GBP},
		ReserveMet: boolPtr(true),
		Distillery: strPtr("Macallan"),
		Age:        intPtr(30),
		Vintage:    datePtr(models.NewWeakDate(1946, nil, nil)),
		Region:     strPtr("Speyside"),
		CaskType:   strPtr("Sherry"),
		ABV:        floatPtr(40),
		BottleSize: strPtr("70cl"),
	}
	if diff := cmp.Diff(want, got, ignoreScrapedAt); diff != "" {
		t.Fatalf("whisky mismatch (-want +got):\n%s", diff)
	}
	if got.ScrapedAt.IsZero() {
		t.Fatalf("scraped_at should be set")
	}
}

func TestExtractWhiskybase(t *testing.T) {
	p := mustResolve(t, "whiskybase")
	doc := loadDoc(t, "whiskybase_entry.html")

	got, err := p.Extract(doc, "https://www.whiskybase.com/whiskies/whisky/1234")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	want := &models.Whisky{
		Site:       "whiskybase",
		URL:        "https://www.whiskybase.com/whiskies/whisky/1234",
		Name:       "Ardbeg 10-year-old",
		Distillery: strPtr("Ardbeg"),
		Bottler:    strPtr("Distillery Bottling"),
		ABV:        floatPtr(46),
		Vintage:    datePtr(models.NewWeakDate(2011, intPtr(9), nil)),
		Bottled:    datePtr(models.NewWeakDate(2021, intPtr(4), intPtr(6))),
		CatalogID:  strPtr("WB1234"),
		Score:      strPtr("88.52"),
	}
	if diff := cmp.Diff(want, got, ignoreScrapedAt); diff != "" {
		t.Fatalf("whisky mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractWhiskyAuction(t *testing.T) {
	p := mustResolve(t, "whiskyauction")
	doc := loadDoc(t, "whiskyauction_lot.html")

	got, err := p.Extract(doc, "https://whisky.auction/lot/55")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	want := &models.Whisky{
		Site:       "whiskyauction",
		URL:        "https://whisky.auction/lot/55",
		Name:       "Springbank 21 Year Old",
		Age:        intPtr(21),
		Vintage:    datePtr(models.NewWeakDate(1999, nil, nil)),
		Region:     strPtr("Campbeltown"),
		ABV:        floatPtr(46),
		BottleSize: strPtr("70cl"),
	}
	if diff := cmp.Diff(want, got, ignoreScrapedAt); diff != "" {
		t.Fatalf("whisky mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractMissingMandatory(t *testing.T) {
	tests := []struct {
		name      string
		site      string
		html      string
		wantField string
	}{
		{
			name:      "auctioneer without price",
			site:      "whiskyauctioneer",
			html:      `<div id="new-layout"><div class="box-outer"><div class="right"><div class="left-heading"><h1>Lot</h1></div></div></div><div class="productbuttom"><div class="left"><div class="topvbn"><div><span>Age:</span><span>12</span></div></div></div></div></div>`,
			wantField: "price",
		},
		{
			name:      "auctioneer without detail block",
			site:      "whiskyauctioneer",
			html:      `<div id="new-layout"><h1>Lot</h1></div>`,
			wantField: "detail",
		},
		{
			name:      "whiskybase without title",
			site:      "whiskybase",
			html:      `<div id="whisky-details"><dl><dt>Whiskybase ID</dt><dd>WB1</dd></dl></div><span class="votes-rating-current">80</span>`,
			wantField: "name",
		},
		{
			name:      "whiskybase id label without value",
			site:      "whiskybase",
			html:      `<h1>Ardbeg</h1><span class="votes-rating-current">80</span><div id="whisky-details"><dl><dt>Whiskybase ID</dt></dl></div>`,
			wantField: "catalog_id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := mustResolve(t, tt.site)
			doc, err := goquery.NewDocumentFromReader(strings.NewReader(tt.html))
			if err != nil {
				t.Fatalf("parse html: %v", err)
			}
			_, err = p.Extract(doc, "http://example.test/page")
			var missing *MissingFieldError
			if !errors.As(err, &missing) {
				t.Fatalf("expected MissingFieldError, got %v", err)
			}
			if missing.Field != tt.wantField {
				t.Fatalf("missing field = %q, want %q", missing.Field, tt.wantField)
			}
			if missing.Reason() != "missing_"+tt.wantField {
				t.Fatalf("reason = %q", missing.Reason())
			}
		})
	}
}

func TestExtractAbsentOptionalFields(t *testing.T) {
	p := mustResolve(t, "whiskyauctioneer")
	html := `<div id="new-layout">
	  <div class="box-outer"><div class="right">
	    <div class="left-heading"><h1>Mystery Malt</h1></div>
	    <div class="place-bid bid-section bid-info"><div class="amount winning"><span>$98.99</span></div></div>
	  </div></div>
	  <div class="productbuttom"><div class="left"><div class="topvbn"><div>
	    <p><span>Age:</span><span>N/A</span></p>
	    <p><span>Bottled Strength:</span><span>86 PROOF</span></p>
	    <p><span>Vintage:</span><span>Unknown</span></p>
	  </div></div></div></div>
	</div>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}

	got, err := p.Extract(doc, "http://example.test/lot/9")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	want := &models.Whisky{
		Site:  "whiskyauctioneer",
		URL:   "http://example.test/lot/9",
		Name:  "Mystery Malt",
		Price: &models.Price{Value: 98.99, Currency: models.USD},
	}
	if diff := cmp.Diff(want, got, ignoreScrapedAt); diff != "" {
		t.Fatalf("whisky mismatch (-want +got):\n%s", diff)
	}
}

func TestProfileValidate(t *testing.T) {
	valid := func() *Profile {
		return &Profile{
			Name:        "example",
			Domain:      "example.test",
			RootSitemap: "https://example.test/sitemap.xml",
			Blocks:      map[string]Block{"detail": {Selector: "dl"}},
			Fields: []Rule{
				{Field: FieldName, Selector: "h1"},
				{Field: FieldAge, Block: "detail", Column: "Age"},
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Profile)
		wantErr string
	}{
		{name: "empty name", mutate: func(p *Profile) { p.Name = "" }, wantErr: "name"},
		{name: "no domain", mutate: func(p *Profile) { p.Domain = "" }, wantErr: "domain"},
		{name: "root without host", mutate: func(p *Profile) { p.RootSitemap = "/sitemap.xml" }, wantErr: "host"},
		{name: "root outside domain", mutate: func(p *Profile) { p.RootSitemap = "https://cdn.other.test/sitemap.xml" }, wantErr: "outside domain"},
		{name: "root on lookalike domain", mutate: func(p *Profile) { p.RootSitemap = "https://notexample.test/sitemap.xml" }, wantErr: "outside domain"},
		{name: "unknown field", mutate: func(p *Profile) { p.Fields[1].Field = "colour" }, wantErr: "unknown field"},
		{name: "wrong parser", mutate: func(p *Profile) { p.Fields[1].Parse = KindPrice }, wantErr: "cannot be parsed"},
		{name: "unknown block", mutate: func(p *Profile) { p.Fields[1].Block = "meta" }, wantErr: "unknown block"},
		{name: "missing column", mutate: func(p *Profile) { p.Fields[1].Column = "" }, wantErr: "column"},
		{name: "no source", mutate: func(p *Profile) { p.Fields[1].Block = "" }, wantErr: "no selector"},
		{name: "duplicate field", mutate: func(p *Profile) { p.Fields[1].Field = FieldName }, wantErr: "twice"},
		{name: "missing name rule", mutate: func(p *Profile) { p.Fields = p.Fields[1:] }, wantErr: "name field"},
		{name: "flag without match", mutate: func(p *Profile) {
			p.Fields = append(p.Fields, Rule{Field: FieldReserveMet, Selector: "div.reserve"})
		}, wantErr: "match"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid()
			tt.mutate(p)
			if err := p.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}

	sub := valid()
	sub.RootSitemap = "https://www.example.test:8443/sitemap.xml"
	if err := sub.Validate(); err != nil {
		t.Fatalf("subdomain root sitemap rejected: %v", err)
	}

	p := valid()
	if err := p.Validate(); err != nil {
		t.Fatalf("valid profile rejected: %v", err)
	}
	if p.Fields[1].Parse != KindInt {
		t.Fatalf("default parser = %q, want %q", p.Fields[1].Parse, KindInt)
	}
	if !p.Fields[0].Required {
		t.Fatalf("name rule should be forced mandatory")
	}
}

func TestExtractReportsFirstMissingBlockByName(t *testing.T) {
	p := &Profile{
		Name:        "example",
		Domain:      "example.test",
		RootSitemap: "https://example.test/sitemap.xml",
		Blocks: map[string]Block{
			"specs":   {Selector: "div.specs", Required: true},
			"auction": {Selector: "div.auction", Required: true},
			"meta":    {Selector: "div.meta", Required: true},
		},
		Fields: []Rule{{Field: FieldName, Selector: "h1"}},
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<h1>Lot</h1>`))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}

	for i := 0; i < 20; i++ {
		_, err := p.Extract(doc, "http://example.test/lot/1")
		var missing *MissingFieldError
		if !errors.As(err, &missing) {
			t.Fatalf("expected MissingFieldError, got %v", err)
		}
		if missing.Field != "auction" {
			t.Fatalf("missing field = %q, want auction", missing.Field)
		}
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	doc := `profiles:
  - name: example
    domain: example.test
    root_sitemap: https://example.test/sitemap.xml
    fields:
      - field: name
        selektor: h1
`
	if _, err := Load(strings.NewReader(doc)); err == nil {
		t.Fatalf("expected decode error for unknown key")
	}
}

func TestLoadFileOverridesBuiltin(t *testing.T) {
	reg, err := Builtin()
	if err != nil {
		t.Fatalf("builtin profiles: %v", err)
	}

	path := filepath.Join(t.TempDir(), "profiles.yaml")
	doc := `profiles:
  - name: whiskybase
    domain: staging.whiskybase.test
    root_sitemap: https://staging.whiskybase.test/sitemaps.xml
    random_delay: 1s
    fields:
      - field: name
        selector: h1
        full_text: true
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write profiles: %v", err)
	}
	if err := LoadFile(reg, path); err != nil {
		t.Fatalf("load file: %v", err)
	}

	p, err := reg.Resolve("whiskybase")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if p.Domain != "staging.whiskybase.test" {
		t.Fatalf("domain = %q, want override", p.Domain)
	}
	if len(reg.Names()) != 3 {
		t.Fatalf("names = %v, want 3 profiles", reg.Names())
	}
}

func TestTextTokens(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<dl>
	  <dt>Distillery</dt> <dd>Glen Foo</dd>
	  <dt>Distillery</dt> <dd><b>Glen</b> Bar</dd>
	</dl>`))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	got := TextTokens(doc.Find("dl"))
	want := []string{"Distillery", "Glen Foo", "Distillery", "Glen", "Bar"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("tokens mismatch (-want +got):\n%s", diff)
	}

	if tokens := TextTokens(doc.Find("table")); tokens != nil {
		t.Fatalf("tokens of empty selection = %v, want nil", tokens)
	}
}

func TestTextTokensKeepsEmptyCells(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<dl>
	  <dt>Bottler</dt> <dd></dd>
	  <dt>Cask Type</dt><dd>   </dd>
	  <dt>Strength</dt><dd>46.0 %<br>Vol.</dd>
	</dl>`))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	got := TextTokens(doc.Find("dl"))
	want := []string{"Bottler", "", "Cask Type", "", "Strength", "46.0 %", "Vol."}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("tokens mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractEmptyValueCellIsAbsent(t *testing.T) {
	p := mustResolve(t, "whiskybase")
	html := `<h1>Ardbeg Uigeadail</h1>
	<span class="votes-rating-current">89.10</span>
	<div id="whisky-details"><dl>
	  <dt>Whiskybase ID</dt><dd>WB77</dd>
	  <dt>Bottler</dt><dd></dd>
	  <dt>Strength</dt><dd>54.2 % Vol.</dd>
	</dl></div>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}

	got, err := p.Extract(doc, "http://example.test/whisky/77")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if got.Bottler != nil {
		t.Fatalf("bottler = %q, want absent for an empty cell", *got.Bottler)
	}
	if got.ABV == nil || *got.ABV != 54.2 {
		t.Fatalf("abv = %v, want 54.2", got.ABV)
	}
}
