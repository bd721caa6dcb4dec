package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/docrank/pkg/types"
)

// --- test helpers ---

func testSetup(t *testing.T) *Store {
	t.Helper()
	store, err := Open(types.StoreConfig{Dir: filepath.Join(t.TempDir(), "index"), MaxResults: 20})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func pageDoc(source string, page int, content string) *schema.Document {
	title := fmt.Sprintf("%s_%d.pdf", strings.TrimSuffix(filepath.Base(source), ".pdf"), page-1)
	return &schema.Document{
		ID:      source + "#" + title,
		Content: content,
		MetaData: map[string]any{
			types.MetaTitle:      title,
			types.MetaPageNumber: page,
			types.MetaSource:     source,
		},
	}
}

func sampleDocs(source string) []*schema.Document {
	return []*schema.Document{
		pageDoc(source, 1, "Paris is the capital and most populous city of France."),
		pageDoc(source, 2, "The Eiffel Tower is a wrought-iron lattice tower in Paris."),
		pageDoc(source, 3, "Berlin is the capital of Germany."),
		pageDoc(source, 4, "Sourdough bread uses a fermented starter."),
	}
}

func addHelper(t *testing.T, store *Store, docs []*schema.Document) {
	t.Helper()
	if err := store.Add(context.Background(), docs); err != nil {
		t.Fatal(err)
	}
}

// --- schema tests ---

func TestOpenCreatesSchema(t *testing.T) {
	store := testSetup(t)

	for _, table := range []string{"nodes", "nodes_fts"} {
		var count int
		err := store.db.QueryRow(
			`SELECT count(*) FROM sqlite_master WHERE type IN ('table','view') AND name = ?`, table,
		).Scan(&count)
		if err != nil {
			t.Fatalf("checking table %s: %v", table, err)
		}
		if count == 0 {
			t.Errorf("table %s does not exist", table)
		}
	}
}

func TestOpenCreatesDBFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "index")
	store, err := Open(types.StoreConfig{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if _, err := os.Stat(filepath.Join(dir, dbFile)); os.IsNotExist(err) {
		t.Errorf("database file not created in %s", dir)
	}
	if store.maxResults != defaultMaxResults {
		t.Errorf("maxResults = %d, want %d", store.maxResults, defaultMaxResults)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 2; i++ {
		store, err := Open(types.StoreConfig{Dir: dir})
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		store.Close()
	}
}

// --- add tests ---

func TestAddAndCount(t *testing.T) {
	store := testSetup(t)
	ctx := context.Background()

	addHelper(t, store, sampleDocs("a.pdf"))
	addHelper(t, store, sampleDocs("b.pdf"))

	n, err := store.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 8 {
		t.Errorf("Count = %d, want 8", n)
	}
}

func TestAddReplacesSameID(t *testing.T) {
	store := testSetup(t)
	ctx := context.Background()

	addHelper(t, store, sampleDocs("a.pdf"))
	updated := pageDoc("a.pdf", 4, "Rye bread is dense and dark.")
	addHelper(t, store, []*schema.Document{updated})

	n, _ := store.Count(ctx)
	if n != 4 {
		t.Errorf("Count = %d, want 4", n)
	}
	if got, _ := store.Retrieve(ctx, QueryOptions{Query: "sourdough"}); len(got) != 0 {
		t.Errorf("old content still indexed: %v", got)
	}
	got, err := store.Retrieve(ctx, QueryOptions{Query: "rye"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != updated.ID {
		t.Errorf("Retrieve(rye) = %v, want %s", got, updated.ID)
	}
}

func TestAddRejectsMissingID(t *testing.T) {
	store := testSetup(t)
	err := store.Add(context.Background(), []*schema.Document{{Content: "orphan"}})
	if err == nil || !strings.Contains(err.Error(), "no id") {
		t.Fatalf("err = %v, want missing id error", err)
	}
	if n, _ := store.Count(context.Background()); n != 0 {
		t.Errorf("Count = %d after failed add, want 0", n)
	}
}

func TestReplaceSource(t *testing.T) {
	store := testSetup(t)
	ctx := context.Background()

	addHelper(t, store, sampleDocs("a.pdf"))
	addHelper(t, store, sampleDocs("b.pdf"))

	removed, err := store.ReplaceSource(ctx, "a.pdf", []*schema.Document{
		pageDoc("a.pdf", 1, "A single rewritten page about Lisbon."),
	})
	if err != nil {
		t.Fatal(err)
	}
	if removed != 4 {
		t.Errorf("removed = %d, want 4", removed)
	}
	if n, _ := store.Count(ctx); n != 5 {
		t.Errorf("Count = %d, want 5", n)
	}
}

func TestReplaceSourceIgnoresMetadataSource(t *testing.T) {
	store := testSetup(t)
	ctx := context.Background()

	relabel := func(docs []*schema.Document) []*schema.Document {
		for _, d := range docs {
			d.MetaData[types.MetaSource] = "hr"
		}
		return docs
	}
	if _, err := store.ReplaceSource(ctx, "a.pdf", relabel(sampleDocs("a.pdf"))); err != nil {
		t.Fatal(err)
	}
	removed, err := store.ReplaceSource(ctx, "b.pdf", relabel(sampleDocs("b.pdf")))
	if err != nil {
		t.Fatal(err)
	}
	if removed != 0 {
		t.Errorf("removed = %d, want 0", removed)
	}
	if n, _ := store.Count(ctx); n != 8 {
		t.Errorf("Count = %d, want 8", n)
	}

	got, err := store.Retrieve(ctx, QueryOptions{Query: "Berlin", Source: "a.pdf"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].MetaData[types.MetaSource] != "hr" {
		t.Errorf("Retrieve(a.pdf) = %v, want one node keeping source metadata hr", got)
	}
}

// --- retrieve tests ---

func TestRetrieveRanksByRelevance(t *testing.T) {
	store := testSetup(t)
	addHelper(t, store, sampleDocs("a.pdf"))

	got, err := store.Retrieve(context.Background(), QueryOptions{Query: "capital of France?"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) < 2 {
		t.Fatalf("got %d results, want at least 2", len(got))
	}
	if got[0].MetaData[types.MetaPageNumber] != float64(1) {
		t.Errorf("best match page = %v, want 1", got[0].MetaData[types.MetaPageNumber])
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].Score() < got[i].Score() {
			t.Errorf("scores not descending at %d: %v < %v", i, got[i-1].Score(), got[i].Score())
		}
	}
	for _, d := range got {
		if d.Score() <= 0 {
			t.Errorf("score of %s = %v, want positive", d.ID, d.Score())
		}
		if strings.Contains(d.Content, "Sourdough") {
			t.Errorf("unrelated node %s retrieved", d.ID)
		}
	}
}

func TestRetrieveRespectsMaxResults(t *testing.T) {
	store := testSetup(t)
	addHelper(t, store, sampleDocs("a.pdf"))
	addHelper(t, store, sampleDocs("b.pdf"))

	got, err := store.Retrieve(context.Background(), QueryOptions{Query: "capital", MaxResults: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Errorf("got %d results, want 3", len(got))
	}
}

func TestRetrieveBySource(t *testing.T) {
	store := testSetup(t)
	addHelper(t, store, sampleDocs("a.pdf"))
	addHelper(t, store, sampleDocs("b.pdf"))

	got, err := store.Retrieve(context.Background(), QueryOptions{Query: "Paris", Source: "b.pdf"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d results, want 2", len(got))
	}
	for _, d := range got {
		if d.MetaData[types.MetaSource] != "b.pdf" {
			t.Errorf("result %s from %v, want b.pdf", d.ID, d.MetaData[types.MetaSource])
		}
	}
}

func TestRetrieveEmptyQueryError(t *testing.T) {
	store := testSetup(t)
	for _, q := range []string{"", "   ", `""`} {
		if _, err := store.Retrieve(context.Background(), QueryOptions{Query: q}); !errors.Is(err, ErrEmptyQuery) {
			t.Errorf("Retrieve(%q) err = %v, want ErrEmptyQuery", q, err)
		}
	}
}

func TestRetrieveNoResults(t *testing.T) {
	store := testSetup(t)
	addHelper(t, store, sampleDocs("a.pdf"))

	got, err := store.Retrieve(context.Background(), QueryOptions{Query: "quantum chromodynamics"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("got %d results, want 0", len(got))
	}
}

func TestMatchExpr(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"capital of france", `"capital" OR "of" OR "france"`},
		{`say "hi"`, `"say" OR "hi"`},
		{`o"brien`, `"o""brien"`},
		{"NEAR(a b)", `"NEAR(a" OR "b)"`},
		{"  ", ""},
	}
	for _, tt := range tests {
		if got := matchExpr(tt.in); got != tt.want {
			t.Errorf("matchExpr(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// --- export tests ---

func TestExportYAML(t *testing.T) {
	store := testSetup(t)
	addHelper(t, store, sampleDocs("a.pdf"))

	path, err := store.ExportYAML(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var entries []ExportEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		t.Fatalf("parsing export.yaml: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("exported %d entries, want 4", len(entries))
	}
	if entries[0].Metadata[types.MetaTitle] != "a_0.pdf" {
		t.Errorf("first entry title = %v, want a_0.pdf", entries[0].Metadata[types.MetaTitle])
	}
	if entries[0].AddedAt == "" {
		t.Error("added_at is empty")
	}
}

func TestExportJSON(t *testing.T) {
	store := testSetup(t)
	addHelper(t, store, sampleDocs("a.pdf"))

	path, err := store.ExportJSON(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "export.json" {
		t.Errorf("path = %s, want export.json", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var entries []ExportEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatalf("parsing export.json: %v", err)
	}
	for i, e := range entries {
		if got := e.Metadata[types.MetaPageNumber]; got != float64(i+1) {
			t.Errorf("entry %d page = %v, want %d", i, got, i+1)
		}
	}
}
