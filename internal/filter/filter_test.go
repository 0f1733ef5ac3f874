package filter

import (
	"math/rand"
	"reflect"
	"testing"

	"github.com/aa-dank/slug-sweep-deduper/internal/config"
	"github.com/aa-dank/slug-sweep-deduper/internal/model"
)

func rec(dir, name string, size int64) model.FileRecord {
	return model.FileRecord{FileID: 1, Directory: dir, Filename: name, Size: size, DuplicateCount: 2}
}

func TestBuiltins(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		pred Predicate
		file string
		want bool
	}{
		{name: "cad shx", pred: ExcludeCADSupportFiles, file: "romans.shx", want: true},
		{name: "cad upper case", pred: ExcludeCADSupportFiles, file: "ACAD.LIN", want: true},
		{name: "cad pat", pred: ExcludeCADSupportFiles, file: "hatch.pat", want: true},
		{name: "cad pcx", pred: ExcludeCADSupportFiles, file: "logo.pcx", want: true},
		{name: "cad drawing kept", pred: ExcludeCADSupportFiles, file: "site.dwg", want: false},
		{name: "thumbs", pred: ExcludeSystemFiles, file: "Thumbs.db", want: true},
		{name: "ds_store", pred: ExcludeSystemFiles, file: ".DS_Store", want: true},
		{name: "desktop.ini", pred: ExcludeSystemFiles, file: "desktop.ini", want: true},
		{name: "regular file kept", pred: ExcludeSystemFiles, file: "thumbs.db.bak", want: false},
		{name: "no filter", pred: NoFilter, file: "thumbs.db", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.pred(rec("a", tt.file, 10)); got != tt.want {
				t.Errorf("predicate(%q) = %v, want %v", tt.file, got, tt.want)
			}
		})
	}
}

func TestExcludePatterns(t *testing.T) {
	t.Parallel()

	pred := ExcludePatterns([]string{"*.bak", "# comment", "", "42xx/*/draft-*", "[bad"})

	tests := []struct {
		dir  string
		file string
		want bool
	}{
		{dir: "any/where", file: "notes.BAK", want: true},
		{dir: "42xx/4203", file: "draft-1.pdf", want: true},
		{dir: "42xx/4203/sub", file: "draft-1.pdf", want: false},
		{dir: "42xx/4203", file: "final.pdf", want: false},
		{dir: "x", file: "[bad", want: false},
	}

	for _, tt := range tests {
		if got := pred(rec(tt.dir, tt.file, 1)); got != tt.want {
			t.Errorf("ExcludePatterns(%s/%s) = %v, want %v", tt.dir, tt.file, got, tt.want)
		}
	}
}

func TestPipeline_Apply(t *testing.T) {
	t.Parallel()

	records := []model.FileRecord{
		rec("a", "plan.pdf", 100),
		rec("a", "romans.shx", 100),
		rec("b", "Thumbs.db", 100),
		rec("b", "tiny.txt", 1),
		rec("c", "report.docx", 500),
	}

	p := NewPipeline(ExcludeCADSupportFiles, ExcludeSystemFiles, ExcludeSmallerThan(10))
	got := p.Apply(records)
	want := []model.FileRecord{records[0], records[4]}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Apply() = %v, want %v", got, want)
	}

	t.Run("empty pipeline keeps everything", func(t *testing.T) {
		if got := NewPipeline().Apply(records); len(got) != len(records) {
			t.Errorf("len(Apply()) = %d, want %d", len(got), len(records))
		}
	})
}

func TestPipeline_OrderIndependent(t *testing.T) {
	t.Parallel()

	records := []model.FileRecord{
		rec("a", "plan.pdf", 100),
		rec("a", "romans.shx", 5),
		rec("b", "Thumbs.db", 100),
		rec("b", "tiny.txt", 1),
		rec("c", "old.bak", 500),
		rec("c", "desktop.ini", 2),
	}
	preds := []Predicate{ExcludeCADSupportFiles, ExcludeSystemFiles, ExcludeSmallerThan(10), ExcludePatterns([]string{"*.bak"})}
	want := NewPipeline(preds...).Apply(records)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		shuffled := append([]Predicate(nil), preds...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		if got := NewPipeline(shuffled...).Apply(records); !reflect.DeepEqual(got, want) {
			t.Fatalf("permutation %d: Apply() = %v, want %v", i, got, want)
		}
	}
}

func TestNewPipelineFromConfig(t *testing.T) {
	t.Parallel()

	p, err := NewPipelineFromConfig(config.FiltersConfig{
		Enabled:         []string{"cad_support_files", "system_files"},
		ExcludePatterns: []string{"*.tmp"},
		MinSize:         4,
	})
	if err != nil {
		t.Fatalf("NewPipelineFromConfig() error = %v", err)
	}
	if p.Len() != 4 {
		t.Errorf("Len() = %d, want 4", p.Len())
	}
	if !p.Excluded(rec("a", "x.tmp", 100)) {
		t.Error("Excluded(x.tmp) = false, want true")
	}
	if !p.Excluded(rec("a", "x.txt", 3)) {
		t.Error("Excluded(3 bytes) = false, want true")
	}

	if _, err := NewPipelineFromConfig(config.FiltersConfig{Enabled: []string{"nope"}}); err == nil {
		t.Error("NewPipelineFromConfig() expected error for unknown filter")
	}
}
