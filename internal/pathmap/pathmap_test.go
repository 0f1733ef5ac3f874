package pathmap

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/mitchellh/go-homedir"
)

func TestToLocal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		mount     string
		canonical string
		filename  string
		want      string
	}{
		{name: "directory only", mount: "/mnt/records", canonical: "42xx/4203", want: "/mnt/records/42xx/4203"},
		{name: "with filename", mount: "/mnt/records", canonical: "42xx/4203", filename: "plan.pdf", want: "/mnt/records/42xx/4203/plan.pdf"},
		{name: "mount root", mount: "/mnt/records", canonical: "", filename: "a.txt", want: "/mnt/records/a.txt"},
		{name: "stray slashes", mount: "/mnt/records", canonical: "/a//b/", want: "/mnt/records/a/b"},
		{name: "spaces kept", mount: "/mnt/records", canonical: "Job 12/Sub Dir", filename: "x y.dwg", want: "/mnt/records/Job 12/Sub Dir/x y.dwg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToLocal(tt.mount, tt.canonical, tt.filename)
			if got != filepath.FromSlash(tt.want) {
				t.Errorf("ToLocal() = %q, want %q", got, filepath.FromSlash(tt.want))
			}
		})
	}
}

func TestToCanonical(t *testing.T) {
	t.Parallel()
	mount := t.TempDir()

	tests := []struct {
		name  string
		local string
		want  string
	}{
		{name: "nested", local: filepath.Join(mount, "42xx", "4203"), want: "42xx/4203"},
		{name: "mount itself", local: mount, want: ""},
		{name: "dot segments", local: filepath.Join(mount, "a", ".", "b"), want: "a/b"},
		{name: "parent segments", local: mount + "/a/../b", want: "b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToCanonical(tt.local, mount)
			if err != nil {
				t.Fatalf("ToCanonical() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ToCanonical() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestToCanonical_OutsideMount(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	mount := filepath.Join(root, "records")
	if err := os.MkdirAll(mount, 0755); err != nil {
		t.Fatal(err)
	}

	for _, local := range []string{
		filepath.Join(root, "other"),
		root,
		mount + "/../records-old",
		filepath.Join(mount, "..", ".."),
	} {
		_, err := ToCanonical(local, mount)
		if !errors.Is(err, ErrPathOutsideMount) {
			t.Errorf("ToCanonical(%q) error = %v, want ErrPathOutsideMount", local, err)
		}
		var oe *OutsideMountError
		if !errors.As(err, &oe) {
			t.Errorf("ToCanonical(%q) error type = %T, want *OutsideMountError", local, err)
		}
	}
}

func TestToCanonical_HomeExpansion(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	homedir.DisableCache = true
	t.Cleanup(func() { homedir.DisableCache = false })

	mount := filepath.Join(home, "records")
	got, err := ToCanonical("~/records/a/b", "~/records")
	if err != nil {
		t.Fatalf("ToCanonical() error = %v", err)
	}
	if got != "a/b" {
		t.Errorf("ToCanonical() = %q, want %q", got, "a/b")
	}

	got, err = ToCanonical(filepath.Join(mount, "c"), "~/records")
	if err != nil {
		t.Fatalf("ToCanonical() error = %v", err)
	}
	if got != "c" {
		t.Errorf("ToCanonical() = %q, want %q", got, "c")
	}
}

func TestToCanonical_WindowsPaths(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		local   string
		mount   string
		want    string
		outside bool
	}{
		{name: "drive", local: `N:\PPDO\Records\42xx\4203`, mount: `N:\PPDO\Records`, want: "42xx/4203"},
		{name: "drive trailing separator", local: `N:\PPDO\Records\42xx\`, mount: `N:\PPDO\Records\`, want: "42xx"},
		{name: "case insensitive", local: `n:\ppdo\records\A`, mount: `N:\PPDO\Records`, want: "A"},
		{name: "share", local: `\\fs01\records\a\b`, mount: `\\fs01\records`, want: "a/b"},
		{name: "dot dot", local: `N:\PPDO\Records\a\..\b`, mount: `N:\PPDO\Records`, want: "b"},
		{name: "mixed separators", local: `N:\PPDO\Records/a/b`, mount: `N:\PPDO\Records`, want: "a/b"},
		{name: "other drive", local: `M:\PPDO\Records\a`, mount: `N:\PPDO\Records`, outside: true},
		{name: "sibling", local: `N:\PPDO\Other`, mount: `N:\PPDO\Records`, outside: true},
		{name: "escapes with dot dot", local: `N:\PPDO\Records\..\Other`, mount: `N:\PPDO\Records`, outside: true},
		{name: "share vs drive", local: `\\fs01\records\a`, mount: `N:\PPDO\Records`, outside: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToCanonical(tt.local, tt.mount)
			if tt.outside {
				if !errors.Is(err, ErrPathOutsideMount) {
					t.Errorf("ToCanonical() error = %v, want ErrPathOutsideMount", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ToCanonical() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ToCanonical() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	mounts := []string{t.TempDir(), `N:\PPDO\Records`, `\\fs01\records`}
	canonicals := []string{"", "a", "42xx/4203/Plans", "Job 12/Sub Dir"}

	for _, m := range mounts {
		for _, p := range canonicals {
			got, err := ToCanonical(ToLocal(m, p, ""), m)
			if err != nil {
				t.Errorf("round trip (%q, %q) error = %v", m, p, err)
				continue
			}
			if got != p {
				t.Errorf("round trip (%q, %q) = %q", m, p, got)
			}
		}
	}
}

func TestSplitPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want []string
	}{
		{path: `\\srv\share\a`, want: []string{`\\`, "srv", "share", "a"}},
		{path: `C:\a\b`, want: []string{"C:", "a", "b"}},
		{path: `c:\a\b\`, want: []string{"C:", "a", "b"}},
		{path: "/mnt/a", want: []string{string(filepath.Separator), "mnt", "a"}},
		{path: "a/b", want: []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := SplitPath(tt.path); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitPath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestIsWindowsPath(t *testing.T) {
	t.Parallel()

	tests := map[string]bool{
		`C:\x`:      true,
		`\\srv\x`:   true,
		`/mnt/x`:    false,
		`C:`:        false,
		`rel\x`:     false,
		`1:\x`:      false,
		`records/x`: false,
	}
	for p, want := range tests {
		if got := IsWindowsPath(p); got != want {
			t.Errorf("IsWindowsPath(%q) = %v, want %v", p, got, want)
		}
	}
}
