package blobstore

import (
	"errors"
	"io/fs"
	"regexp"
	"sort"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(afero.NewMemMapFs(), "uploads")
}

func TestStore_SaveReadRemove(t *testing.T) {
	s := newTestStore(t)

	if err := s.Save("a.png", []byte("abc")); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if !s.Exists("a.png") {
		t.Fatal("expected a.png to exist")
	}
	data, err := s.Read("a.png")
	if err != nil || string(data) != "abc" {
		t.Fatalf("Read returned %q, %v", data, err)
	}
	if _, err := s.ModTime("a.png"); err != nil {
		t.Errorf("ModTime error: %v", err)
	}

	if err := s.Remove("a.png"); err != nil {
		t.Fatalf("Remove error: %v", err)
	}
	if s.Exists("a.png") {
		t.Error("expected a.png to be gone")
	}
	if err := s.Remove("a.png"); err != nil {
		t.Errorf("removing a missing file should not fail, got %v", err)
	}
	if _, err := s.Read("a.png"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestStore_RejectsNestedNames(t *testing.T) {
	s := newTestStore(t)
	for _, name := range []string{"", "..", "../x.png", "dir/x.png", `dir\x.png`} {
		if err := s.Save(name, []byte("x")); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Save(%q): expected ErrInvalidName, got %v", name, err)
		}
	}
}

func TestStore_ListAndFS(t *testing.T) {
	s := newTestStore(t)
	for _, name := range []string{"b.png", "a.jpg"} {
		if err := s.Save(name, []byte(name)); err != nil {
			t.Fatalf("Save error: %v", err)
		}
	}
	names, err := s.List()
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	sort.Strings(names)
	if strings.Join(names, ",") != "a.jpg,b.png" {
		t.Errorf("unexpected listing %v", names)
	}

	data, err := fs.ReadFile(s.FS(), "b.png")
	if err != nil || string(data) != "b.png" {
		t.Errorf("FS read returned %q, %v", data, err)
	}
}

func TestStore_Path(t *testing.T) {
	s := newTestStore(t)
	if got := s.Path("x.png"); got != "uploads/x.png" {
		t.Errorf("expected uploads/x.png, got %q", got)
	}
	if got := NameFromPath("uploads/x.png"); got != "x.png" {
		t.Errorf("expected x.png, got %q", got)
	}
}

func TestGenerateName(t *testing.T) {
	uuidName := regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}\.(\w+)$`)

	tests := []struct {
		original string
		content  []byte
		wantExt  string
	}{
		{"holiday.JPG", nil, "jpg"},
		{"archive.tar.png", nil, "png"},
		{"noext", pngBytes(t), "png"},
		{"weird.p/ng", pngBytes(t), "png"},
		{"noext", []byte{}, "txt"},
	}
	seen := map[string]bool{}
	for _, tt := range tests {
		got := GenerateName(tt.original, tt.content)
		m := uuidName.FindStringSubmatch(got)
		if m == nil {
			t.Fatalf("GenerateName(%q) = %q, not a uuid name", tt.original, got)
		}
		if tt.wantExt != "txt" && m[1] != tt.wantExt {
			t.Errorf("GenerateName(%q) ext = %q, want %q", tt.original, m[1], tt.wantExt)
		}
		if seen[got] {
			t.Errorf("duplicate name %q", got)
		}
		seen[got] = true
	}
}

func TestDerivedName(t *testing.T) {
	got := DerivedName("abc.jpeg", "_grayscale", "png")
	if got != "abc_grayscale.png" {
		t.Errorf("expected abc_grayscale.png, got %q", got)
	}
	if DerivedName("abc.jpeg", "_x", "jpg") != DerivedName("abc.jpeg", "_x", "jpg") {
		t.Error("derived names must be deterministic")
	}
}
