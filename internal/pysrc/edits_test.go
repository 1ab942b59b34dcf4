package pysrc

import (
	"strings"
	"testing"
)

func TestApply(t *testing.T) {
	src := []byte("aaa bbb ccc")
	tests := []struct {
		name  string
		edits []Edit
		want  string
	}{
		{
			name:  "single replacement",
			edits: []Edit{{Start: 4, End: 7, Text: "XXX"}},
			want:  "aaa XXX ccc",
		},
		{
			name:  "insertion",
			edits: []Edit{{Start: 3, End: 3, Text: "!"}},
			want:  "aaa! bbb ccc",
		},
		{
			name: "out of order input",
			edits: []Edit{
				{Start: 8, End: 11, Text: "3"},
				{Start: 0, End: 3, Text: "1"},
			},
			want: "1 bbb 3",
		},
		{
			name:  "no edits",
			edits: nil,
			want:  "aaa bbb ccc",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Apply(src, tt.edits)
			if err != nil {
				t.Fatalf("Apply() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Apply() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestApplyOverlap(t *testing.T) {
	src := []byte("aaa bbb ccc")
	_, err := Apply(src, []Edit{
		{Start: 0, End: 5, Text: "x"},
		{Start: 4, End: 7, Text: "y"},
	})
	if err == nil {
		t.Fatal("Apply() with overlapping edits succeeded, want error")
	}
}

func TestApplyOutOfBounds(t *testing.T) {
	_, err := Apply([]byte("abc"), []Edit{{Start: 2, End: 9, Text: "x"}})
	if err == nil {
		t.Fatal("Apply() with out-of-bounds edit succeeded, want error")
	}
}

func TestEnsureImport(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		module string
		added  bool
		want   string
	}{
		{
			name:   "after last import",
			src:    "\"\"\"Doc.\"\"\"\n\nimport os\nimport sys\n\n\ndef f():\n    pass\n",
			module: "saltext.mysql.utils.mysql",
			added:  true,
			want:   "import sys\nimport saltext.mysql.utils.mysql\n",
		},
		{
			name:   "after from import",
			src:    "from salt.utils import data\n\nx = 1\n",
			module: "saltext.mysql.utils.mysql",
			added:  true,
			want:   "from salt.utils import data\nimport saltext.mysql.utils.mysql\n",
		},
		{
			name:   "after docstring",
			src:    "\"\"\"Doc.\"\"\"\n\nx = 1\n",
			module: "saltext.mysql.utils.mysql",
			added:  true,
			want:   "\"\"\"Doc.\"\"\"\n\nimport saltext.mysql.utils.mysql\n",
		},
		{
			name:   "top of bare file",
			src:    "x = 1\n",
			module: "saltext.mysql.utils.mysql",
			added:  true,
			want:   "import saltext.mysql.utils.mysql\nx = 1\n",
		},
		{
			name:   "already imported",
			src:    "import saltext.mysql.utils.mysql\n",
			module: "saltext.mysql.utils.mysql",
			added:  false,
		},
		{
			name:   "aliased import does not satisfy",
			src:    "import saltext.mysql.utils.mysql as mysqlutil\n",
			module: "saltext.mysql.utils.mysql",
			added:  true,
			want:   "import saltext.mysql.utils.mysql as mysqlutil\nimport saltext.mysql.utils.mysql\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := mustParse(t, tt.src)
			edit, added := EnsureImport(f, tt.module)
			if added != tt.added {
				t.Fatalf("EnsureImport() added = %v, want %v", added, tt.added)
			}
			if !added {
				return
			}
			out, err := Apply(f.Src, []Edit{edit})
			if err != nil {
				t.Fatalf("Apply() error = %v", err)
			}
			if !strings.Contains(string(out), tt.want) {
				t.Errorf("result does not contain %q:\n%s", tt.want, out)
			}
		})
	}
}
