package tempfile

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestClassifyByNameOnly(t *testing.T) {
	tests := []struct {
		name string
		path string
		temp bool
	}{
		{"office owner lock", `C:\docs\~$report.docx`, true},
		{"word atomic tmp", `C:\docs\WRD1234.tmp`, true},
		{"libreoffice lock", `C:\docs\.~lock.report.odt#`, true},
		{"blender backup", `C:\models\scene.blend1`, true},
		{"blender backup high", `C:\models\scene.blend32`, true},
		{"blender backup out of range", `C:\models\scene.blend99`, false},
		{"desktop.ini", `C:\folder\desktop.ini`, true},
		{"thumbs.db", `C:\folder\Thumbs.db`, true},
		{"generic backup suffix", `C:\docs\report.txt~`, true},
		{"8 hex atomic save", `C:\docs\1a2b3c4d`, true},
		{"8 hex with extension is not atomic save", `C:\docs\1a2b3c4d.txt`, false},
		{"regular file", `C:\docs\report.docx`, false},
		{"regular directory-ish name", `C:\docs\Reports`, false},
		{"hidden vim swap", `C:\docs\.report.txt.swp`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyByNameOnly(strings.ReplaceAll(tt.path, "\\", string(filepath.Separator)))
			if got.Temp != tt.temp {
				t.Fatalf("ClassifyByNameOnly(%q) = %+v, want Temp=%v", tt.path, got, tt.temp)
			}
		})
	}
}
