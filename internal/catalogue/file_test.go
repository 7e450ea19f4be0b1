package catalogue

import (
	"strings"
	"testing"

	"github.com/starford/wssync/internal/models"
	"github.com/starford/wssync/internal/testutil"
)

func TestEncode_IndentAndUnescaped(t *testing.T) {
	data, err := Encode([]models.Entry{{
		ID: 1, Title: "Café <draft>", Author: "Zoë", Doc: "ws1/report.pdf", Image: "ws1/logo.png",
	}})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := `[
  {
    "id": 1,
    "title": "Café <draft>",
    "author": "Zoë",
    "description": "",
    "doc": "ws1/report.pdf",
    "image": "ws1/logo.png"
  }
]
`
	if string(data) != want {
		t.Errorf("Encode =\n%s\nwant\n%s", data, want)
	}
}

func TestEncode_EmptyIsArray(t *testing.T) {
	data, err := Encode(nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if strings.TrimSpace(string(data)) != "[]" {
		t.Errorf("Encode(nil) = %q", data)
	}
}

func TestSaveAndLoad(t *testing.T) {
	_, store := testutil.TestTarget(t)
	in := []models.Entry{models.DefaultEntry(1), {ID: 2, Title: "T", Doc: "d", Image: "i"}}
	if err := Save(store, DefaultFile, in); err != nil {
		t.Fatalf("Save: %v", err)
	}
	out, err := Load(store, DefaultFile, testutil.Logger())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(out) != 2 || out[0] != in[0] || out[1] != in[1] {
		t.Errorf("Load = %+v", out)
	}
}

func TestLoad_MissingIsEmpty(t *testing.T) {
	_, store := testutil.TestTarget(t)
	out, err := Load(store, DefaultFile, testutil.Logger())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out == nil || len(out) != 0 {
		t.Errorf("Load = %#v, want empty slice", out)
	}
}

func TestLoad_MalformedIsEmpty(t *testing.T) {
	_, store := testutil.TestTarget(t)
	if err := store.Write(DefaultFile, []byte("{not json")); err != nil {
		t.Fatal(err)
	}
	out, err := Load(store, DefaultFile, testutil.Logger())
	if err != nil {
		t.Fatalf("malformed catalogue should not error: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("Load = %+v, want empty", out)
	}
}
