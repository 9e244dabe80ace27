package sanitize

import (
	"reflect"
	"testing"
)

func TestText(t *testing.T) {
	got := Text("  <b>Lyon</b>   &lt;script&gt;x&lt;/script&gt; 3e ")
	if got != "Lyon x 3e" {
		t.Fatalf("unexpected sanitized text: %q", got)
	}
}

func TestTagsDropsBlanksAndDuplicates(t *testing.T) {
	got := Tags([]string{"Vip", " ", "<i>Hot</i>", "Vip"})
	want := []string{"Vip", "Hot"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Tags() = %v, want %v", got, want)
	}
}
