package classifier

import (
	"testing"
)

func TestClassify(t *testing.T) {
	cl := New(30)
	cases := map[string]Label{
		"Sugar prices rose sharply across the region this quarter.": Body,
		"Too short.": Short,
		"Image: a cane field at harvest time in western Kenya":           Chrome,
		"PHOTO courtesy of the growers association, all rights kept":     Chrome,
		"Click here to download the full annual market report today":     Chrome,
		"Share this article with your colleagues on social media now":    Chrome,
		"Credit: Kenya Sugar Board communications and outreach team":     Chrome,
		"Imagery from satellites shows cane acreage grew by ten percent": Body,
	}
	for in, want := range cases {
		if got := cl.Classify(in); got != want {
			t.Fatalf("%q: want %s, got %s", in, want, got)
		}
	}
}

func TestKeep(t *testing.T) {
	cl := New(10)
	if !cl.Keep("  Millers reported a record crushing season.  ") {
		t.Fatal("body text should be kept")
	}
	if cl.Keep("Download") {
		t.Fatal("chrome should be dropped")
	}
}
