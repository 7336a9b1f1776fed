package filekind

import "testing"

func TestClassify(t *testing.T) {
	cases := []struct {
		name    string
		wantExt string
		wantCat Category
		wantOK  bool
	}{
		{"clip.mp4", "mp4", CategoryVideo, true},
		{"CLIP.MKV", "mkv", CategoryVideo, true},
		{"voice.mp3", "mp3", CategoryAudio, true},
		{"meeting.M4A", "m4a", CategoryAudio, true},
		{"report.pdf", "pdf", CategoryText, true},
		{"Report.DOCX", "docx", CategoryText, true},
		{"data.csv", "csv", CategoryText, true},
		{"slides.pptx", "pptx", CategoryText, true},
		{"photo.jpg", "jpg", CategoryImage, true},
		{"scan.HEIC", "heic", CategoryImage, true},
		{"bundle.zip", "zip", CategoryArchive, true},
		{"dump.tar.gz", "tar.gz", CategoryArchive, true},
		{"dump.TAR.BZ2", "tar.bz2", CategoryArchive, true},
		{"dump.tar.xz", "tar.xz", CategoryArchive, true},
		{"weird.name.tar.gz", "tar.gz", CategoryArchive, true},
		{"lonely.gz", "gz", CategoryArchive, true},
		{"notes.xyz", "xyz", "", false},
		{"noextension", "", "", false},
		{"trailingdot.", "", "", false},
		{"", "", "", false},
		{"   ", "", "", false},
		{"  spaced.png  ", "png", CategoryImage, true},
	}
	for _, tc := range cases {
		ext, cat, ok := Classify(tc.name)
		if ok != tc.wantOK {
			t.Fatalf("Classify(%q) ok: want=%v got=%v", tc.name, tc.wantOK, ok)
		}
		if ext != tc.wantExt {
			t.Fatalf("Classify(%q) ext: want=%q got=%q", tc.name, tc.wantExt, ext)
		}
		if cat != tc.wantCat {
			t.Fatalf("Classify(%q) cat: want=%q got=%q", tc.name, tc.wantCat, cat)
		}
	}
}

func TestImageMIME(t *testing.T) {
	cases := []struct {
		ext  string
		want string
	}{
		{"jpg", "image/jpeg"},
		{".jpeg", "image/jpeg"},
		{"PNG", "image/png"},
		{"tif", "image/tiff"},
		{"tiff", "image/tiff"},
		{"heic", "image/heic"},
		{"svg", "application/octet-stream"},
		{"", "application/octet-stream"},
	}
	for _, tc := range cases {
		if got := ImageMIME(tc.ext); got != tc.want {
			t.Fatalf("ImageMIME(%q): want=%q got=%q", tc.ext, tc.want, got)
		}
	}
}
