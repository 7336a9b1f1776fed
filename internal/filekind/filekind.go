// Package filekind maps uploaded filenames onto the coarse media
// categories the ask pipelines dispatch on. Classification is purely
// extension-based: content sniffing stays out of the request path.
package filekind

import "strings"

type Category string

const (
	CategoryVideo   Category = "video"
	CategoryAudio   Category = "audio"
	CategoryText    Category = "text"
	CategoryImage   Category = "image"
	CategoryArchive Category = "archive"
)

var videoExts = []string{
	"mp4", "avi", "mov", "wmv", "mpeg", "mpg", "mkv", "flv",
	"webm", "3gp", "mts", "m2ts", "vob", "rmvb",
}

// Plain text, structured text, office documents and ebooks all land in
// the text category: every one of them rides the document pipeline.
var textExts = []string{
	"txt", "csv", "tsv", "log", "xml", "json", "yaml", "ini",
	"xls", "xlsx", "ods", "doc", "docx", "odt", "rtf",
	"ppt", "pptx", "odp", "pdf", "epub", "mobi", "azw", "djvu",
}

var audioExts = []string{
	"mp3", "aac", "wav", "wma", "ogg", "flac", "m4a",
	"aiff", "opus", "alac", "amr",
}

var imageExts = []string{
	"jpg", "jpeg", "png", "gif", "bmp", "tiff", "webp", "heic",
	"svg", "ico", "raw", "nef", "cr2", "psd", "ai", "eps",
}

var archiveExts = []string{
	"zip", "rar", "7z", "tar", "gz", "bz2", "xz", "zst", "lzma", "iso",
}

// Longest first so "x.tar.gz" never classifies as plain "gz".
var compoundArchiveExts = []string{"tar.bz2", "tar.gz", "tar.xz"}

var categoryByExt = map[string]Category{}

func init() {
	for _, e := range videoExts {
		categoryByExt[e] = CategoryVideo
	}
	for _, e := range textExts {
		categoryByExt[e] = CategoryText
	}
	for _, e := range audioExts {
		categoryByExt[e] = CategoryAudio
	}
	for _, e := range imageExts {
		categoryByExt[e] = CategoryImage
	}
	for _, e := range archiveExts {
		categoryByExt[e] = CategoryArchive
	}
}

// Classify returns the matched extension (without leading dot, compound
// suffixes like "tar.gz" kept whole) and the category for filename.
// ok is false when the name carries no extension or an unknown one.
func Classify(filename string) (ext string, cat Category, ok bool) {
	name := strings.ToLower(strings.TrimSpace(filename))
	if name == "" {
		return "", "", false
	}
	for _, comp := range compoundArchiveExts {
		if strings.HasSuffix(name, "."+comp) {
			return comp, CategoryArchive, true
		}
	}
	idx := strings.LastIndexByte(name, '.')
	if idx < 0 || idx == len(name)-1 {
		return "", "", false
	}
	ext = name[idx+1:]
	cat, ok = categoryByExt[ext]
	if !ok {
		return ext, "", false
	}
	return ext, cat, true
}

var imageMIMEByExt = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"webp": "image/webp",
	"tiff": "image/tiff",
	"tif":  "image/tiff",
	"heic": "image/heic",
}

// ImageMIME guesses the MIME type for an image extension. Unknown
// extensions fall back to application/octet-stream rather than failing:
// the upstream model decides what it can decode.
func ImageMIME(ext string) string {
	e := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	if mime, ok := imageMIMEByExt[e]; ok {
		return mime
	}
	return "application/octet-stream"
}
