// Package model resolves whisper model names to files and downloads them.
package model

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
)

// DefaultName is used when no model is configured.
const DefaultName = "small"

// BaseURL hosts the ggml model files.
const BaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main"

// ErrUnknownModel is returned for names missing from the catalog.
var ErrUnknownModel = errors.New("unknown model")

// Languages describes what a model can decode.
type Languages string

const (
	Multilingual Languages = "multilingual"
	EnglishOnly  Languages = "english"
)

// Info describes one downloadable model.
type Info struct {
	Name        string
	File        string
	SizeBytes   uint64
	Languages   Languages
	Description string
}

// URL is the download location under base.
func (i Info) URL(base string) string {
	if strings.TrimSpace(base) == "" {
		base = BaseURL
	}
	return strings.TrimRight(base, "/") + "/" + i.File
}

// SizeLabel renders the approximate download size.
func (i Info) SizeLabel() string {
	return humanize.IBytes(i.SizeBytes)
}

var catalog = map[string]Info{
	"tiny": {
		Name: "tiny", File: "ggml-tiny.bin", SizeBytes: 77_691_713,
		Languages: Multilingual, Description: "fastest, lowest accuracy",
	},
	"base": {
		Name: "base", File: "ggml-base.bin", SizeBytes: 147_951_465,
		Languages: Multilingual, Description: "fast, usable for clear speech",
	},
	"small": {
		Name: "small", File: "ggml-small.bin", SizeBytes: 487_601_967,
		Languages: Multilingual, Description: "balanced default for dictation",
	},
	"medium": {
		Name: "medium", File: "ggml-medium.bin", SizeBytes: 1_533_763_059,
		Languages: Multilingual, Description: "higher accuracy, slower",
	},
	"large": {
		Name: "large", File: "ggml-large.bin", SizeBytes: 3_094_623_691,
		Languages: Multilingual, Description: "best accuracy, needs a fast GPU",
	},
	"turbo": {
		Name: "turbo", File: "ggml-large-v3-turbo.bin", SizeBytes: 1_624_555_275,
		Languages: Multilingual, Description: "large-v3 quality at medium speed",
	},
}

var order = []string{"tiny", "base", "small", "medium", "large", "turbo"}

// Lookup returns the catalog entry for name.
func Lookup(name string) (Info, error) {
	info, ok := catalog[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Info{}, fmt.Errorf("%w %q. Try: %s", ErrUnknownModel, name, strings.Join(Names(), ", "))
	}
	return info, nil
}

// Names lists the catalog in display order.
func Names() []string {
	return append([]string(nil), order...)
}

// Catalog lists every model in display order.
func Catalog() []Info {
	out := make([]Info, 0, len(order))
	for _, name := range order {
		out = append(out, catalog[name])
	}
	return out
}

// Installed returns catalog entries already present in dir, sorted by name.
func Installed(dir string, exists func(string) bool) []Info {
	var out []Info
	for _, info := range catalog {
		if exists(filepath.Join(dir, info.File)) {
			out = append(out, info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
