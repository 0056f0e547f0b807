package csharp

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

var generatedSuffixes = []string{
	".g.cs",
	".g.i.cs",
	".designer.cs",
	".generated.cs",
	".assemblyinfo.cs",
}

var generatedAttributes = map[string]bool{
	"GeneratedCode":       true,
	"CompilerGenerated":   true,
	"DebuggerNonUserCode": true,
}

// IsGeneratedName reports whether the file name follows a code generator
// naming convention. Extra patterns are doublestar globs; those without a
// slash match the base name.
func IsGeneratedName(path string, patterns ...string) bool {
	base := filepath.Base(path)
	lower := strings.ToLower(base)
	for _, s := range generatedSuffixes {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	if strings.HasPrefix(lower, "temporarygeneratedfile_") {
		return true
	}
	for _, p := range patterns {
		name := base
		if strings.Contains(p, "/") {
			name = filepath.ToSlash(path)
		}
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

// HasGeneratedHeader reports whether the leading comments carry an
// auto-generated marker.
func (f *File) HasGeneratedHeader() bool {
	h := strings.ToLower(f.Header)
	return strings.Contains(h, "<auto-generated") || strings.Contains(h, "<autogenerated")
}

// HasGeneratedAttribute reports whether a declaration in the file is marked
// as generated.
func (f *File) HasGeneratedAttribute() bool {
	for _, a := range f.Attributes {
		if generatedAttributes[attributeName(a)] {
			return true
		}
	}
	return false
}

// IsGenerated combines the name, header and attribute checks.
func (f *File) IsGenerated(patterns ...string) bool {
	return IsGeneratedName(f.Path, patterns...) || f.HasGeneratedHeader() || f.HasGeneratedAttribute()
}

// attributeName strips the namespace and the Attribute suffix, so that
// System.CodeDom.Compiler.GeneratedCodeAttribute becomes GeneratedCode.
func attributeName(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSuffix(name, "Attribute")
}
