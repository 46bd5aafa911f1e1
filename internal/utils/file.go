package utils

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var imageExts = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"gif":  true,
	"bmp":  true,
	"tif":  true,
	"tiff": true,
	"webp": true,
}

// EnsureDir creates a directory if it doesn't exist
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}

// GetFileExtension returns the lower-case file extension without the dot
func GetFileExtension(filename string) string {
	ext := filepath.Ext(filename)
	if len(ext) > 0 {
		return strings.ToLower(ext[1:])
	}
	return ""
}

// IsImageFile checks if a file has an image extension
func IsImageFile(filename string) bool {
	return imageExts[GetFileExtension(filename)]
}

// IsURL reports whether source is an http(s) URL
func IsURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// Input is one photo source. Dir is the source's directory relative to the
// walked root it was found under, empty for files and URLs named directly.
type Input struct {
	Source string
	Dir    string
}

// GenerateOutputFilename names the portrait for an input photo. Output is
// always JPEG.
func GenerateOutputFilename(input, outputDir, prefix, suffix string) string {
	base := input
	if IsURL(input) {
		base = strings.SplitN(base, "?", 2)[0]
		base = base[strings.LastIndex(base, "/")+1:]
	}
	base = filepath.Base(base)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "portrait"
	}
	return filepath.Join(outputDir, fmt.Sprintf("%s%s%s.jpg", prefix, name, suffix))
}

// OutputPath mirrors the input's directory under outputDir.
func OutputPath(in Input, outputDir, prefix, suffix string) string {
	return GenerateOutputFilename(in.Source, filepath.Join(outputDir, in.Dir), prefix, suffix)
}

// CollectInputs expands files, directories and URLs into a list of photo
// sources. Directories are walked recursively in lexical order; hidden
// directories and those listed in skip are not entered.
func CollectInputs(args []string, skip ...string) ([]Input, error) {
	skipped := make(map[string]bool, len(skip))
	for _, s := range skip {
		if abs, err := filepath.Abs(s); err == nil {
			skipped[abs] = true
		}
	}

	var inputs []Input
	for _, arg := range args {
		if IsURL(arg) {
			inputs = append(inputs, Input{Source: arg})
			continue
		}

		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}
		if !info.IsDir() {
			inputs = append(inputs, Input{Source: arg})
			continue
		}

		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != arg && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				if abs, err := filepath.Abs(path); err == nil && skipped[abs] {
					return filepath.SkipDir
				}
				return nil
			}
			if !IsImageFile(path) {
				return nil
			}
			rel, err := filepath.Rel(arg, filepath.Dir(path))
			if err != nil {
				return err
			}
			if rel == "." {
				rel = ""
			}
			inputs = append(inputs, Input{Source: path, Dir: rel})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", arg, err)
		}
	}

	return inputs, nil
}

// FileExists checks if a file exists and is not a directory
func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
