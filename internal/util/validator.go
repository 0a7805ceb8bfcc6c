package util

import (
	"errors"
	"sort"
	"strings"
)

var imageExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {}, ".bmp": {}, ".tif": {}, ".tiff": {},
}

// ValidateImageExtension aceita apenas extensões de imagem decodificáveis.
func ValidateImageExtension(ext string) error {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return errors.New("arquivo sem extensão")
	}
	if _, ok := imageExtensions[ext]; !ok {
		return errors.New("extensão não suportada: " + ext)
	}
	return nil
}

// ValidateImageContentType exige content-type image/*.
func ValidateImageContentType(contentType string) error {
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/") {
		return errors.New("arquivo não é uma imagem")
	}
	return nil
}

// ImageExtensions devolve as extensões aceitas em ordem alfabética.
func ImageExtensions() []string {
	exts := make([]string, 0, len(imageExtensions))
	for ext := range imageExtensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
