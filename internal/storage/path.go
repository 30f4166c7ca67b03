// path.go — санитизация путей. Все обращения к диску в проекте
// проходят через Resolve; прямой конкатенации путей быть не должно.
package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"filedesk/internal/domain"
)

// AllowedExtensions — белый список расширений, проверяется на границе
// до любой записи на диск.
var AllowedExtensions = map[string]struct{}{
	".pdf":  {},
	".docx": {},
	".xlsx": {},
	".pptx": {},
}

// AllowedExtension проверяет итоговое расширение имени файла без учёта
// регистра. Двойные расширения вида report.pdf.exe отсекаются, потому
// что учитывается только последнее.
func AllowedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	_, ok := AllowedExtensions[ext]
	return ok
}

// NormalizeFolder приводит пользовательский путь папки к
// каноническому виду с ведущим слэшем: "/", "/Operation/Subteam".
func NormalizeFolder(folder string) string {
	folder = strings.ReplaceAll(folder, "\\", "/")
	cleaned := filepath.ToSlash(filepath.Clean("/" + folder))
	return cleaned
}

// Resolve переводит пользовательский относительный путь в абсолютный
// внутри root. Сегменты "..", нулевые байты, выход за пределы root и
// симлинки, ведущие наружу, приводят к ErrPathTraversal. При любой
// неоднозначности — отказ, а не нормализация.
func Resolve(root, userPath string) (string, error) {
	if strings.ContainsRune(userPath, 0) {
		return "", fmt.Errorf("%w: null byte in path", domain.ErrPathTraversal)
	}

	// Сегменты ".." отклоняются до Clean: схлопывание подъёма внутрь
	// root маскировало бы попытку обхода как безобидный путь.
	normalized := strings.ReplaceAll(userPath, "\\", "/")
	for _, seg := range strings.Split(normalized, "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: %q", domain.ErrPathTraversal, userPath)
		}
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrPathTraversal, err)
	}

	// Нормализуем: путь всегда трактуется как относительный к root.
	cleaned := filepath.Clean("/" + filepath.FromSlash(normalized))
	joined := filepath.Join(absRoot, cleaned)

	// Повторная проверка после Clean/Join: результат обязан остаться
	// потомком root.
	if joined != absRoot && !strings.HasPrefix(joined, absRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", domain.ErrPathTraversal, userPath)
	}

	// Лексической проверки мало: симлинк внутри root может вести
	// наружу. Сверяем путь после разрешения симлинков с разрешённым
	// root.
	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrPathTraversal, err)
	}
	resolved, err := evalExisting(joined)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrPathTraversal, err)
	}
	if resolved != realRoot && !strings.HasPrefix(resolved, realRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q escapes storage root via symlink", domain.ErrPathTraversal, userPath)
	}

	return joined, nil
}

// evalExisting разрешает симлинки на самом глубоком существующем
// предке пути и пристраивает несуществующий хвост обратно. Ещё не
// созданные файлы и каталоги легальны, ошибки разрешения существующих
// путей — нет.
func evalExisting(p string) (string, error) {
	resolved, err := filepath.EvalSymlinks(p)
	if err == nil {
		return resolved, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}

	parent := filepath.Dir(p)
	if parent == p {
		return "", err
	}
	resolvedParent, err := evalExisting(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedParent, filepath.Base(p)), nil
}

// ValidFilename отклоняет имена с разделителями, нулевыми байтами
// и зарезервированные имена "." и "..".
func ValidFilename(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("%w: reserved filename %q", domain.ErrPathTraversal, name)
	}
	if strings.ContainsAny(name, "/\\") || strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: illegal character in filename %q", domain.ErrPathTraversal, name)
	}
	return nil
}
