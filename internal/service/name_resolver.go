package service

import (
	"context"
	"fmt"
	"strings"

	"fmdrive/internal/domain"
)

// maxNameProbes ограничивает перебор суффиксов при разрешении имени
const maxNameProbes = 1000

// resolveFileName подбирает свободное имя файла в папке. Занятое имя
// получает числовой суффикс перед расширением: report.pdf -> report (1).pdf.
// Расширением считается часть после последней точки; имя без точки
// целиком считается основой. reserved учитывает имена текущей пачки,
// ещё не добравшиеся до хранилища.
func resolveFileName(ctx context.Context, files FileStore, name string, folderID *int64, ownerID string, reserved map[string]bool) (string, error) {
	taken, err := nameTaken(ctx, files, name, folderID, ownerID, reserved)
	if err != nil {
		return "", err
	}
	if !taken {
		return name, nil
	}

	stem, ext := splitName(name)

	for n := 1; n <= maxNameProbes; n++ {
		candidate := fmt.Sprintf("%s (%d)%s", stem, n, ext)

		taken, err := nameTaken(ctx, files, candidate, folderID, ownerID, reserved)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("no free name for %q after %d attempts: %w", name, maxNameProbes, domain.ErrConflict)
}

func nameTaken(ctx context.Context, files FileStore, name string, folderID *int64, ownerID string, reserved map[string]bool) (bool, error) {
	if reserved[name] {
		return true, nil
	}

	taken, err := files.NameExists(ctx, name, folderID, ownerID)
	if err != nil {
		return false, fmt.Errorf("failed to check file name: %w", err)
	}
	return taken, nil
}

func splitName(name string) (stem, ext string) {
	idx := strings.LastIndex(name, ".")
	if idx <= 0 {
		// Скрытые файлы вида ".env" суффиксуются целиком
		return name, ""
	}
	return name[:idx], name[idx:]
}
